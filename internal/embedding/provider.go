// Package embedding はポスト・トピック本文の埋め込みベクトル生成を提供する。
// OpenAI埋め込みAPIの呼び出しと、APIキー未設定時のゼロベクトル実装を含む。
package embedding

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/pinglet/internal/config"
	"github.com/hitoshi/pinglet/internal/model"
)

// Provider はテキストから埋め込みベクトルを生成するインターフェース。
type Provider interface {
	// EmbedText は単一テキストの埋め込みベクトルを生成する。
	EmbedText(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch は複数テキストの埋め込みベクトルを入力順で一括生成する。
	// 空リストの場合は空スライスを返す。
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// ZeroVector は期待次元のゼロベクトルを返す。
// 埋め込み生成に失敗した場合の縮退値として使用する。
// ゼロベクトルはコサイン類似度で常に0.0となるため、トピック発火を抑制する方向に働く。
func ZeroVector() []float64 {
	return make([]float64, model.EmbeddingDimension)
}

// noopProvider はAPIキー未設定時のProvider実装。常にゼロベクトルを返す。
type noopProvider struct {
	logger *slog.Logger
}

// NewNoopProvider はゼロベクトルのみを返すProviderを生成する。
func NewNoopProvider(logger *slog.Logger) *noopProvider {
	return &noopProvider{logger: logger}
}

func (p *noopProvider) EmbedText(ctx context.Context, text string) ([]float64, error) {
	p.logger.Warn("OpenAI APIキーが未設定のためゼロベクトルを返します")
	return ZeroVector(), nil
}

func (p *noopProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}
	p.logger.Warn("OpenAI APIキーが未設定のためゼロベクトルを返します",
		slog.Int("text_count", len(texts)),
	)
	vectors := make([][]float64, len(texts))
	for i := range texts {
		vectors[i] = ZeroVector()
	}
	return vectors, nil
}

// NewFromConfig は設定に応じたProviderを生成する。
// OPENAI_API_KEYが設定されていればOpenAIクライアント、未設定ならno-op実装を返す。
func NewFromConfig(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) Provider {
	if cfg.OpenAIAPIKey == "" {
		return NewNoopProvider(logger)
	}
	return NewOpenAIClient(httpClient, logger, cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.EmbeddingModel)
}
