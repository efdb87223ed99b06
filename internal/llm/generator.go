// Package llm はアラート要約とダイジェスト本文の生成を提供する。
// OpenAIチャットAPIの呼び出しと、APIキー未設定・呼び出し失敗時の縮退実装を含む。
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/pinglet/internal/config"
)

// maxFallbackRunes は縮退時の要約で残すポスト本文の最大文字数。
const maxFallbackRunes = 200

// DigestSection はダイジェスト生成の入力となるアカウント単位のポスト群。
type DigestSection struct {
	Username string
	Posts    []string
}

// TextGenerator はテキスト生成のインターフェース。
// どの実装も必ず何らかのテキストを返す。生成に失敗した場合は
// 入力からの機械的な縮退テキストへフォールバックするため、エラーは返さない。
type TextGenerator interface {
	// Summarize はポスト本文の短い要約を生成する。
	// maxSentencesは要約の最大文数。
	Summarize(ctx context.Context, text string, maxSentences int) string

	// ComposeDigest はアカウント別のポスト群からMarkdown形式のダイジェスト本文を生成する。
	ComposeDigest(ctx context.Context, sections []DigestSection) string
}

// truncate は本文を最大maxFallbackRunes文字に切り詰める。
// 要約生成の縮退値として使用する。
func truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= maxFallbackRunes {
		return text
	}
	return string(runes[:maxFallbackRunes]) + "..."
}

// basicDigest はLLMを使わない機械的なダイジェスト本文を生成する。
func basicDigest(sections []DigestSection) string {
	var b strings.Builder
	b.WriteString("# Daily Digest\n")

	for _, sec := range sections {
		fmt.Fprintf(&b, "\n## %s\n\n", sec.Username)
		for _, text := range sec.Posts {
			fmt.Fprintf(&b, "- %s\n", truncate(text))
		}
	}

	return b.String()
}

// noopGenerator はAPIキー未設定時のTextGenerator実装。
// 常に機械的な縮退テキストを返す。
type noopGenerator struct {
	logger *slog.Logger
}

// NewNoopGenerator は縮退テキストのみを返すTextGeneratorを生成する。
func NewNoopGenerator(logger *slog.Logger) *noopGenerator {
	return &noopGenerator{logger: logger}
}

func (g *noopGenerator) Summarize(ctx context.Context, text string, maxSentences int) string {
	g.logger.Warn("OpenAI APIキーが未設定のため切り詰めた本文を返します")
	return truncate(text)
}

func (g *noopGenerator) ComposeDigest(ctx context.Context, sections []DigestSection) string {
	g.logger.Warn("OpenAI APIキーが未設定のため簡易ダイジェストを生成します")
	return basicDigest(sections)
}

// NewFromConfig は設定に応じたTextGeneratorを生成する。
// OPENAI_API_KEYが設定されていればOpenAIクライアント、未設定ならno-op実装を返す。
func NewFromConfig(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) TextGenerator {
	if cfg.OpenAIAPIKey == "" {
		return NewNoopGenerator(logger)
	}
	return NewOpenAIGenerator(httpClient, logger, cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.LLMModel)
}
