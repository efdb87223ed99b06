package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
)

// OpenAIClient はOpenAI埋め込みAPIのクライアント。
type OpenAIClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string // テスト用にエンドポイントを差し替え可能
	apiKey     string
	model      string
}

// NewOpenAIClient はOpenAIClientの新しいインスタンスを生成する。
func NewOpenAIClient(httpClient *http.Client, logger *slog.Logger, baseURL, apiKey, model string) *OpenAIClient {
	return &OpenAIClient{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
	}
}

// embeddingsRequest はOpenAI埋め込みAPIのリクエストボディ。
type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingsResponse はOpenAI埋め込みAPIのレスポンスボディ。
type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// EmbedText は単一テキストの埋め込みベクトルを生成する。
func (c *OpenAIClient) EmbedText(ctx context.Context, text string) ([]float64, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("埋め込みAPIのレスポンス件数が不正です: %d", len(vectors))
	}
	return vectors[0], nil
}

// EmbedBatch は複数テキストの埋め込みベクトルを入力順で一括生成する。
// レスポンスはindexでソートし、入力順との対応を保証する。
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}

	payload, err := json.Marshal(embeddingsRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("埋め込みAPIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("text_count", len(texts)),
		)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("埋め込みAPIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.Int("text_count", len(texts)),
		)
		return nil, fmt.Errorf("埋め込みAPIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var result embeddingsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Error("埋め込みAPIのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	if len(result.Data) != len(texts) {
		return nil, fmt.Errorf("埋め込みAPIのレスポンス件数が不正です: %d != %d", len(result.Data), len(texts))
	}

	sort.Slice(result.Data, func(i, j int) bool {
		return result.Data[i].Index < result.Data[j].Index
	})

	vectors := make([][]float64, len(result.Data))
	for i, d := range result.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
