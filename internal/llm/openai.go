package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// OpenAIGenerator はOpenAIチャットAPIを使用するTextGenerator実装。
// API呼び出しに失敗した場合は機械的な縮退テキストへフォールバックする。
type OpenAIGenerator struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string // テスト用にエンドポイントを差し替え可能
	apiKey     string
	model      string
}

// NewOpenAIGenerator はOpenAIGeneratorの新しいインスタンスを生成する。
func NewOpenAIGenerator(httpClient *http.Client, logger *slog.Logger, baseURL, apiKey, model string) *OpenAIGenerator {
	return &OpenAIGenerator{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Summarize はポスト本文の短い要約を生成する。
// API呼び出しに失敗した場合は切り詰めた本文を返す。
func (g *OpenAIGenerator) Summarize(ctx context.Context, text string, maxSentences int) string {
	prompt := fmt.Sprintf("Summarize the following text in %d sentences. Be concise and factual:\n\n%s\n\nSummary:", maxSentences, text)

	content, err := g.complete(ctx, chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a helpful assistant that creates concise summaries."},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   150,
		Temperature: 0.3,
	})
	if err != nil {
		g.logger.Error("要約の生成に失敗しました", slog.String("error", err.Error()))
		return truncate(text)
	}
	return content
}

// ComposeDigest はアカウント別のポスト群からMarkdown形式のダイジェスト本文を生成する。
// API呼び出しに失敗した場合は簡易ダイジェストを返す。
func (g *OpenAIGenerator) ComposeDigest(ctx context.Context, sections []DigestSection) string {
	var b strings.Builder
	for _, sec := range sections {
		fmt.Fprintf(&b, "\n## %s\n", sec.Username)
		for _, text := range sec.Posts {
			fmt.Fprintf(&b, "- %s\n", truncate(text))
		}
	}

	prompt := fmt.Sprintf("Create a daily digest from the following posts grouped by author.\nSummarize the key themes and insights. Group related posts together.\nBe concise but informative. Format as markdown with sections.\n\nPosts:\n%s\n\nDigest:", b.String())

	content, err := g.complete(ctx, chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are a helpful assistant that creates informative digests from social media posts."},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   2000,
		Temperature: 0.5,
	})
	if err != nil {
		g.logger.Error("ダイジェストの生成に失敗しました", slog.String("error", err.Error()))
		return basicDigest(sections)
	}
	return content
}

// complete はチャット補完APIを呼び出し、先頭choiceの本文を返す。
func (g *OpenAIGenerator) complete(ctx context.Context, reqBody chatRequest) (string, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("チャットAPIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("チャットAPIのレスポンスにchoiceが含まれていません")
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}
