package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/pinglet/internal/model"
)

// webhookNotifier は設定されたURLへJSONをPOSTするNotifier実装。
// httpClientにはsecurity.SSRFGuardServiceが生成した安全なクライアントを渡すこと。
type webhookNotifier struct {
	httpClient *http.Client
	logger     *slog.Logger
	url        string
}

// NewWebhookNotifier はwebhookNotifierの新しいインスタンスを生成する。
func NewWebhookNotifier(httpClient *http.Client, logger *slog.Logger, url string) *webhookNotifier {
	return &webhookNotifier{
		httpClient: httpClient,
		logger:     logger,
		url:        url,
	}
}

// webhookPayload はWebhookへ送信するリクエストボディ。
type webhookPayload struct {
	Event  string             `json:"event"`
	Alert  *AlertNotification `json:"alert,omitempty"`
	Digest *digestPayload     `json:"digest,omitempty"`
}

type digestPayload struct {
	ID              string `json:"id"`
	UserID          string `json:"user_id"`
	DigestDate      string `json:"digest_date"`
	ContentMarkdown string `json:"content_markdown"`
}

// SendAlert はアラート内容をWebhook URLへPOSTする。
func (n *webhookNotifier) SendAlert(ctx context.Context, a *AlertNotification) error {
	return n.post(ctx, webhookPayload{Event: "alert.fired", Alert: a})
}

// SendDigest はダイジェスト内容をWebhook URLへPOSTする。
func (n *webhookNotifier) SendDigest(ctx context.Context, digest *model.Digest) error {
	return n.post(ctx, webhookPayload{
		Event: "digest.created",
		Digest: &digestPayload{
			ID:              digest.ID,
			UserID:          digest.UserID,
			DigestDate:      digest.DigestDate.Format("2006-01-02"),
			ContentMarkdown: digest.ContentMarkdown,
		},
	})
}

func (n *webhookNotifier) post(ctx context.Context, payload webhookPayload) error {
	if n.url == "" {
		return fmt.Errorf("webhook URLが設定されていません")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("リクエストボディの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		n.logger.Error("Webhookの送信に失敗しました",
			slog.String("event", payload.Event),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("Webhookの送信に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.logger.Error("Webhookがエラーステータスを返しました",
			slog.String("event", payload.Event),
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("webhookがステータス %d を返しました", resp.StatusCode)
	}

	return nil
}
