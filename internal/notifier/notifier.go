// Package notifier はアラートとダイジェストの通知送信を提供する。
package notifier

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/pinglet/internal/model"
)

// AlertNotification は通知先へ送るアラートの内容。
type AlertNotification struct {
	RuleID      string            `json:"rule_id"`
	RuleName    string            `json:"rule_name"`
	Username    string            `json:"username"`
	PostID      string            `json:"post_id"`
	PostURL     string            `json:"post_url,omitempty"`
	PostText    string            `json:"post_text"`
	Summary     string            `json:"summary"`
	TriggerKind model.TriggerKind `json:"trigger_kind"`
	Score       *float64          `json:"score,omitempty"`
}

// Notifier は通知送信のインターフェース。
type Notifier interface {
	// SendAlert はアラート通知を送信する。
	SendAlert(ctx context.Context, n *AlertNotification) error

	// SendDigest はダイジェスト通知を送信する。
	SendDigest(ctx context.Context, digest *model.Digest) error
}

// Registry はチャネル種別から通知実装を引くためのレジストリ。
// ルールごとのChannel指定に応じてアラートエンジンが参照する。
type Registry struct {
	log     Notifier
	webhook Notifier
}

// NewRegistry は通知レジストリを生成する。
// webhookURLが未設定の場合、webhookチャネルの送信はエラーとなり
// 該当アラートはfailedとして記録される。
func NewRegistry(logger *slog.Logger, httpClient *http.Client, webhookURL string) *Registry {
	return &Registry{
		log:     NewLogNotifier(logger),
		webhook: NewWebhookNotifier(httpClient, logger, webhookURL),
	}
}

// For はチャネル種別に対応するNotifierを返す。
// 未知のチャネルはログ通知にフォールバックする。
func (r *Registry) For(channel model.NotificationChannel) Notifier {
	switch channel {
	case model.ChannelWebhook:
		return r.webhook
	default:
		return r.log
	}
}
