package notifier

import (
	"context"
	"log/slog"

	"github.com/hitoshi/pinglet/internal/model"
)

// logNotifier は構造化ログへ通知内容を出力するNotifier実装。
// 開発環境と、外部通知先を持たないルールのデフォルトチャネルとして使用する。
type logNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier はlogNotifierの新しいインスタンスを生成する。
func NewLogNotifier(logger *slog.Logger) *logNotifier {
	return &logNotifier{logger: logger}
}

// SendAlert はアラート内容をINFOレベルで出力する。常に成功する。
func (n *logNotifier) SendAlert(ctx context.Context, a *AlertNotification) error {
	attrs := []any{
		slog.String("rule_id", a.RuleID),
		slog.String("rule_name", a.RuleName),
		slog.String("username", a.Username),
		slog.String("post_id", a.PostID),
		slog.String("trigger_kind", string(a.TriggerKind)),
		slog.String("summary", a.Summary),
	}
	if a.Score != nil {
		attrs = append(attrs, slog.Float64("score", *a.Score))
	}
	n.logger.Info("アラートが発火しました", attrs...)
	return nil
}

// SendDigest はダイジェストの概要をINFOレベルで出力する。常に成功する。
func (n *logNotifier) SendDigest(ctx context.Context, digest *model.Digest) error {
	n.logger.Info("ダイジェストを生成しました",
		slog.String("digest_id", digest.ID),
		slog.String("user_id", digest.UserID),
		slog.String("digest_date", digest.DigestDate.Format("2006-01-02")),
		slog.Int("content_length", len(digest.ContentMarkdown)),
	)
	return nil
}
