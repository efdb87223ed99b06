package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/pinglet/internal/llm"
	"github.com/hitoshi/pinglet/internal/metrics"
	"github.com/hitoshi/pinglet/internal/model"
	"github.com/hitoshi/pinglet/internal/notifier"
	"github.com/hitoshi/pinglet/internal/repository"
)

// notifierResolver はチャネル種別からNotifierを引くインターフェース。
type notifierResolver interface {
	For(channel model.NotificationChannel) notifier.Notifier
}

// Engine はポスト1件を全有効ルールに対して評価し、発火記録の作成と通知を行う。
type Engine struct {
	rules     repository.RuleRepository
	alertLogs repository.AlertLogRepository
	matcher   *RuleMatcher
	generator llm.TextGenerator
	notifiers notifierResolver
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	now       func() time.Time
}

// NewEngine はEngineの新しいインスタンスを生成する。
func NewEngine(
	rules repository.RuleRepository,
	alertLogs repository.AlertLogRepository,
	matcher *RuleMatcher,
	generator llm.TextGenerator,
	notifiers notifierResolver,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		rules:     rules,
		alertLogs: alertLogs,
		matcher:   matcher,
		generator: generator,
		notifiers: notifiers,
		metrics:   collector,
		logger:    logger,
		now:       time.Now,
	}
}

// ProcessPost はポストをアカウント所有ユーザーの全有効ルールに対して評価する。
// 1ポストが複数ルールを独立に発火させることがあり、それぞれが
// 個別の発火記録と通知試行を持つ。あるルールの評価・通知失敗は
// 後続ルールの評価を妨げない。
// 戻り値は実際に発火した（ゲートを通過した）記録の一覧。
func (e *Engine) ProcessPost(ctx context.Context, account *model.MonitoredAccount, post *model.Post) ([]*model.AlertLog, error) {
	if !account.AlertsEnabled {
		return nil, nil
	}

	rules, err := e.rules.ListEnabledByUserID(ctx, account.UserID)
	if err != nil {
		return nil, fmt.Errorf("有効ルールの取得に失敗しました: %w", err)
	}

	var fired []*model.AlertLog
	for _, rule := range rules {
		result, err := e.matcher.Evaluate(ctx, post, rule, e.now())
		if err != nil {
			e.logger.Error("ルールの評価に失敗しました",
				slog.String("rule_id", rule.ID),
				slog.String("post_id", post.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if result == nil {
			continue
		}

		log, err := e.fire(ctx, account, post, result)
		if err != nil {
			e.logger.Error("アラートの発火処理に失敗しました",
				slog.String("rule_id", rule.ID),
				slog.String("post_id", post.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if log != nil {
			fired = append(fired, log)
		}
	}

	return fired, nil
}

// fire はマッチ1件の発火記録作成と通知送信を行う。
// 発火記録はstatus=sentで楽観的に作成し、通知失敗時にfailedへ更新する。
// 失敗しても記録自体は残り、黙って破棄されることはない。
// クールダウンの最終判定はCreateGatedのトランザクション内で行われ、
// 同一アカウントのポストが並行処理されてもゲート通過は高々1件となる。
// ゲートで抑制された場合はnilを返す（記録は作成されない）。
func (e *Engine) fire(ctx context.Context, account *model.MonitoredAccount, post *model.Post, result *MatchResult) (*model.AlertLog, error) {
	rule := result.Rule
	summary := e.generator.Summarize(ctx, post.Text, 2)

	log := &model.AlertLog{
		ID:          uuid.NewString(),
		RuleID:      rule.ID,
		PostID:      post.ID,
		TriggerKind: result.TriggerKind,
		Score:       result.Score,
		Status:      model.AlertStatusSent,
		SentAt:      e.now(),
	}

	cooldown := time.Duration(rule.CooldownMinutes) * time.Minute
	inserted, err := e.alertLogs.CreateGated(ctx, log, post.AccountID, cooldown)
	if err != nil {
		return nil, fmt.Errorf("発火記録の作成に失敗しました: %w", err)
	}
	if !inserted {
		e.logger.Info("クールダウンにより発火を抑制しました",
			slog.String("rule_id", rule.ID),
			slog.String("account_id", post.AccountID),
		)
		return nil, nil
	}

	e.metrics.RecordAlertFired(string(result.TriggerKind))

	notification := &notifier.AlertNotification{
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		Username:    account.Username,
		PostID:      post.ID,
		PostURL:     post.URL,
		PostText:    post.Text,
		Summary:     summary,
		TriggerKind: result.TriggerKind,
		Score:       result.Score,
	}

	if err := e.notifiers.For(rule.Channel).SendAlert(ctx, notification); err != nil {
		e.logger.Error("通知の送信に失敗しました",
			slog.String("rule_id", rule.ID),
			slog.String("post_id", post.ID),
			slog.String("channel", string(rule.Channel)),
			slog.String("error", err.Error()),
		)
		e.metrics.RecordDispatchFailure(string(rule.Channel))
		log.Status = model.AlertStatusFailed
		if err := e.alertLogs.UpdateStatus(ctx, log.ID, model.AlertStatusFailed); err != nil {
			e.logger.Error("発火記録の状態更新に失敗しました",
				slog.String("alert_id", log.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return log, nil
}
