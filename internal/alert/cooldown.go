// Package alert はポストとアラートルールのマッチング・発火処理を提供する。
package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/pinglet/internal/model"
	"github.com/hitoshi/pinglet/internal/repository"
)

// CooldownTracker はルールのクールダウン状態を判定する。
// クールダウンは(rule, account)ペア単位で管理される。
// ルールがアカウントAに対して抑制中でも、アカウントBには発火できる。
type CooldownTracker struct {
	alertLogs repository.AlertLogRepository
}

// NewCooldownTracker はCooldownTrackerの新しいインスタンスを生成する。
func NewCooldownTracker(alertLogs repository.AlertLogRepository) *CooldownTracker {
	return &CooldownTracker{alertLogs: alertLogs}
}

// InCooldown は指定ルールがアカウントに対してクールダウン中かどうかを返す。
// CooldownMinutesが0以下のルールは常にfalse。
// それ以外は、同(rule, account)ペアの発火記録が窓内に存在する場合にtrueを返す。
//
// これは埋め込み計算など高コストな評価を省くための事前チェックであり、
// 並行処理下での最終的なゲートはAlertLogRepository.CreateGatedが担う。
func (t *CooldownTracker) InCooldown(ctx context.Context, rule *model.AlertRule, accountID string, now time.Time) (bool, error) {
	if rule.CooldownMinutes <= 0 {
		return false, nil
	}

	since := now.Add(-time.Duration(rule.CooldownMinutes) * time.Minute)
	exists, err := t.alertLogs.ExistsRecentByRuleAndAccount(ctx, rule.ID, accountID, since)
	if err != nil {
		return false, fmt.Errorf("クールダウン判定に失敗しました: %w", err)
	}
	return exists, nil
}
