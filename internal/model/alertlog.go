// Package model はドメインモデルを定義する。
package model

import "time"

// TriggerKind はアラートの発火種別を表す。
type TriggerKind string

const (
	// TriggerKeyword はキーワード一致による発火。
	TriggerKeyword TriggerKind = "keyword"
	// TriggerTopic はトピック類似度による発火。
	TriggerTopic TriggerKind = "topic"
)

// AlertStatus はアラート通知の送信状態を表す。
type AlertStatus string

const (
	// AlertStatusSent は通知送信成功。
	AlertStatusSent AlertStatus = "sent"
	// AlertStatusFailed は通知送信失敗。レコード自体は残る。
	AlertStatusFailed AlertStatus = "failed"
)

// AlertLog はルール発火の記録を表す。
// ルールの発火判定（クールダウンゲート通過後）が成立した場合にのみ作成される。
// 作成後はstatus以外を変更しない。
type AlertLog struct {
	ID          string
	RuleID      string
	PostID      string
	TriggerKind TriggerKind
	Score       *float64 // トピックマッチ時のみ設定
	Status      AlertStatus
	SentAt      time.Time
}
