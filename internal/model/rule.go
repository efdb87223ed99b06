// Package model はドメインモデルを定義する。
package model

import "time"

// NotificationChannel はアラートの通知先チャネルを表す。
type NotificationChannel string

const (
	// ChannelLog はログ出力のみの通知チャネル。
	ChannelLog NotificationChannel = "log"
	// ChannelWebhook はWebhook POSTによる通知チャネル。
	ChannelWebhook NotificationChannel = "webhook"
)

// AlertRule はユーザー定義のアラートルールを表す。
// キーワード条件とトピック条件は独立しており、どちらか一方の成立で発火する。
type AlertRule struct {
	ID                  string
	UserID              string
	Name                string
	Enabled             bool
	Keywords            []string // 大文字小文字を区別しない部分一致
	TopicIDs            []string
	AllowedAccountIDs   []string // 空の場合は全アカウントが対象
	SimilarityThreshold float64  // トピックマッチのルール側しきい値（0.0〜1.0）
	CooldownMinutes     int      // 0以下の場合はクールダウンなし
	Channel             NotificationChannel
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// RulePatch はアラートルールの部分更新で変更可能なフィールドを列挙する。
// スライスはnilなら変更なし、空スライスならクリアとして扱う。
type RulePatch struct {
	Name                *string
	Enabled             *bool
	Keywords            []string
	TopicIDs            []string
	AllowedAccountIDs   []string
	SimilarityThreshold *float64
	CooldownMinutes     *int
	Channel             *NotificationChannel
}

// Apply はパッチの非nilフィールドをルールへマージする。
func (p RulePatch) Apply(r *AlertRule) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Enabled != nil {
		r.Enabled = *p.Enabled
	}
	if p.Keywords != nil {
		r.Keywords = p.Keywords
	}
	if p.TopicIDs != nil {
		r.TopicIDs = p.TopicIDs
	}
	if p.AllowedAccountIDs != nil {
		r.AllowedAccountIDs = p.AllowedAccountIDs
	}
	if p.SimilarityThreshold != nil {
		r.SimilarityThreshold = *p.SimilarityThreshold
	}
	if p.CooldownMinutes != nil {
		r.CooldownMinutes = *p.CooldownMinutes
	}
	if p.Channel != nil {
		r.Channel = *p.Channel
	}
}
