// Package model はドメインモデルを定義する。
package model

import "time"

// MonitoredAccount は監視対象のX（Twitter）アカウントを表す。
type MonitoredAccount struct {
	ID             string
	UserID         string
	Username       string
	XUserID        string
	DigestEnabled  bool
	AlertsEnabled  bool
	LastSeenPostID string // 取り込み済み最新ポストのカーソル
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AccountPatch はアカウントの部分更新で変更可能なフィールドを列挙する。
// nilフィールドは変更しない。リフレクションではなく型付きマージで適用する。
type AccountPatch struct {
	DigestEnabled *bool
	AlertsEnabled *bool
}

// Apply はパッチの非nilフィールドをアカウントへマージする。
func (p AccountPatch) Apply(a *MonitoredAccount) {
	if p.DigestEnabled != nil {
		a.DigestEnabled = *p.DigestEnabled
	}
	if p.AlertsEnabled != nil {
		a.AlertsEnabled = *p.AlertsEnabled
	}
}
