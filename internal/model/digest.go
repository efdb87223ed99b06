// Package model はドメインモデルを定義する。
package model

import "time"

// Digest はユーザーごとの日次ダイジェストを表す。
// 同一(user, date)に対して再生成を強制した場合は追記され、
// 作成日時が最新のものが有効なダイジェストとなる。
type Digest struct {
	ID              string
	UserID          string
	DigestDate      time.Time // 対象日（日付のみ有効）
	ContentMarkdown string
	CreatedAt       time.Time
}
