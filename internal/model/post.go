// Package model はドメインモデルを定義する。
package model

import "time"

// EmbeddingDimension は埋め込みベクトルの固定次元数。
// OpenAI text-embedding-3-small の次元数に合わせている。
const EmbeddingDimension = 1536

// Post は取り込み済みのXポストを表す。
// Embeddingは遅延計算されるため、計算前はnilのままとなる。
type Post struct {
	ID        string
	XPostID   string
	AccountID string // 投稿元MonitoredAccountのID
	CreatedAt time.Time
	Text      string // サニタイズ済みプレーンテキスト
	URL       string
	Embedding []float64 // 未計算の場合はnil
	StoredAt  time.Time
}

// HasEmbedding は埋め込みベクトルが計算済みかどうかを返す。
func (p *Post) HasEmbedding() bool {
	return len(p.Embedding) > 0
}
