// Package model はドメインモデルを定義する。
package model

import "time"

// DefaultTopicThreshold はトピックの類似度しきい値のデフォルト値。
const DefaultTopicThreshold = 0.7

// Topic はセマンティックマッチング用のトピックを表す。
// 埋め込みベクトルと、そのトピック固有の類似度しきい値を持つ。
type Topic struct {
	ID          string
	UserID      string
	Name        string
	Description string
	Embedding   []float64 // 未計算の場合はnil
	Threshold   float64   // コサイン類似度しきい値（0.0〜1.0）
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TopicPatch はトピックの部分更新で変更可能なフィールドを列挙する。
type TopicPatch struct {
	Name        *string
	Description *string
	Threshold   *float64
}

// Apply はパッチの非nilフィールドをトピックへマージする。
func (p TopicPatch) Apply(t *Topic) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Threshold != nil {
		t.Threshold = *p.Threshold
	}
}
