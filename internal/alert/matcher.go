package alert

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/pinglet/internal/embedding"
	"github.com/hitoshi/pinglet/internal/metrics"
	"github.com/hitoshi/pinglet/internal/model"
	"github.com/hitoshi/pinglet/internal/repository"
	"github.com/hitoshi/pinglet/internal/vector"
)

// MatchResult は1ルールのマッチ結果を表す。
type MatchResult struct {
	Rule        *model.AlertRule
	TriggerKind model.TriggerKind
	Score       *float64 // トピックマッチ時のみ設定
}

// RuleMatcher は1ポストを1ルールに対して評価する。
// キーワード条件とトピック条件は独立しており、キーワードが先に評価されるため、
// 両方が成立しうる場合はキーワードマッチが結果となる。
type RuleMatcher struct {
	posts    repository.PostRepository
	topics   repository.TopicRepository
	cooldown *CooldownTracker
	embedder embedding.Provider
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewRuleMatcher はRuleMatcherの新しいインスタンスを生成する。
func NewRuleMatcher(
	posts repository.PostRepository,
	topics repository.TopicRepository,
	cooldown *CooldownTracker,
	embedder embedding.Provider,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *RuleMatcher {
	return &RuleMatcher{
		posts:    posts,
		topics:   topics,
		cooldown: cooldown,
		embedder: embedder,
		metrics:  collector,
		logger:   logger,
	}
}

// Evaluate はポストをルールに対して評価する。マッチしない場合はnilを返す。
// チェックは低コストな順に短絡評価される:
//  1. アカウント許可リスト
//  2. クールダウン（埋め込み計算前に判定し、無駄なスコアリングを避ける）
//  3. キーワード（大文字小文字を区別しない部分一致）
//  4. トピック類似度（埋め込みの遅延計算を伴う）
//
// 副作用として、トピック評価時にポストの埋め込みを計算・永続化することがある。
// これはルールが最終的にマッチしない場合でも起こる。
func (m *RuleMatcher) Evaluate(ctx context.Context, post *model.Post, rule *model.AlertRule, now time.Time) (*MatchResult, error) {
	if len(rule.AllowedAccountIDs) > 0 && !containsString(rule.AllowedAccountIDs, post.AccountID) {
		return nil, nil
	}

	suppressed, err := m.cooldown.InCooldown(ctx, rule, post.AccountID, now)
	if err != nil {
		return nil, err
	}
	if suppressed {
		return nil, nil
	}

	if m.matchKeywords(post, rule) {
		return &MatchResult{Rule: rule, TriggerKind: model.TriggerKeyword}, nil
	}

	return m.matchTopics(ctx, post, rule)
}

// matchKeywords はルールのキーワードのいずれかがポスト本文に含まれるかを返す。
// 正規表現は使わず、単純な部分一致のみ。
func (m *RuleMatcher) matchKeywords(post *model.Post, rule *model.AlertRule) bool {
	if len(rule.Keywords) == 0 {
		return false
	}

	text := strings.ToLower(post.Text)
	for _, keyword := range rule.Keywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}

// matchTopics はルールの参照トピックとのコサイン類似度でマッチを判定する。
// 候補トピックは、類似度がトピック自身のしきい値とルールのしきい値の
// 両方以上の場合にのみ成立し、成立したトピックの最大スコアが結果となる。
func (m *RuleMatcher) matchTopics(ctx context.Context, post *model.Post, rule *model.AlertRule) (*MatchResult, error) {
	if len(rule.TopicIDs) == 0 {
		return nil, nil
	}

	if err := m.ensureEmbedding(ctx, post); err != nil {
		return nil, err
	}

	topics, err := m.topics.ListByIDs(ctx, rule.TopicIDs)
	if err != nil {
		return nil, fmt.Errorf("トピックの取得に失敗しました: %w", err)
	}

	matched := false
	best := 0.0
	for _, topic := range topics {
		if len(topic.Embedding) == 0 {
			continue
		}
		similarity := vector.Cosine(post.Embedding, topic.Embedding)
		if similarity >= topic.Threshold && similarity >= rule.SimilarityThreshold {
			matched = true
			if similarity > best {
				best = similarity
			}
		}
	}

	if !matched {
		return nil, nil
	}

	score := best
	return &MatchResult{Rule: rule, TriggerKind: model.TriggerTopic, Score: &score}, nil
}

// ensureEmbedding はポストの埋め込みを遅延計算して永続化する。
// 埋め込みプロバイダの失敗はゼロベクトルへ縮退させ、評価自体は継続する。
// 結果は即座に永続化されるため、同一ポストへの計算は高々1回となる。
// 並行して同じポストが評価された場合の二重書き込みは後勝ちで問題ない
// （同一テキストの埋め込みは決定的なため）。
func (m *RuleMatcher) ensureEmbedding(ctx context.Context, post *model.Post) error {
	if post.HasEmbedding() {
		return nil
	}

	vec, err := m.embedder.EmbedText(ctx, post.Text)
	if err != nil {
		m.logger.Error("埋め込みの生成に失敗しました",
			slog.String("post_id", post.ID),
			slog.String("error", err.Error()),
		)
		m.metrics.RecordProviderFailure("embedding")
		vec = embedding.ZeroVector()
	} else {
		m.metrics.RecordEmbeddingGenerated()
	}

	post.Embedding = vec

	if err := m.posts.UpdateEmbedding(ctx, post.ID, vec); err != nil {
		// 永続化失敗は今回の評価を妨げない。次回評価時に再計算される。
		m.logger.Error("埋め込みの保存に失敗しました",
			slog.String("post_id", post.ID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

func containsString(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}
