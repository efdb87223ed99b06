// Package digest はトピック関連度によるポスト選別と日次ダイジェストの生成を提供する。
package digest

import (
	"sort"

	"github.com/hitoshi/pinglet/internal/model"
	"github.com/hitoshi/pinglet/internal/vector"
)

const (
	// softEpsilon は第2段フォールバックで「弱いが非ゼロの関連」とみなす下限。
	softEpsilon = 0.001
	// softLimit は第2段フォールバックで残す最大件数。
	softLimit = 5
)

// RelevanceSelector は候補ポスト群からトピックに関連するものを選別する。
//
// 固定しきい値だけでは意味的なゆらぎにより空の結果が頻発し、
// 空のダイジェストは過剰包含よりもユーザー体験が悪い。
// そのため3段階のフォールバックで選別する:
//  1. 最大類似度がしきい値以上の候補
//  2. 1が空なら、類似度が僅かでも正の候補を類似度降順で最大5件
//  3. 全スコアが0以下（埋め込みプロバイダ停止時のゼロベクトルが典型）なら
//     無選別で全候補を返す
type RelevanceSelector struct{}

// NewRelevanceSelector はRelevanceSelectorの新しいインスタンスを生成する。
func NewRelevanceSelector() *RelevanceSelector {
	return &RelevanceSelector{}
}

type scoredPost struct {
	post  *model.Post
	score float64
}

// SelectRelevant は候補ポストからトピック関連のものを選別して返す。
// トピックが未定義の場合は候補をそのまま返す（トピックなしは「全部に関心がある」を意味する）。
// 候補ごとのスコアは全トピック埋め込みとの最大コサイン類似度。
// 埋め込みを持たない候補はスコアリング対象外となる。
func (s *RelevanceSelector) SelectRelevant(candidates []*model.Post, topics []*model.Topic, threshold float64) []*model.Post {
	if len(topics) == 0 {
		return candidates
	}

	var scored []scoredPost
	for _, post := range candidates {
		if !post.HasEmbedding() {
			continue
		}
		best := 0.0
		for _, topic := range topics {
			if len(topic.Embedding) == 0 {
				continue
			}
			if sim := vector.Cosine(post.Embedding, topic.Embedding); sim > best {
				best = sim
			}
		}
		scored = append(scored, scoredPost{post: post, score: best})
	}

	// スコアリング可能な候補が1件もない場合は選別を諦めて全候補を返す
	if len(scored) == 0 {
		return candidates
	}

	var strict []*model.Post
	for _, sp := range scored {
		if sp.score >= threshold {
			strict = append(strict, sp.post)
		}
	}
	if len(strict) > 0 {
		return strict
	}

	var soft []scoredPost
	for _, sp := range scored {
		if sp.score > softEpsilon {
			soft = append(soft, sp)
		}
	}
	if len(soft) > 0 {
		sort.SliceStable(soft, func(i, j int) bool {
			return soft[i].score > soft[j].score
		})
		if len(soft) > softLimit {
			soft = soft[:softLimit]
		}
		result := make([]*model.Post, len(soft))
		for i, sp := range soft {
			result[i] = sp.post
		}
		return result
	}

	// 全スコアが0以下。埋め込みプロバイダが停止しゼロベクトルを返している
	// 兆候であり、空のダイジェストよりは無選別の候補を返す。
	allNonPositive := true
	for _, sp := range scored {
		if sp.score > 0 {
			allNonPositive = false
			break
		}
	}
	if allNonPositive {
		return candidates
	}

	return nil
}
