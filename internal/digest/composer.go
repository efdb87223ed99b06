package digest

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

// recentWindow は選別対象とするアカウントごとの直近ポスト件数。
// 全体の上限ではなく、ソース単位のクォータ。
const recentWindow = 10

// placeholderBody はダイジェスト対象アカウントが1件もない場合の本文。
const placeholderBody = "# Daily Digest\n\nNo monitored accounts are enabled for digests. Enable the digest flag on an account to receive daily summaries."

// Composer はユーザーの日次ダイジェストを生成する。
type Composer struct {
	accounts  repository.AccountRepository
	posts     repository.PostRepository
	topics    repository.TopicRepository
	digests   repository.DigestRepository
	selector  *RelevanceSelector
	generator llm.TextGenerator
	notifier  notifier.Notifier
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	now       func() time.Time
}

// NewComposer はComposerの新しいインスタンスを生成する。
func NewComposer(
	accounts repository.AccountRepository,
	posts repository.PostRepository,
	topics repository.TopicRepository,
	digests repository.DigestRepository,
	selector *RelevanceSelector,
	generator llm.TextGenerator,
	sender notifier.Notifier,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Composer {
	return &Composer{
		accounts:  accounts,
		posts:     posts,
		topics:    topics,
		digests:   digests,
		selector:  selector,
		generator: generator,
		notifier:  sender,
		metrics:   collector,
		logger:    logger,
		now:       time.Now,
	}
}

// Compose は指定ユーザー・日付のダイジェストを生成する。
// 同(user, date)のダイジェストが既に存在しforceRegenerateがfalseの場合は、
// 新規作成せず最新の既存レコードを返す（冪等）。
// forceRegenerateがtrueの場合は既存レコードを変更・削除せず常に追記する。
// 通知送信はベストエフォートで、失敗してもダイジェスト作成自体は成功として扱う。
func (c *Composer) Compose(ctx context.Context, userID string, date time.Time, forceRegenerate bool) (*model.Digest, error) {
	start := c.now()

	if !forceRegenerate {
		existing, err := c.digests.FindLatestByUserAndDate(ctx, userID, date)
		if err != nil {
			return nil, fmt.Errorf("既存ダイジェストの確認に失敗しました: %w", err)
		}
		if existing != nil {
			c.logger.Info("既存のダイジェストを返します",
				slog.String("user_id", userID),
				slog.String("digest_date", date.Format("2006-01-02")),
				slog.String("digest_id", existing.ID),
			)
			return existing, nil
		}
	}

	body, err := c.buildBody(ctx, userID)
	if err != nil {
		return nil, err
	}

	digest := &model.Digest{
		ID:              uuid.NewString(),
		UserID:          userID,
		DigestDate:      date,
		ContentMarkdown: body,
		CreatedAt:       c.now(),
	}
	if err := c.digests.Create(ctx, digest); err != nil {
		return nil, fmt.Errorf("ダイジェストの保存に失敗しました: %w", err)
	}

	c.metrics.RecordDigestLatency(c.now().Sub(start))

	// 通知失敗はログのみ。ダイジェストレコードは作成済みとして扱う。
	if err := c.notifier.SendDigest(ctx, digest); err != nil {
		c.logger.Error("ダイジェストの送信に失敗しました",
			slog.String("digest_id", digest.ID),
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		c.metrics.RecordDispatchFailure("digest")
	}

	return digest, nil
}

// buildBody はユーザーの監視アカウントからダイジェスト本文を構築する。
func (c *Composer) buildBody(ctx context.Context, userID string) (string, error) {
	accounts, err := c.accounts.ListDigestEnabledByUserID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("ダイジェスト対象アカウントの取得に失敗しました: %w", err)
	}
	if len(accounts) == 0 {
		return placeholderBody, nil
	}

	topics, err := c.topics.ListByUserID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("トピックの取得に失敗しました: %w", err)
	}

	// 複数トピックがある場合も先頭トピックのしきい値を代表値として使う
	threshold := model.DefaultTopicThreshold
	if len(topics) > 0 {
		threshold = topics[0].Threshold
	}

	var sections []llm.DigestSection
	totalCandidates := 0
	for _, account := range accounts {
		candidates, err := c.posts.ListRecentByAccount(ctx, account.ID, recentWindow)
		if err != nil {
			c.logger.Error("候補ポストの取得に失敗しました",
				slog.String("account_id", account.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		totalCandidates += len(candidates)

		selected := c.selector.SelectRelevant(candidates, topics, threshold)
		if len(selected) == 0 {
			continue
		}

		texts := make([]string, len(selected))
		for i, post := range selected {
			texts[i] = post.Text
		}
		sections = append(sections, llm.DigestSection{Username: account.Username, Posts: texts})
	}

	if len(sections) == 0 {
		if totalCandidates > 0 {
			return fmt.Sprintf("# Daily Digest\n\nAnalyzed %d recent posts, but none matched your configured topics.", totalCandidates), nil
		}
		return "# Daily Digest\n\nNo new posts were found from your monitored accounts.", nil
	}

	return c.generator.ComposeDigest(ctx, sections), nil
}
