// Package ingestion はタイムラインの取り込みとアラート評価への引き渡しを提供する。
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/pinglet/internal/metrics"
	"github.com/hitoshi/pinglet/internal/model"
	"github.com/hitoshi/pinglet/internal/repository"
	"github.com/hitoshi/pinglet/internal/security"
	"github.com/hitoshi/pinglet/internal/xclient"
)

// alertProcessor は取り込んだポストをアラート評価へ引き渡すインターフェース。
type alertProcessor interface {
	ProcessPost(ctx context.Context, account *model.MonitoredAccount, post *model.Post) ([]*model.AlertLog, error)
}

// Stats は取り込みサイクル全体の統計。
type Stats struct {
	AccountsProcessed int
	PostsFetched      int
	PostsStored       int
	AlertsFired       int
	Errors            []string
}

// AccountStats はアカウント1件の取り込み統計。
type AccountStats struct {
	PostsFetched int
	PostsStored  int
	AlertsFired  int
}

// Service はタイムラインの取り込みを行う。
type Service struct {
	accounts  repository.AccountRepository
	posts     repository.PostRepository
	client    xclient.Client
	sanitizer security.TextSanitizerService
	engine    alertProcessor
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	accounts repository.AccountRepository,
	posts repository.PostRepository,
	client xclient.Client,
	sanitizer security.TextSanitizerService,
	engine alertProcessor,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	return &Service{
		accounts:  accounts,
		posts:     posts,
		client:    client,
		sanitizer: sanitizer,
		engine:    engine,
		metrics:   collector,
		logger:    logger,
	}
}

// IngestAll は全監視アカウントの新着ポストを取り込む。
// 1アカウントの失敗は他アカウントの取り込みを妨げず、統計のErrorsに集約される。
func (s *Service) IngestAll(ctx context.Context) (*Stats, error) {
	accounts, err := s.accounts.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("監視アカウントの取得に失敗しました: %w", err)
	}

	stats := &Stats{}
	for _, account := range accounts {
		result, err := s.ingest(ctx, account)
		if err != nil {
			s.logger.Error("アカウントの取り込みに失敗しました",
				slog.String("account_id", account.ID),
				slog.String("username", account.Username),
				slog.String("error", err.Error()),
			)
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", account.ID, err))
			continue
		}
		stats.AccountsProcessed++
		stats.PostsFetched += result.PostsFetched
		stats.PostsStored += result.PostsStored
		stats.AlertsFired += result.AlertsFired
	}

	return stats, nil
}

// IngestAccount は指定アカウントの新着ポストを取り込む。
// 存在しないアカウントIDは呼び出し側のバグか不整合であり、エラーを返す。
func (s *Service) IngestAccount(ctx context.Context, accountID string) (*AccountStats, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("アカウントの取得に失敗しました: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("アカウントが見つかりません: %s", accountID)
	}
	return s.ingest(ctx, account)
}

// ingest は新着ポストの取得・保存・アラート評価・カーソル前進を行う。
func (s *Service) ingest(ctx context.Context, account *model.MonitoredAccount) (*AccountStats, error) {
	stats := &AccountStats{}

	if account.XUserID == "" {
		s.logger.Warn("XユーザーIDが未解決のアカウントをスキップします",
			slog.String("account_id", account.ID),
			slog.String("username", account.Username),
		)
		return stats, nil
	}

	timeline, err := s.client.FetchTimeline(ctx, account.XUserID, account.LastSeenPostID)
	if err != nil {
		return nil, fmt.Errorf("タイムラインの取得に失敗しました: %w", err)
	}
	stats.PostsFetched = len(timeline)

	s.logger.Info("タイムラインを取得しました",
		slog.String("account_id", account.ID),
		slog.String("username", account.Username),
		slog.Int("post_count", len(timeline)),
		slog.String("since_id", account.LastSeenPostID),
	)

	for _, item := range timeline {
		post, err := s.store(ctx, account, item)
		if err != nil {
			s.logger.Error("ポストの保存に失敗しました",
				slog.String("x_post_id", item.XPostID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if post == nil {
			continue // 保存済みの重複
		}
		stats.PostsStored++

		fired, err := s.engine.ProcessPost(ctx, account, post)
		if err != nil {
			s.logger.Error("アラート評価に失敗しました",
				slog.String("post_id", post.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		stats.AlertsFired += len(fired)
	}

	s.metrics.RecordPostsIngested(stats.PostsStored)

	// タイムラインは降順のため先頭が最新。取得できた場合のみカーソルを前進させる。
	if len(timeline) > 0 {
		if err := s.accounts.UpdateLastSeenPostID(ctx, account.ID, timeline[0].XPostID); err != nil {
			return nil, fmt.Errorf("取り込みカーソルの更新に失敗しました: %w", err)
		}
		account.LastSeenPostID = timeline[0].XPostID
	}

	return stats, nil
}

// store はタイムライン上の1ポストをサニタイズして保存する。
// 保存済みの場合はnilを返す。
func (s *Service) store(ctx context.Context, account *model.MonitoredAccount, item xclient.TimelinePost) (*model.Post, error) {
	exists, err := s.posts.ExistsByAccountAndXPostID(ctx, account.ID, item.XPostID)
	if err != nil {
		return nil, fmt.Errorf("重複チェックに失敗しました: %w", err)
	}
	if exists {
		return nil, nil
	}

	post := &model.Post{
		ID:        uuid.NewString(),
		XPostID:   item.XPostID,
		AccountID: account.ID,
		CreatedAt: item.CreatedAt,
		Text:      s.sanitizer.SanitizeText(item.Text),
		URL:       item.URL,
		StoredAt:  time.Now().UTC(),
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("ポストの作成に失敗しました: %w", err)
	}
	return post, nil
}
