// Package poll はタイムラインの定期取り込みワーカーを提供する。
package poll

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/pinglet/internal/ingestion"
	"github.com/hitoshi/pinglet/internal/model"
	"github.com/hitoshi/pinglet/internal/repository"
)

// AccountIngesterService は単一アカウントの取り込み実行インターフェース。
type AccountIngesterService interface {
	// IngestAccount は指定アカウントのタイムラインを取り込み、アラート評価まで行う。
	IngestAccount(ctx context.Context, accountID string) (*ingestion.AccountStats, error)
}

// Scheduler はタイムライン取り込みのスケジューリングと並列制御を行う。
// 設定間隔のティッカーで全監視アカウントを取得し、
// semaphoreパターンで最大並列数を制御しながら取り込みを実行する。
type Scheduler struct {
	accounts       repository.AccountRepository
	ingester       AccountIngesterService
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値5を使用する。
func NewScheduler(
	accounts repository.AccountRepository,
	ingester AccountIngesterService,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 5
	}
	return &Scheduler{
		accounts:       accounts,
		ingester:       ingester,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("取り込みスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("取り込みサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("取り込みスケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("取り込みサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は全監視アカウントを1回取得し、並列で取り込みを実行する。
// semaphoreパターンで最大並列数を制御する。アカウントごとの失敗は
// ログに記録してサイクルを継続する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	accounts, err := s.accounts.ListAll(ctx)
	if err != nil {
		return err
	}

	if len(accounts) == 0 {
		s.logger.Info("取り込み対象のアカウントはありません")
		return nil
	}

	s.logger.Info("取り込みサイクルを開始します",
		slog.Int("account_count", len(accounts)),
	)

	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, account := range accounts {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(a *model.MonitoredAccount) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if _, err := s.ingester.IngestAccount(ctx, a.ID); err != nil {
				s.logger.Error("アカウントの取り込みに失敗しました",
					slog.String("account_id", a.ID),
					slog.String("username", a.Username),
					slog.String("error", err.Error()),
				)
			}
		}(account)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("取り込みサイクルが完了しました",
		slog.Int("account_count", len(accounts)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
