// Package daily は日次ダイジェストの定時生成ワーカーを提供する。
package daily

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/pinglet/internal/model"
	"github.com/hitoshi/pinglet/internal/repository"
)

// DigestComposerService はダイジェスト生成の実行インターフェース。
type DigestComposerService interface {
	// Compose は指定ユーザー・対象日のダイジェストを生成する。
	// 同一日の既存ダイジェストがある場合、forceRegenerateがfalseなら既存を返す。
	Compose(ctx context.Context, userID string, date time.Time, forceRegenerate bool) (*model.Digest, error)
}

// Job は設定時刻に全ユーザーの日次ダイジェストを生成するワーカー。
// 対象ユーザーは監視アカウントを1件以上持つユーザーから導出する。
type Job struct {
	accounts repository.AccountRepository
	composer DigestComposerService
	logger   *slog.Logger
	runAt    string // "HH:MM"
	location *time.Location
	now      func() time.Time
}

// NewJob はJobの新しいインスタンスを生成する。
// runAtは"HH:MM"形式の実行時刻。形式が不正な場合はエラーを返す。
func NewJob(
	accounts repository.AccountRepository,
	composer DigestComposerService,
	logger *slog.Logger,
	runAt string,
	location *time.Location,
) (*Job, error) {
	if _, err := time.Parse("15:04", runAt); err != nil {
		return nil, fmt.Errorf("ダイジェスト実行時刻の解析に失敗しました: %w", err)
	}
	return &Job{
		accounts: accounts,
		composer: composer,
		logger:   logger,
		runAt:    runAt,
		location: location,
		now:      time.Now,
	}, nil
}

// Start は毎日の設定時刻まで待機してダイジェスト生成を実行するループを開始する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *Job) Start(ctx context.Context) {
	j.logger.Info("ダイジェストワーカーを開始しました",
		slog.String("run_at", j.runAt),
		slog.String("timezone", j.location.String()),
	)

	for {
		next := j.nextRun(j.now().In(j.location))
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			j.logger.Info("ダイジェストワーカーを停止しました")
			return
		case <-timer.C:
			if err := j.RunOnce(ctx); err != nil {
				j.logger.Error("ダイジェスト生成サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は監視アカウントを持つ全ユーザーについて当日分のダイジェストを生成する。
// ユーザーごとの失敗はログに記録してサイクルを継続する。
func (j *Job) RunOnce(ctx context.Context) error {
	accounts, err := j.accounts.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("監視アカウントの取得に失敗しました: %w", err)
	}

	userIDs := distinctUserIDs(accounts)
	if len(userIDs) == 0 {
		j.logger.Info("ダイジェスト対象のユーザーはいません")
		return nil
	}

	date := j.now().In(j.location)
	j.logger.Info("ダイジェスト生成サイクルを開始します",
		slog.Int("user_count", len(userIDs)),
		slog.String("date", date.Format("2006-01-02")),
	)

	for _, userID := range userIDs {
		if _, err := j.composer.Compose(ctx, userID, date, false); err != nil {
			j.logger.Error("ダイジェストの生成に失敗しました",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}

	j.logger.Info("ダイジェスト生成サイクルが完了しました",
		slog.Int("user_count", len(userIDs)),
	)
	return nil
}

// nextRun はnow以降で最も近い実行時刻を返す。
// 当日の実行時刻を過ぎている場合は翌日の同時刻を返す。
func (j *Job) nextRun(now time.Time) time.Time {
	at, _ := time.Parse("15:04", j.runAt)
	next := time.Date(now.Year(), now.Month(), now.Day(), at.Hour(), at.Minute(), 0, 0, j.location)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// distinctUserIDs はアカウント一覧から重複を除いたユーザーID群を出現順で返す。
func distinctUserIDs(accounts []*model.MonitoredAccount) []string {
	seen := make(map[string]bool, len(accounts))
	var ids []string
	for _, a := range accounts {
		if !seen[a.UserID] {
			seen[a.UserID] = true
			ids = append(ids, a.UserID)
		}
	}
	return ids
}
