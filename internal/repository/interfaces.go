// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/pinglet/internal/model"
)

// AccountRepository は監視アカウントの永続化インターフェース。
type AccountRepository interface {
	// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.MonitoredAccount, error)

	// FindByUserAndUsername はユーザーIDとXユーザー名でアカウントを検索する。
	// 見つからない場合はnilを返す。
	FindByUserAndUsername(ctx context.Context, userID, username string) (*model.MonitoredAccount, error)

	// ListByUserID はユーザーの監視アカウント一覧を返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.MonitoredAccount, error)

	// ListDigestEnabledByUserID はダイジェスト対象のアカウント一覧を返す。
	ListDigestEnabledByUserID(ctx context.Context, userID string) ([]*model.MonitoredAccount, error)

	// ListAll は全ユーザーの監視アカウントを返す。ワーカーの取り込みサイクルで使用する。
	ListAll(ctx context.Context) ([]*model.MonitoredAccount, error)

	// Create はアカウントを作成する。
	Create(ctx context.Context, account *model.MonitoredAccount) error

	// Update はアカウント情報を更新する。
	Update(ctx context.Context, account *model.MonitoredAccount) error

	// UpdateLastSeenPostID は取り込みカーソルを前進させる。
	UpdateLastSeenPostID(ctx context.Context, id, lastSeenPostID string) error

	// Delete は指定IDのアカウントを削除する。
	Delete(ctx context.Context, id string) error
}

// PostRepository はポストデータの永続化インターフェース。
type PostRepository interface {
	// FindByID は指定IDのポストを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// ExistsByAccountAndXPostID は同一ポストが保存済みかどうかを返す。
	ExistsByAccountAndXPostID(ctx context.Context, accountID, xPostID string) (bool, error)

	// Create はポストを作成する。
	Create(ctx context.Context, post *model.Post) error

	// UpdateEmbedding はポストの埋め込みベクトルを保存する。
	// 埋め込みはテキストに対して決定的なため、同時書き込みは後勝ちで問題ない。
	UpdateEmbedding(ctx context.Context, postID string, embedding []float64) error

	// ListRecentByAccount はアカウントの最新ポストを作成日時降順で最大limit件返す。
	ListRecentByAccount(ctx context.Context, accountID string, limit int) ([]*model.Post, error)
}

// TopicRepository はトピックデータの永続化インターフェース。
type TopicRepository interface {
	// FindByID は指定IDのトピックを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Topic, error)

	// ListByIDs は指定ID群のトピックを返す。存在しないIDは無視する。
	ListByIDs(ctx context.Context, ids []string) ([]*model.Topic, error)

	// ListByUserID はユーザーのトピック一覧を作成日時昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Topic, error)

	// Create はトピックを作成する。
	Create(ctx context.Context, topic *model.Topic) error

	// Update はトピック情報を更新する。
	Update(ctx context.Context, topic *model.Topic) error

	// Delete は指定IDのトピックを削除する。
	Delete(ctx context.Context, id string) error
}

// RuleRepository はアラートルールの永続化インターフェース。
type RuleRepository interface {
	// FindByID は指定IDのルールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.AlertRule, error)

	// ListEnabledByUserID はユーザーの有効なルール一覧を返す。
	ListEnabledByUserID(ctx context.Context, userID string) ([]*model.AlertRule, error)

	// ListByUserID はユーザーの全ルール一覧を返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.AlertRule, error)

	// Create はルールを作成する。
	Create(ctx context.Context, rule *model.AlertRule) error

	// Update はルール情報を更新する。
	Update(ctx context.Context, rule *model.AlertRule) error

	// Delete は指定IDのルールを削除する。
	Delete(ctx context.Context, id string) error
}

// AlertLogRepository はアラート発火記録の永続化インターフェース。
type AlertLogRepository interface {
	// ExistsRecentByRuleAndAccount は(rule, account)ペアでsince以降の
	// 発火記録が存在するかどうかを返す。クールダウン判定に使用する。
	ExistsRecentByRuleAndAccount(ctx context.Context, ruleID, accountID string, since time.Time) (bool, error)

	// CreateGated はクールダウン窓の再チェックと挿入を
	// (rule, account)単位のアドバイザリロック付きトランザクションで実行する。
	// 同一アカウントのポストが並行処理された場合でも、クールダウン付きルールは
	// 高々1件しかゲートを通過しない。挿入された場合はtrueを返す。
	// cooldownが0以下の場合は再チェックなしで常に挿入する。
	CreateGated(ctx context.Context, log *model.AlertLog, accountID string, cooldown time.Duration) (bool, error)

	// UpdateStatus は発火記録の送信状態を更新する。
	UpdateStatus(ctx context.Context, id string, status model.AlertStatus) error

	// ListByUserID はユーザーのルールに紐づく発火記録を送信日時降順で最大limit件返す。
	ListByUserID(ctx context.Context, userID string, limit int) ([]*model.AlertLog, error)
}

// DigestRepository はダイジェストの永続化インターフェース。
type DigestRepository interface {
	// FindLatestByUserAndDate は(user, date)の最新ダイジェストを取得する。
	// 再生成で複数存在する場合は作成日時が最新のものを返す。見つからない場合はnil。
	FindLatestByUserAndDate(ctx context.Context, userID string, date time.Time) (*model.Digest, error)

	// FindLatestByUser はユーザーの最新ダイジェストを取得する。見つからない場合はnil。
	FindLatestByUser(ctx context.Context, userID string) (*model.Digest, error)

	// Create はダイジェストを作成する。既存レコードの変更・削除は行わない（追記専用）。
	Create(ctx context.Context, digest *model.Digest) error
}
