package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/pinglet/internal/model"
)

// PostgresAccountRepo はPostgreSQLを使用した監視アカウントリポジトリ。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

const accountColumns = `id, user_id, username, x_user_id, digest_enabled, alerts_enabled,
		        last_seen_post_id, created_at, updated_at`

func scanAccount(row interface{ Scan(...any) error }) (*model.MonitoredAccount, error) {
	account := &model.MonitoredAccount{}
	var xUserID, lastSeenPostID sql.NullString

	err := row.Scan(
		&account.ID, &account.UserID, &account.Username, &xUserID,
		&account.DigestEnabled, &account.AlertsEnabled, &lastSeenPostID,
		&account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	account.XUserID = nullStringValue(xUserID)
	account.LastSeenPostID = nullStringValue(lastSeenPostID)
	return account, nil
}

// FindByID は指定IDのアカウントを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByID(ctx context.Context, id string) (*model.MonitoredAccount, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM monitored_accounts WHERE id = $1`, id)

	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("監視アカウントの取得に失敗しました: %w", err)
	}
	return account, nil
}

// FindByUserAndUsername はユーザーIDとXユーザー名でアカウントを検索する。
func (r *PostgresAccountRepo) FindByUserAndUsername(ctx context.Context, userID, username string) (*model.MonitoredAccount, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM monitored_accounts WHERE user_id = $1 AND username = $2`,
		userID, username)

	account, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザー名による監視アカウントの検索に失敗しました: %w", err)
	}
	return account, nil
}

// ListByUserID はユーザーの監視アカウント一覧を返す。
func (r *PostgresAccountRepo) ListByUserID(ctx context.Context, userID string) ([]*model.MonitoredAccount, error) {
	return r.list(ctx,
		`SELECT `+accountColumns+` FROM monitored_accounts WHERE user_id = $1 ORDER BY created_at`,
		userID)
}

// ListDigestEnabledByUserID はダイジェスト対象のアカウント一覧を返す。
func (r *PostgresAccountRepo) ListDigestEnabledByUserID(ctx context.Context, userID string) ([]*model.MonitoredAccount, error) {
	return r.list(ctx,
		`SELECT `+accountColumns+` FROM monitored_accounts
		 WHERE user_id = $1 AND digest_enabled = TRUE ORDER BY created_at`,
		userID)
}

// ListAll は全ユーザーの監視アカウントを返す。
func (r *PostgresAccountRepo) ListAll(ctx context.Context) ([]*model.MonitoredAccount, error) {
	return r.list(ctx,
		`SELECT `+accountColumns+` FROM monitored_accounts ORDER BY created_at`)
}

func (r *PostgresAccountRepo) list(ctx context.Context, query string, args ...any) ([]*model.MonitoredAccount, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("監視アカウント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var accounts []*model.MonitoredAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("監視アカウントのスキャンに失敗しました: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("監視アカウント一覧の走査に失敗しました: %w", err)
	}

	return accounts, nil
}

// Create はアカウントを作成する。
func (r *PostgresAccountRepo) Create(ctx context.Context, account *model.MonitoredAccount) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO monitored_accounts
		 (id, user_id, username, x_user_id, digest_enabled, alerts_enabled, last_seen_post_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		account.ID, account.UserID, account.Username, nullString(account.XUserID),
		account.DigestEnabled, account.AlertsEnabled, nullString(account.LastSeenPostID),
		account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("監視アカウントの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はアカウント情報を更新する。
func (r *PostgresAccountRepo) Update(ctx context.Context, account *model.MonitoredAccount) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE monitored_accounts
		 SET username = $2, x_user_id = $3, digest_enabled = $4, alerts_enabled = $5,
		     last_seen_post_id = $6, updated_at = $7
		 WHERE id = $1`,
		account.ID, account.Username, nullString(account.XUserID),
		account.DigestEnabled, account.AlertsEnabled,
		nullString(account.LastSeenPostID), account.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("監視アカウントの更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateLastSeenPostID は取り込みカーソルを前進させる。
func (r *PostgresAccountRepo) UpdateLastSeenPostID(ctx context.Context, id, lastSeenPostID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE monitored_accounts SET last_seen_post_id = $2, updated_at = NOW() WHERE id = $1`,
		id, lastSeenPostID,
	)
	if err != nil {
		return fmt.Errorf("取り込みカーソルの更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDのアカウントを削除する。
func (r *PostgresAccountRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM monitored_accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("監視アカウントの削除に失敗しました: %w", err)
	}
	return nil
}
