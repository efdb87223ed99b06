package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/pinglet/internal/model"
)

// PostgresDigestRepo はPostgreSQLを使用したダイジェストリポジトリ。
// ダイジェストは(user, date)ごとに追記専用で保存され、作成日時が最新のものが有効となる。
type PostgresDigestRepo struct {
	db *sql.DB
}

// NewPostgresDigestRepo はPostgresDigestRepoを生成する。
func NewPostgresDigestRepo(db *sql.DB) *PostgresDigestRepo {
	return &PostgresDigestRepo{db: db}
}

const digestColumns = `id, user_id, digest_date, content_markdown, created_at`

func scanDigest(row interface{ Scan(...any) error }) (*model.Digest, error) {
	digest := &model.Digest{}
	err := row.Scan(
		&digest.ID, &digest.UserID, &digest.DigestDate,
		&digest.ContentMarkdown, &digest.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return digest, nil
}

// FindLatestByUserAndDate は(user, date)の最新ダイジェストを取得する。
func (r *PostgresDigestRepo) FindLatestByUserAndDate(ctx context.Context, userID string, date time.Time) (*model.Digest, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+digestColumns+` FROM digests
		 WHERE user_id = $1 AND digest_date = $2
		 ORDER BY created_at DESC LIMIT 1`,
		userID, date,
	)

	digest, err := scanDigest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ダイジェストの取得に失敗しました: %w", err)
	}
	return digest, nil
}

// FindLatestByUser はユーザーの最新ダイジェストを取得する。
func (r *PostgresDigestRepo) FindLatestByUser(ctx context.Context, userID string) (*model.Digest, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+digestColumns+` FROM digests
		 WHERE user_id = $1
		 ORDER BY digest_date DESC, created_at DESC LIMIT 1`,
		userID,
	)

	digest, err := scanDigest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("最新ダイジェストの取得に失敗しました: %w", err)
	}
	return digest, nil
}

// Create はダイジェストを作成する。
func (r *PostgresDigestRepo) Create(ctx context.Context, digest *model.Digest) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO digests (id, user_id, digest_date, content_markdown, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		digest.ID, digest.UserID, digest.DigestDate, digest.ContentMarkdown, digest.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ダイジェストの作成に失敗しました: %w", err)
	}
	return nil
}
