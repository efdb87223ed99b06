package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/pinglet/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用したポストリポジトリ。
// 埋め込みベクトルはdouble precision[]カラムに正準形で保存する。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

const postColumns = `id, x_post_id, account_id, created_at, text, url, embedding, stored_at`

func scanPost(row interface{ Scan(...any) error }) (*model.Post, error) {
	post := &model.Post{}
	var url sql.NullString
	var embedding pq.Float64Array

	err := row.Scan(
		&post.ID, &post.XPostID, &post.AccountID, &post.CreatedAt,
		&post.Text, &url, &embedding, &post.StoredAt,
	)
	if err != nil {
		return nil, err
	}

	post.URL = nullStringValue(url)
	if len(embedding) > 0 {
		post.Embedding = []float64(embedding)
	}
	return post, nil
}

// FindByID は指定IDのポストを取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = $1`, id)

	post, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ポストの取得に失敗しました: %w", err)
	}
	return post, nil
}

// ExistsByAccountAndXPostID は同一ポストが保存済みかどうかを返す。
func (r *PostgresPostRepo) ExistsByAccountAndXPostID(ctx context.Context, accountID, xPostID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM posts WHERE account_id = $1 AND x_post_id = $2)`,
		accountID, xPostID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ポストの存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// Create はポストを作成する。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) error {
	var embedding any
	if post.HasEmbedding() {
		embedding = pq.Float64Array(post.Embedding)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (id, x_post_id, account_id, created_at, text, url, embedding, stored_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		post.ID, post.XPostID, post.AccountID, post.CreatedAt,
		post.Text, nullString(post.URL), embedding, post.StoredAt,
	)
	if err != nil {
		return fmt.Errorf("ポストの作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateEmbedding はポストの埋め込みベクトルを保存する。後勝ちで上書きする。
func (r *PostgresPostRepo) UpdateEmbedding(ctx context.Context, postID string, embedding []float64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE posts SET embedding = $2 WHERE id = $1`,
		postID, pq.Float64Array(embedding),
	)
	if err != nil {
		return fmt.Errorf("埋め込みベクトルの保存に失敗しました: %w", err)
	}
	return nil
}

// ListRecentByAccount はアカウントの最新ポストを作成日時降順で最大limit件返す。
func (r *PostgresPostRepo) ListRecentByAccount(ctx context.Context, accountID string, limit int) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+postColumns+` FROM posts
		 WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2`,
		accountID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("ポスト一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var posts []*model.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("ポストのスキャンに失敗しました: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ポスト一覧の走査に失敗しました: %w", err)
	}

	return posts, nil
}
