package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/pinglet/internal/model"
)

// PostgresTopicRepo はPostgreSQLを使用したトピックリポジトリ。
type PostgresTopicRepo struct {
	db *sql.DB
}

// NewPostgresTopicRepo はPostgresTopicRepoを生成する。
func NewPostgresTopicRepo(db *sql.DB) *PostgresTopicRepo {
	return &PostgresTopicRepo{db: db}
}

const topicColumns = `id, user_id, name, description, embedding, threshold, created_at, updated_at`

func scanTopic(row interface{ Scan(...any) error }) (*model.Topic, error) {
	topic := &model.Topic{}
	var embedding pq.Float64Array

	err := row.Scan(
		&topic.ID, &topic.UserID, &topic.Name, &topic.Description,
		&embedding, &topic.Threshold, &topic.CreatedAt, &topic.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(embedding) > 0 {
		topic.Embedding = []float64(embedding)
	}
	return topic, nil
}

// FindByID は指定IDのトピックを取得する。見つからない場合はnilを返す。
func (r *PostgresTopicRepo) FindByID(ctx context.Context, id string) (*model.Topic, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+topicColumns+` FROM topics WHERE id = $1`, id)

	topic, err := scanTopic(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("トピックの取得に失敗しました: %w", err)
	}
	return topic, nil
}

// ListByIDs は指定ID群のトピックを返す。存在しないIDは無視する。
func (r *PostgresTopicRepo) ListByIDs(ctx context.Context, ids []string) ([]*model.Topic, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.list(ctx,
		`SELECT `+topicColumns+` FROM topics WHERE id = ANY($1) ORDER BY created_at`,
		pq.StringArray(ids))
}

// ListByUserID はユーザーのトピック一覧を作成日時昇順で返す。
func (r *PostgresTopicRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Topic, error) {
	return r.list(ctx,
		`SELECT `+topicColumns+` FROM topics WHERE user_id = $1 ORDER BY created_at`,
		userID)
}

func (r *PostgresTopicRepo) list(ctx context.Context, query string, args ...any) ([]*model.Topic, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("トピック一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var topics []*model.Topic
	for rows.Next() {
		topic, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("トピックのスキャンに失敗しました: %w", err)
		}
		topics = append(topics, topic)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("トピック一覧の走査に失敗しました: %w", err)
	}

	return topics, nil
}

// Create はトピックを作成する。
func (r *PostgresTopicRepo) Create(ctx context.Context, topic *model.Topic) error {
	var embedding any
	if len(topic.Embedding) > 0 {
		embedding = pq.Float64Array(topic.Embedding)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO topics (id, user_id, name, description, embedding, threshold, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		topic.ID, topic.UserID, topic.Name, topic.Description,
		embedding, topic.Threshold, topic.CreatedAt, topic.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("トピックの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はトピック情報を更新する。
func (r *PostgresTopicRepo) Update(ctx context.Context, topic *model.Topic) error {
	var embedding any
	if len(topic.Embedding) > 0 {
		embedding = pq.Float64Array(topic.Embedding)
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE topics
		 SET name = $2, description = $3, embedding = $4, threshold = $5, updated_at = $6
		 WHERE id = $1`,
		topic.ID, topic.Name, topic.Description, embedding, topic.Threshold, topic.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("トピックの更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDのトピックを削除する。
func (r *PostgresTopicRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM topics WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("トピックの削除に失敗しました: %w", err)
	}
	return nil
}
