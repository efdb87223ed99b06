package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/pinglet/internal/model"
)

// PostgresRuleRepo はPostgreSQLを使用したアラートルールリポジトリ。
// キーワード・トピックID・許可アカウントIDのリストはtext[]カラムに保存する。
type PostgresRuleRepo struct {
	db *sql.DB
}

// NewPostgresRuleRepo はPostgresRuleRepoを生成する。
func NewPostgresRuleRepo(db *sql.DB) *PostgresRuleRepo {
	return &PostgresRuleRepo{db: db}
}

const ruleColumns = `id, user_id, name, enabled, keywords, topic_ids, allowed_account_ids,
		        similarity_threshold, cooldown_minutes, channel, created_at, updated_at`

func scanRule(row interface{ Scan(...any) error }) (*model.AlertRule, error) {
	rule := &model.AlertRule{}
	var keywords, topicIDs, allowedAccountIDs pq.StringArray
	var channel string

	err := row.Scan(
		&rule.ID, &rule.UserID, &rule.Name, &rule.Enabled,
		&keywords, &topicIDs, &allowedAccountIDs,
		&rule.SimilarityThreshold, &rule.CooldownMinutes, &channel,
		&rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Keywords = []string(keywords)
	rule.TopicIDs = []string(topicIDs)
	rule.AllowedAccountIDs = []string(allowedAccountIDs)
	rule.Channel = model.NotificationChannel(channel)
	return rule, nil
}

// FindByID は指定IDのルールを取得する。見つからない場合はnilを返す。
func (r *PostgresRuleRepo) FindByID(ctx context.Context, id string) (*model.AlertRule, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM alert_rules WHERE id = $1`, id)

	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("アラートルールの取得に失敗しました: %w", err)
	}
	return rule, nil
}

// ListEnabledByUserID はユーザーの有効なルール一覧を返す。
func (r *PostgresRuleRepo) ListEnabledByUserID(ctx context.Context, userID string) ([]*model.AlertRule, error) {
	return r.list(ctx,
		`SELECT `+ruleColumns+` FROM alert_rules
		 WHERE user_id = $1 AND enabled = TRUE ORDER BY created_at`,
		userID)
}

// ListByUserID はユーザーの全ルール一覧を返す。
func (r *PostgresRuleRepo) ListByUserID(ctx context.Context, userID string) ([]*model.AlertRule, error) {
	return r.list(ctx,
		`SELECT `+ruleColumns+` FROM alert_rules WHERE user_id = $1 ORDER BY created_at`,
		userID)
}

func (r *PostgresRuleRepo) list(ctx context.Context, query string, args ...any) ([]*model.AlertRule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("アラートルール一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var rules []*model.AlertRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("アラートルールのスキャンに失敗しました: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("アラートルール一覧の走査に失敗しました: %w", err)
	}

	return rules, nil
}

// Create はルールを作成する。
func (r *PostgresRuleRepo) Create(ctx context.Context, rule *model.AlertRule) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO alert_rules
		 (id, user_id, name, enabled, keywords, topic_ids, allowed_account_ids,
		  similarity_threshold, cooldown_minutes, channel, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		rule.ID, rule.UserID, rule.Name, rule.Enabled,
		pq.StringArray(rule.Keywords), pq.StringArray(rule.TopicIDs),
		pq.StringArray(rule.AllowedAccountIDs),
		rule.SimilarityThreshold, rule.CooldownMinutes, string(rule.Channel),
		rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("アラートルールの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はルール情報を更新する。
func (r *PostgresRuleRepo) Update(ctx context.Context, rule *model.AlertRule) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE alert_rules
		 SET name = $2, enabled = $3, keywords = $4, topic_ids = $5, allowed_account_ids = $6,
		     similarity_threshold = $7, cooldown_minutes = $8, channel = $9, updated_at = $10
		 WHERE id = $1`,
		rule.ID, rule.Name, rule.Enabled,
		pq.StringArray(rule.Keywords), pq.StringArray(rule.TopicIDs),
		pq.StringArray(rule.AllowedAccountIDs),
		rule.SimilarityThreshold, rule.CooldownMinutes, string(rule.Channel),
		rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("アラートルールの更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDのルールを削除する。
func (r *PostgresRuleRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM alert_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("アラートルールの削除に失敗しました: %w", err)
	}
	return nil
}
