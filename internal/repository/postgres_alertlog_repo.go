package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/pinglet/internal/model"
)

// PostgresAlertLogRepo はPostgreSQLを使用したアラート発火記録リポジトリ。
type PostgresAlertLogRepo struct {
	db *sql.DB
}

// NewPostgresAlertLogRepo はPostgresAlertLogRepoを生成する。
func NewPostgresAlertLogRepo(db *sql.DB) *PostgresAlertLogRepo {
	return &PostgresAlertLogRepo{db: db}
}

// ExistsRecentByRuleAndAccount は(rule, account)ペアでsince以降の発火記録が存在するかどうかを返す。
// クールダウンは(ルール, アカウント)単位であり、ルール単位のグローバル抑制ではない。
func (r *PostgresAlertLogRepo) ExistsRecentByRuleAndAccount(ctx context.Context, ruleID, accountID string, since time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(
		   SELECT 1 FROM alerts_log a
		   JOIN posts p ON a.post_id = p.id
		   WHERE a.rule_id = $1 AND p.account_id = $2 AND a.sent_at >= $3
		 )`,
		ruleID, accountID, since,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("クールダウン判定クエリに失敗しました: %w", err)
	}
	return exists, nil
}

// CreateGated はクールダウン窓の再チェックと挿入を(rule, account)単位の
// アドバイザリロック付きトランザクションで実行する。
//
// マッチ判定時のクールダウンチェックと記録の可視化の間には隙間があるため、
// 同一アカウントの2ポストが並行処理されると両方がゲートを通過しうる。
// pg_advisory_xact_lockで(rule_id, account_id)ごとに直列化し、
// ロック取得後にクールダウン窓を再チェックすることでこの競合を防ぐ。
// ロックはトランザクション終了時に自動解放され、外部プロバイダ呼び出しを
// またいで保持されることはない。
func (r *PostgresAlertLogRepo) CreateGated(ctx context.Context, log *model.AlertLog, accountID string, cooldown time.Duration) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	if cooldown > 0 {
		// (rule_id, account_id)単位のアドバイザリロックを取得する
		_, err = tx.ExecContext(ctx,
			`SELECT pg_advisory_xact_lock(hashtext($1 || ':' || $2))`,
			log.RuleID, accountID,
		)
		if err != nil {
			return false, fmt.Errorf("アドバイザリロックの取得に失敗しました: %w", err)
		}

		// ロック取得後にクールダウン窓を再チェックする
		var exists bool
		err = tx.QueryRowContext(ctx,
			`SELECT EXISTS(
			   SELECT 1 FROM alerts_log a
			   JOIN posts p ON a.post_id = p.id
			   WHERE a.rule_id = $1 AND p.account_id = $2 AND a.sent_at >= $3
			 )`,
			log.RuleID, accountID, log.SentAt.Add(-cooldown),
		).Scan(&exists)
		if err != nil {
			return false, fmt.Errorf("クールダウンの再チェックに失敗しました: %w", err)
		}
		if exists {
			// 並行ポストが先にゲートを通過した。記録は作成しない。
			return false, nil
		}
	}

	var score any
	if log.Score != nil {
		score = *log.Score
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO alerts_log (id, rule_id, post_id, trigger_kind, score, status, sent_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		log.ID, log.RuleID, log.PostID, string(log.TriggerKind), score,
		string(log.Status), log.SentAt,
	)
	if err != nil {
		return false, fmt.Errorf("アラート記録の作成に失敗しました: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("アラート記録のコミットに失敗しました: %w", err)
	}
	return true, nil
}

// UpdateStatus は発火記録の送信状態を更新する。
func (r *PostgresAlertLogRepo) UpdateStatus(ctx context.Context, id string, status model.AlertStatus) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE alerts_log SET status = $2 WHERE id = $1`,
		id, string(status),
	)
	if err != nil {
		return fmt.Errorf("アラート記録の状態更新に失敗しました: %w", err)
	}
	return nil
}

// ListByUserID はユーザーのルールに紐づく発火記録を送信日時降順で最大limit件返す。
func (r *PostgresAlertLogRepo) ListByUserID(ctx context.Context, userID string, limit int) ([]*model.AlertLog, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.rule_id, a.post_id, a.trigger_kind, a.score, a.status, a.sent_at
		 FROM alerts_log a
		 JOIN alert_rules r ON a.rule_id = r.id
		 WHERE r.user_id = $1
		 ORDER BY a.sent_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("アラート記録一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var logs []*model.AlertLog
	for rows.Next() {
		log := &model.AlertLog{}
		var score sql.NullFloat64
		var triggerKind, status string

		err := rows.Scan(&log.ID, &log.RuleID, &log.PostID, &triggerKind, &score, &status, &log.SentAt)
		if err != nil {
			return nil, fmt.Errorf("アラート記録のスキャンに失敗しました: %w", err)
		}

		log.TriggerKind = model.TriggerKind(triggerKind)
		log.Status = model.AlertStatus(status)
		if score.Valid {
			log.Score = &score.Float64
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("アラート記録一覧の走査に失敗しました: %w", err)
	}

	return logs, nil
}
