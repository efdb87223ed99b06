// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, account, rule, topic, digest, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAccountNotFound  = "ACCOUNT_NOT_FOUND"
	ErrCodeRuleNotFound     = "RULE_NOT_FOUND"
	ErrCodeTopicNotFound    = "TOPIC_NOT_FOUND"
	ErrCodePostNotFound     = "POST_NOT_FOUND"
	ErrCodeDigestNotFound   = "DIGEST_NOT_FOUND"
	ErrCodeInvalidThreshold = "INVALID_THRESHOLD"
	ErrCodeInvalidCooldown  = "INVALID_COOLDOWN"
	ErrCodeInvalidChannel   = "INVALID_CHANNEL"
	ErrCodeUsernameResolve  = "USERNAME_RESOLVE_FAILED"
)

// NewAccountNotFoundError は監視アカウント未検出エラーを生成する。
func NewAccountNotFoundError(accountID string) *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotFound,
		Message:  fmt.Sprintf("指定された監視アカウントが見つかりません: %s", accountID),
		Category: "account",
		Action:   "アカウントIDを確認してください。",
	}
}

// NewRuleNotFoundError はアラートルール未検出エラーを生成する。
func NewRuleNotFoundError(ruleID string) *APIError {
	return &APIError{
		Code:     ErrCodeRuleNotFound,
		Message:  fmt.Sprintf("指定されたアラートルールが見つかりません: %s", ruleID),
		Category: "rule",
		Action:   "ルールIDを確認してください。",
	}
}

// NewTopicNotFoundError はトピック未検出エラーを生成する。
func NewTopicNotFoundError(topicID string) *APIError {
	return &APIError{
		Code:     ErrCodeTopicNotFound,
		Message:  fmt.Sprintf("指定されたトピックが見つかりません: %s", topicID),
		Category: "topic",
		Action:   "トピックIDを確認してください。",
	}
}

// NewPostNotFoundError はポスト未検出エラーを生成する。
func NewPostNotFoundError(postID string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定されたポストが見つかりません: %s", postID),
		Category: "system",
		Action:   "ポストIDを確認してください。",
	}
}

// NewDigestNotFoundError はダイジェスト未検出エラーを生成する。
func NewDigestNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeDigestNotFound,
		Message:  "ダイジェストが見つかりません。",
		Category: "digest",
		Action:   "ダイジェスト生成後に再度お試しください。",
	}
}

// NewInvalidThresholdError は無効な類似度しきい値エラーを生成する。
func NewInvalidThresholdError(value float64) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidThreshold,
		Message:  fmt.Sprintf("無効な類似度しきい値です: %g", value),
		Category: "validation",
		Action:   "しきい値は0.0から1.0の範囲で指定してください。",
	}
}

// NewInvalidCooldownError は無効なクールダウン時間エラーを生成する。
func NewInvalidCooldownError(minutes int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCooldown,
		Message:  fmt.Sprintf("無効なクールダウン時間です: %d分", minutes),
		Category: "validation",
		Action:   "クールダウンは0以上の分数で指定してください。",
	}
}

// NewInvalidChannelError は無効な通知チャネルエラーを生成する。
func NewInvalidChannelError(channel string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidChannel,
		Message:  fmt.Sprintf("無効な通知チャネルです: %s", channel),
		Category: "validation",
		Action:   "チャネルには log または webhook を指定してください。",
	}
}

// NewUsernameResolveError はユーザー名解決失敗エラーを生成する。
func NewUsernameResolveError(username string) *APIError {
	return &APIError{
		Code:     ErrCodeUsernameResolve,
		Message:  fmt.Sprintf("Xユーザー名を解決できませんでした: %s", username),
		Category: "account",
		Action:   "ユーザー名のつづりを確認し、しばらく待ってから再度お試しください。",
	}
}
