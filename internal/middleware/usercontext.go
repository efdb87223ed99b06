// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/pinglet/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はユーザーIDを格納するコンテキストキー。
var userIDContextKey = contextKey("user_id")

// NewUserContextMiddleware はX-User-IDヘッダからユーザーIDを取り出し、
// リクエストコンテキストへ格納するミドルウェアを返す。
// 認証自体は外側のゲートウェイ層が担い、このサービスはヘッダの値を
// 不透明なユーザー識別子として扱う。ヘッダがない場合は401を返す。
func NewUserContextMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := r.Header.Get("X-User-ID")
			if userID == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
					Code:     "UNAUTHORIZED",
					Message:  "ユーザーIDが特定できません。",
					Category: "auth",
					Action:   "X-User-IDヘッダを付与してリクエストしてください。",
				})
				return
			}

			ctx := ContextWithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ContextWithUserID はユーザーIDを格納したコンテキストを返す。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 格納されていない場合はエラーを返す。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("コンテキストにユーザーIDが存在しません")
	}
	return userID, nil
}
