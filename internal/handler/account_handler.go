package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/pinglet/internal/middleware"
	"github.com/hitoshi/pinglet/internal/model"
	"github.com/hitoshi/pinglet/internal/repository"
)

// UsernameResolver はXユーザー名をXユーザーIDへ解決するインターフェース。
// xclient.Clientのうちハンドラーが必要とする操作のみを切り出している。
type UsernameResolver interface {
	// ResolveUsername はユーザー名をXユーザーIDへ解決する。見つからない場合は空文字を返す。
	ResolveUsername(ctx context.Context, username string) (string, error)
}

// AccountHandler は監視アカウント管理のHTTPハンドラー。
type AccountHandler struct {
	accounts repository.AccountRepository
	resolver UsernameResolver
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(accounts repository.AccountRepository, resolver UsernameResolver) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		resolver: resolver,
	}
}

// createAccountRequest はアカウント登録リクエストのボディ。
type createAccountRequest struct {
	Username      string `json:"username"`
	DigestEnabled bool   `json:"digest_enabled"`
	AlertsEnabled bool   `json:"alerts_enabled"`
}

// patchAccountRequest はアカウント部分更新リクエストのボディ。
type patchAccountRequest struct {
	DigestEnabled *bool `json:"digest_enabled"`
	AlertsEnabled *bool `json:"alerts_enabled"`
}

// accountResponse は監視アカウントのAPIレスポンス。
type accountResponse struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	XUserID        string    `json:"x_user_id"`
	DigestEnabled  bool      `json:"digest_enabled"`
	AlertsEnabled  bool      `json:"alerts_enabled"`
	LastSeenPostID string    `json:"last_seen_post_id"`
	CreatedAt      time.Time `json:"created_at"`
}

func toAccountResponse(a *model.MonitoredAccount) accountResponse {
	return accountResponse{
		ID:             a.ID,
		Username:       a.Username,
		XUserID:        a.XUserID,
		DigestEnabled:  a.DigestEnabled,
		AlertsEnabled:  a.AlertsEnabled,
		LastSeenPostID: a.LastSeenPostID,
		CreatedAt:      a.CreatedAt,
	}
}

// CreateAccount は監視アカウントを登録する。
// POST /api/accounts
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	username := strings.TrimPrefix(strings.TrimSpace(req.Username), "@")
	if username == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "ユーザー名が空です。",
			Category: "validation",
			Action:   "監視するXユーザー名を指定してください。",
		})
		return
	}

	existing, err := h.accounts.FindByUserAndUsername(r.Context(), userID, username)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if existing != nil {
		writeAPIErrorResponse(w, http.StatusConflict, &model.APIError{
			Code:     "DUPLICATE_ACCOUNT",
			Message:  "このアカウントは既に監視対象に登録されています。",
			Category: "account",
			Action:   "登録済みのアカウント一覧を確認してください。",
		})
		return
	}

	xUserID, err := h.resolver.ResolveUsername(r.Context(), username)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if xUserID == "" {
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity, model.NewUsernameResolveError(username))
		return
	}

	now := time.Now().UTC()
	account := &model.MonitoredAccount{
		ID:            uuid.NewString(),
		UserID:        userID,
		Username:      username,
		XUserID:       xUserID,
		DigestEnabled: req.DigestEnabled,
		AlertsEnabled: req.AlertsEnabled,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := h.accounts.Create(r.Context(), account); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountResponse(account))
}

// ListAccounts はユーザーの監視アカウント一覧を返す。
// GET /api/accounts
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	accounts, err := h.accounts.ListByUserID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		resp = append(resp, toAccountResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetAccount は監視アカウントの詳細を返す。
// GET /api/accounts/{id}
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, ok := h.findOwned(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

// PatchAccount は監視アカウントのフラグを部分更新する。
// PATCH /api/accounts/{id}
func (h *AccountHandler) PatchAccount(w http.ResponseWriter, r *http.Request) {
	account, ok := h.findOwned(w, r)
	if !ok {
		return
	}

	var req patchAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	patch := model.AccountPatch{
		DigestEnabled: req.DigestEnabled,
		AlertsEnabled: req.AlertsEnabled,
	}
	patch.Apply(account)
	account.UpdatedAt = time.Now().UTC()

	if err := h.accounts.Update(r.Context(), account); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

// DeleteAccount は監視アカウントを削除する。
// DELETE /api/accounts/{id}
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	account, ok := h.findOwned(w, r)
	if !ok {
		return
	}

	if err := h.accounts.Delete(r.Context(), account.ID); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// findOwned はパスパラメータのアカウントを取得し、所有者チェックを行う。
// 他ユーザーのアカウントは存在自体を秘匿するため404として扱う。
func (h *AccountHandler) findOwned(w http.ResponseWriter, r *http.Request) (*model.MonitoredAccount, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return nil, false
	}

	accountID := chi.URLParam(r, "id")
	account, err := h.accounts.FindByID(r.Context(), accountID)
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	if account == nil || account.UserID != userID {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewAccountNotFoundError(accountID))
		return nil, false
	}
	return account, true
}
