package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/pinglet/internal/model"
)

func TestAccountHandler_CreateAccount_登録に成功する(t *testing.T) {
	var created *model.MonitoredAccount
	accounts := &mockAccountRepo{
		createFn: func(ctx context.Context, account *model.MonitoredAccount) error {
			created = account
			return nil
		},
	}
	resolver := &mockResolver{
		resolveFn: func(ctx context.Context, username string) (string, error) {
			if username != "alice_dev" {
				t.Errorf("username = %q, want %q", username, "alice_dev")
			}
			return "100001", nil
		},
	}
	h := NewAccountHandler(accounts, resolver)

	body := bytes.NewBufferString(`{"username": "@alice_dev", "digest_enabled": true, "alerts_enabled": true}`)
	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/accounts", body), "user-1")
	w := httptest.NewRecorder()

	h.CreateAccount(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	if created == nil {
		t.Fatal("アカウントが作成されなかった")
	}
	if created.Username != "alice_dev" {
		t.Errorf("Username = %q, want %q（@プレフィックスは除去される）", created.Username, "alice_dev")
	}
	if created.XUserID != "100001" {
		t.Errorf("XUserID = %q, want %q", created.XUserID, "100001")
	}
	if created.UserID != "user-1" {
		t.Errorf("UserID = %q, want %q", created.UserID, "user-1")
	}
	if !created.DigestEnabled || !created.AlertsEnabled {
		t.Error("フラグが反映されていない")
	}

	var resp accountResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗しました: %v", err)
	}
	if resp.ID == "" {
		t.Error("レスポンスにIDが含まれていない")
	}
}

func TestAccountHandler_CreateAccount_ユーザー名を解決できない場合は422を返す(t *testing.T) {
	resolver := &mockResolver{
		resolveFn: func(ctx context.Context, username string) (string, error) {
			return "", nil
		},
	}
	h := NewAccountHandler(&mockAccountRepo{}, resolver)

	body := bytes.NewBufferString(`{"username": "no_such_user"}`)
	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/accounts", body), "user-1")
	w := httptest.NewRecorder()

	h.CreateAccount(w, req)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
	resp := parseAPIErrorResponse(t, w)
	if resp["code"] != model.ErrCodeUsernameResolve {
		t.Errorf("code = %q, want %q", resp["code"], model.ErrCodeUsernameResolve)
	}
}

func TestAccountHandler_CreateAccount_重複登録は409を返す(t *testing.T) {
	accounts := &mockAccountRepo{
		findByUserAndUsernameFn: func(ctx context.Context, userID, username string) (*model.MonitoredAccount, error) {
			return &model.MonitoredAccount{ID: "acct-1", UserID: userID, Username: username}, nil
		},
	}
	h := NewAccountHandler(accounts, &mockResolver{})

	body := bytes.NewBufferString(`{"username": "alice_dev"}`)
	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/accounts", body), "user-1")
	w := httptest.NewRecorder()

	h.CreateAccount(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusConflict)
	}
}

func TestAccountHandler_CreateAccount_空のユーザー名は400を返す(t *testing.T) {
	h := NewAccountHandler(&mockAccountRepo{}, &mockResolver{})

	body := bytes.NewBufferString(`{"username": "  "}`)
	req := withUserID(httptest.NewRequest(http.MethodPost, "/api/accounts", body), "user-1")
	w := httptest.NewRecorder()

	h.CreateAccount(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestAccountHandler_GetAccount_他ユーザーのアカウントは404を返す(t *testing.T) {
	accounts := &mockAccountRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.MonitoredAccount, error) {
			return &model.MonitoredAccount{ID: id, UserID: "other-user"}, nil
		},
	}
	h := NewAccountHandler(accounts, &mockResolver{})

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/accounts/acct-1", nil), "user-1")
	req = withChiURLParam(req, "id", "acct-1")
	w := httptest.NewRecorder()

	h.GetAccount(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	resp := parseAPIErrorResponse(t, w)
	if resp["code"] != model.ErrCodeAccountNotFound {
		t.Errorf("code = %q, want %q", resp["code"], model.ErrCodeAccountNotFound)
	}
}

func TestAccountHandler_PatchAccount_フラグを部分更新する(t *testing.T) {
	var updated *model.MonitoredAccount
	accounts := &mockAccountRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.MonitoredAccount, error) {
			return &model.MonitoredAccount{
				ID:            id,
				UserID:        "user-1",
				Username:      "alice_dev",
				DigestEnabled: true,
				AlertsEnabled: false,
			}, nil
		},
		updateFn: func(ctx context.Context, account *model.MonitoredAccount) error {
			updated = account
			return nil
		},
	}
	h := NewAccountHandler(accounts, &mockResolver{})

	body := bytes.NewBufferString(`{"alerts_enabled": true}`)
	req := withUserID(httptest.NewRequest(http.MethodPatch, "/api/accounts/acct-1", body), "user-1")
	req = withChiURLParam(req, "id", "acct-1")
	w := httptest.NewRecorder()

	h.PatchAccount(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if updated == nil {
		t.Fatal("アカウントが更新されなかった")
	}
	if !updated.AlertsEnabled {
		t.Error("alerts_enabledが更新されていない")
	}
	if !updated.DigestEnabled {
		t.Error("指定していないdigest_enabledが変更された")
	}
}

func TestAccountHandler_DeleteAccount_削除に成功する(t *testing.T) {
	deleted := ""
	accounts := &mockAccountRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.MonitoredAccount, error) {
			return &model.MonitoredAccount{ID: id, UserID: "user-1"}, nil
		},
		deleteFn: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
	}
	h := NewAccountHandler(accounts, &mockResolver{})

	req := withUserID(httptest.NewRequest(http.MethodDelete, "/api/accounts/acct-1", nil), "user-1")
	req = withChiURLParam(req, "id", "acct-1")
	w := httptest.NewRecorder()

	h.DeleteAccount(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if deleted != "acct-1" {
		t.Errorf("deleted = %q, want %q", deleted, "acct-1")
	}
}

func TestAccountHandler_ListAccounts_一覧を返す(t *testing.T) {
	accounts := &mockAccountRepo{
		listByUserIDFn: func(ctx context.Context, userID string) ([]*model.MonitoredAccount, error) {
			return []*model.MonitoredAccount{
				{ID: "acct-1", UserID: userID, Username: "alice_dev"},
				{ID: "acct-2", UserID: userID, Username: "bob_infra"},
			}, nil
		},
	}
	h := NewAccountHandler(accounts, &mockResolver{})

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/accounts", nil), "user-1")
	w := httptest.NewRecorder()

	h.ListAccounts(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp []accountResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗しました: %v", err)
	}
	if len(resp) != 2 {
		t.Fatalf("len = %d, want 2", len(resp))
	}
}
