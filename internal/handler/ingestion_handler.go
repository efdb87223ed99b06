package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/pinglet/internal/ingestion"
	"github.com/hitoshi/pinglet/internal/middleware"
	"github.com/hitoshi/pinglet/internal/model"
	"github.com/hitoshi/pinglet/internal/repository"
)

// IngestionServiceInterface は取り込みハンドラーが必要とするサービスインターフェース。
type IngestionServiceInterface interface {
	// IngestAll は全監視アカウントのタイムラインを取り込む。
	IngestAll(ctx context.Context) (*ingestion.Stats, error)
	// IngestAccount は単一アカウントのタイムラインを取り込む。
	IngestAccount(ctx context.Context, accountID string) (*ingestion.AccountStats, error)
}

// IngestionHandler は取り込みのオンデマンド実行を提供するHTTPハンドラー。
// ワーカーの定期実行とは独立して、デバッグや即時反映のために使用する。
type IngestionHandler struct {
	service  IngestionServiceInterface
	accounts repository.AccountRepository
}

// NewIngestionHandler はIngestionHandlerを生成する。
func NewIngestionHandler(service IngestionServiceInterface, accounts repository.AccountRepository) *IngestionHandler {
	return &IngestionHandler{
		service:  service,
		accounts: accounts,
	}
}

// ingestAllResponse は全体取り込みのAPIレスポンス。
type ingestAllResponse struct {
	AccountsProcessed int      `json:"accounts_processed"`
	PostsFetched      int      `json:"posts_fetched"`
	PostsStored       int      `json:"posts_stored"`
	AlertsFired       int      `json:"alerts_fired"`
	Errors            []string `json:"errors"`
}

// ingestAccountResponse は単一アカウント取り込みのAPIレスポンス。
type ingestAccountResponse struct {
	PostsFetched int `json:"posts_fetched"`
	PostsStored  int `json:"posts_stored"`
	AlertsFired  int `json:"alerts_fired"`
}

// RunIngestion は全監視アカウントの取り込みを実行する。
// POST /api/ingestion/run
func (h *IngestionHandler) RunIngestion(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.IngestAll(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	errs := stats.Errors
	if errs == nil {
		errs = []string{}
	}
	writeJSON(w, http.StatusOK, ingestAllResponse{
		AccountsProcessed: stats.AccountsProcessed,
		PostsFetched:      stats.PostsFetched,
		PostsStored:       stats.PostsStored,
		AlertsFired:       stats.AlertsFired,
		Errors:            errs,
	})
}

// IngestAccount は単一アカウントの取り込みを実行する。
// POST /api/accounts/{id}/ingest
func (h *IngestionHandler) IngestAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	accountID := chi.URLParam(r, "id")
	account, err := h.accounts.FindByID(r.Context(), accountID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if account == nil || account.UserID != userID {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewAccountNotFoundError(accountID))
		return
	}

	stats, err := h.service.IngestAccount(r.Context(), account.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ingestAccountResponse{
		PostsFetched: stats.PostsFetched,
		PostsStored:  stats.PostsStored,
		AlertsFired:  stats.AlertsFired,
	})
}
