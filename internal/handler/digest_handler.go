package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/pinglet/internal/middleware"
	"github.com/hitoshi/pinglet/internal/model"
	"github.com/hitoshi/pinglet/internal/repository"
)

// DigestComposerInterface はダイジェストハンドラーが必要とする生成インターフェース。
type DigestComposerInterface interface {
	// Compose は指定ユーザー・対象日のダイジェストを生成する。
	// 同一日の既存ダイジェストがある場合、forceRegenerateがfalseなら既存を返す。
	Compose(ctx context.Context, userID string, date time.Time, forceRegenerate bool) (*model.Digest, error)
}

// DigestHandler は日次ダイジェストのHTTPハンドラー。
type DigestHandler struct {
	digests  repository.DigestRepository
	composer DigestComposerInterface
	location *time.Location
}

// NewDigestHandler はDigestHandlerを生成する。
// locationは対象日の解釈に使用するタイムゾーン。
func NewDigestHandler(digests repository.DigestRepository, composer DigestComposerInterface, location *time.Location) *DigestHandler {
	return &DigestHandler{
		digests:  digests,
		composer: composer,
		location: location,
	}
}

// generateDigestRequest はダイジェスト生成リクエストのボディ。
type generateDigestRequest struct {
	Date  string `json:"date"` // "YYYY-MM-DD"。省略時は当日
	Force bool   `json:"force"`
}

// digestResponse はダイジェストのAPIレスポンス。
type digestResponse struct {
	ID              string    `json:"id"`
	DigestDate      string    `json:"digest_date"`
	ContentMarkdown string    `json:"content_markdown"`
	CreatedAt       time.Time `json:"created_at"`
}

func toDigestResponse(d *model.Digest) digestResponse {
	return digestResponse{
		ID:              d.ID,
		DigestDate:      d.DigestDate.Format("2006-01-02"),
		ContentMarkdown: d.ContentMarkdown,
		CreatedAt:       d.CreatedAt,
	}
}

// GetLatestDigest はユーザーの最新ダイジェストを返す。
// GET /api/digests/latest
func (h *DigestHandler) GetLatestDigest(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	digest, err := h.digests.FindLatestByUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if digest == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewDigestNotFoundError())
		return
	}
	writeJSON(w, http.StatusOK, toDigestResponse(digest))
}

// GetDigestByDate は指定日のダイジェストを返す。
// GET /api/digests/{date}
func (h *DigestHandler) GetDigestByDate(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	date, err := time.ParseInLocation("2006-01-02", chi.URLParam(r, "date"), h.location)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "日付の形式が不正です。",
			Category: "validation",
			Action:   "日付はYYYY-MM-DD形式で指定してください。",
		})
		return
	}

	digest, err := h.digests.FindLatestByUserAndDate(r.Context(), userID, date)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if digest == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewDigestNotFoundError())
		return
	}
	writeJSON(w, http.StatusOK, toDigestResponse(digest))
}

// GenerateDigest はダイジェストをオンデマンド生成する。
// POST /api/digests
func (h *DigestHandler) GenerateDigest(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req generateDigestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	date := time.Now().In(h.location)
	if req.Date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", req.Date, h.location)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     "INVALID_REQUEST",
				Message:  "日付の形式が不正です。",
				Category: "validation",
				Action:   "日付はYYYY-MM-DD形式で指定してください。",
			})
			return
		}
		date = parsed
	}

	digest, err := h.composer.Compose(r.Context(), userID, date, req.Force)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDigestResponse(digest))
}
