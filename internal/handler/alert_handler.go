package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/pinglet/internal/middleware"
	"github.com/hitoshi/pinglet/internal/model"
	"github.com/hitoshi/pinglet/internal/repository"
)

// アラート発火履歴のページングの既定値と上限。
const (
	defaultAlertLogLimit = 50
	maxAlertLogLimit     = 200
)

// AlertLogHandler はアラート発火履歴のHTTPハンドラー。
type AlertLogHandler struct {
	alertLogs repository.AlertLogRepository
}

// NewAlertLogHandler はAlertLogHandlerを生成する。
func NewAlertLogHandler(alertLogs repository.AlertLogRepository) *AlertLogHandler {
	return &AlertLogHandler{alertLogs: alertLogs}
}

// alertLogResponse はアラート発火記録のAPIレスポンス。
type alertLogResponse struct {
	ID          string    `json:"id"`
	RuleID      string    `json:"rule_id"`
	PostID      string    `json:"post_id"`
	TriggerKind string    `json:"trigger_kind"`
	Score       *float64  `json:"score,omitempty"`
	Status      string    `json:"status"`
	SentAt      time.Time `json:"sent_at"`
}

func toAlertLogResponse(l *model.AlertLog) alertLogResponse {
	return alertLogResponse{
		ID:          l.ID,
		RuleID:      l.RuleID,
		PostID:      l.PostID,
		TriggerKind: string(l.TriggerKind),
		Score:       l.Score,
		Status:      string(l.Status),
		SentAt:      l.SentAt,
	}
}

// ListAlertLogs はユーザーのアラート発火履歴を送信日時降順で返す。
// GET /api/alerts?limit=N
func (h *AlertLogHandler) ListAlertLogs(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	limit := defaultAlertLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     "INVALID_REQUEST",
				Message:  "limitパラメータが不正です。",
				Category: "validation",
				Action:   "limitには正の整数を指定してください。",
			})
			return
		}
		limit = parsed
	}
	if limit > maxAlertLogLimit {
		limit = maxAlertLogLimit
	}

	logs, err := h.alertLogs.ListByUserID(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]alertLogResponse, 0, len(logs))
	for _, l := range logs {
		resp = append(resp, toAlertLogResponse(l))
	}
	writeJSON(w, http.StatusOK, resp)
}
