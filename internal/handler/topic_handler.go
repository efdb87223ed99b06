package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/pinglet/internal/embedding"
	"github.com/hitoshi/pinglet/internal/middleware"
	"github.com/hitoshi/pinglet/internal/model"
	"github.com/hitoshi/pinglet/internal/repository"
)

// TopicHandler はトピック管理のHTTPハンドラー。
// トピックの埋め込みベクトルは作成時と説明文変更時に計算する。
type TopicHandler struct {
	topics   repository.TopicRepository
	embedder embedding.Provider
	logger   *slog.Logger
}

// NewTopicHandler はTopicHandlerを生成する。
func NewTopicHandler(topics repository.TopicRepository, embedder embedding.Provider, logger *slog.Logger) *TopicHandler {
	return &TopicHandler{
		topics:   topics,
		embedder: embedder,
		logger:   logger,
	}
}

// createTopicRequest はトピック作成リクエストのボディ。
type createTopicRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Threshold   *float64 `json:"threshold"`
}

// patchTopicRequest はトピック部分更新リクエストのボディ。
type patchTopicRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Threshold   *float64 `json:"threshold"`
}

// topicResponse はトピックのAPIレスポンス。
type topicResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Threshold    float64   `json:"threshold"`
	HasEmbedding bool      `json:"has_embedding"`
	CreatedAt    time.Time `json:"created_at"`
}

func toTopicResponse(t *model.Topic) topicResponse {
	return topicResponse{
		ID:           t.ID,
		Name:         t.Name,
		Description:  t.Description,
		Threshold:    t.Threshold,
		HasEmbedding: len(t.Embedding) > 0,
		CreatedAt:    t.CreatedAt,
	}
}

// CreateTopic はトピックを作成する。
// POST /api/topics
func (h *TopicHandler) CreateTopic(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req createTopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "トピック名が空です。",
			Category: "validation",
			Action:   "トピック名を指定してください。",
		})
		return
	}

	threshold := model.DefaultTopicThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if threshold < 0.0 || threshold > 1.0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidThresholdError(threshold))
		return
	}

	now := time.Now().UTC()
	topic := &model.Topic{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Threshold:   threshold,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	topic.Embedding = h.embedTopic(r.Context(), topic)

	if err := h.topics.Create(r.Context(), topic); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTopicResponse(topic))
}

// ListTopics はユーザーのトピック一覧を返す。
// GET /api/topics
func (h *TopicHandler) ListTopics(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	topics, err := h.topics.ListByUserID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]topicResponse, 0, len(topics))
	for _, t := range topics {
		resp = append(resp, toTopicResponse(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// PatchTopic はトピックを部分更新する。
// 名前または説明文が変更された場合は埋め込みベクトルを再計算する。
// PATCH /api/topics/{id}
func (h *TopicHandler) PatchTopic(w http.ResponseWriter, r *http.Request) {
	topic, ok := h.findOwned(w, r)
	if !ok {
		return
	}

	var req patchTopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.Threshold != nil && (*req.Threshold < 0.0 || *req.Threshold > 1.0) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidThresholdError(*req.Threshold))
		return
	}

	textChanged := (req.Name != nil && *req.Name != topic.Name) ||
		(req.Description != nil && *req.Description != topic.Description)

	patch := model.TopicPatch{
		Name:        req.Name,
		Description: req.Description,
		Threshold:   req.Threshold,
	}
	patch.Apply(topic)
	topic.UpdatedAt = time.Now().UTC()

	if textChanged {
		topic.Embedding = h.embedTopic(r.Context(), topic)
	}

	if err := h.topics.Update(r.Context(), topic); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTopicResponse(topic))
}

// DeleteTopic はトピックを削除する。
// DELETE /api/topics/{id}
func (h *TopicHandler) DeleteTopic(w http.ResponseWriter, r *http.Request) {
	topic, ok := h.findOwned(w, r)
	if !ok {
		return
	}

	if err := h.topics.Delete(r.Context(), topic.ID); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// embedTopic はトピックの名前と説明文から埋め込みベクトルを計算する。
// 計算に失敗した場合はnilを返し、トピックはマッチング対象外のまま保存される。
func (h *TopicHandler) embedTopic(ctx context.Context, topic *model.Topic) []float64 {
	text := topic.Name
	if topic.Description != "" {
		text = topic.Name + ": " + topic.Description
	}

	vec, err := h.embedder.EmbedText(ctx, text)
	if err != nil {
		h.logger.Warn("トピック埋め込みの計算に失敗しました",
			slog.String("topic_id", topic.ID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return vec
}

// findOwned はパスパラメータのトピックを取得し、所有者チェックを行う。
func (h *TopicHandler) findOwned(w http.ResponseWriter, r *http.Request) (*model.Topic, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return nil, false
	}

	topicID := chi.URLParam(r, "id")
	topic, err := h.topics.FindByID(r.Context(), topicID)
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	if topic == nil || topic.UserID != userID {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewTopicNotFoundError(topicID))
		return nil, false
	}
	return topic, true
}
