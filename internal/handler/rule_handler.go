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

// RuleHandler はアラートルール管理のHTTPハンドラー。
type RuleHandler struct {
	rules  repository.RuleRepository
	topics repository.TopicRepository
}

// NewRuleHandler はRuleHandlerを生成する。
func NewRuleHandler(rules repository.RuleRepository, topics repository.TopicRepository) *RuleHandler {
	return &RuleHandler{
		rules:  rules,
		topics: topics,
	}
}

// createRuleRequest はルール作成リクエストのボディ。
type createRuleRequest struct {
	Name                string   `json:"name"`
	Enabled             *bool    `json:"enabled"`
	Keywords            []string `json:"keywords"`
	TopicIDs            []string `json:"topic_ids"`
	AllowedAccountIDs   []string `json:"allowed_account_ids"`
	SimilarityThreshold *float64 `json:"similarity_threshold"`
	CooldownMinutes     *int     `json:"cooldown_minutes"`
	Channel             string   `json:"channel"`
}

// patchRuleRequest はルール部分更新リクエストのボディ。
// スライスはキー省略で変更なし、空配列でクリアを表す。
type patchRuleRequest struct {
	Name                *string  `json:"name"`
	Enabled             *bool    `json:"enabled"`
	Keywords            []string `json:"keywords"`
	TopicIDs            []string `json:"topic_ids"`
	AllowedAccountIDs   []string `json:"allowed_account_ids"`
	SimilarityThreshold *float64 `json:"similarity_threshold"`
	CooldownMinutes     *int     `json:"cooldown_minutes"`
	Channel             *string  `json:"channel"`
}

// ruleResponse はアラートルールのAPIレスポンス。
type ruleResponse struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Enabled             bool      `json:"enabled"`
	Keywords            []string  `json:"keywords"`
	TopicIDs            []string  `json:"topic_ids"`
	AllowedAccountIDs   []string  `json:"allowed_account_ids"`
	SimilarityThreshold float64   `json:"similarity_threshold"`
	CooldownMinutes     int       `json:"cooldown_minutes"`
	Channel             string    `json:"channel"`
	CreatedAt           time.Time `json:"created_at"`
}

func toRuleResponse(r *model.AlertRule) ruleResponse {
	return ruleResponse{
		ID:                  r.ID,
		Name:                r.Name,
		Enabled:             r.Enabled,
		Keywords:            emptyIfNil(r.Keywords),
		TopicIDs:            emptyIfNil(r.TopicIDs),
		AllowedAccountIDs:   emptyIfNil(r.AllowedAccountIDs),
		SimilarityThreshold: r.SimilarityThreshold,
		CooldownMinutes:     r.CooldownMinutes,
		Channel:             string(r.Channel),
		CreatedAt:           r.CreatedAt,
	}
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// CreateRule はアラートルールを作成する。
// POST /api/rules
func (h *RuleHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req createRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "ルール名が空です。",
			Category: "validation",
			Action:   "ルール名を指定してください。",
		})
		return
	}

	threshold := model.DefaultTopicThreshold
	if req.SimilarityThreshold != nil {
		threshold = *req.SimilarityThreshold
	}
	if threshold < 0.0 || threshold > 1.0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidThresholdError(threshold))
		return
	}

	cooldown := 0
	if req.CooldownMinutes != nil {
		cooldown = *req.CooldownMinutes
	}
	if cooldown < 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidCooldownError(cooldown))
		return
	}

	channel, apiErr := parseChannel(req.Channel)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	if apiErr := h.validateTopicIDs(r.Context(), userID, req.TopicIDs); apiErr != nil {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	now := time.Now().UTC()
	rule := &model.AlertRule{
		ID:                  uuid.NewString(),
		UserID:              userID,
		Name:                name,
		Enabled:             enabled,
		Keywords:            req.Keywords,
		TopicIDs:            req.TopicIDs,
		AllowedAccountIDs:   req.AllowedAccountIDs,
		SimilarityThreshold: threshold,
		CooldownMinutes:     cooldown,
		Channel:             channel,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := h.rules.Create(r.Context(), rule); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRuleResponse(rule))
}

// ListRules はユーザーのアラートルール一覧を返す。
// GET /api/rules
func (h *RuleHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	rules, err := h.rules.ListByUserID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		resp = append(resp, toRuleResponse(rule))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetRule はアラートルールの詳細を返す。
// GET /api/rules/{id}
func (h *RuleHandler) GetRule(w http.ResponseWriter, r *http.Request) {
	rule, ok := h.findOwned(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toRuleResponse(rule))
}

// PatchRule はアラートルールを部分更新する。
// PATCH /api/rules/{id}
func (h *RuleHandler) PatchRule(w http.ResponseWriter, r *http.Request) {
	rule, ok := h.findOwned(w, r)
	if !ok {
		return
	}

	var req patchRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.SimilarityThreshold != nil && (*req.SimilarityThreshold < 0.0 || *req.SimilarityThreshold > 1.0) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidThresholdError(*req.SimilarityThreshold))
		return
	}
	if req.CooldownMinutes != nil && *req.CooldownMinutes < 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidCooldownError(*req.CooldownMinutes))
		return
	}

	var channel *model.NotificationChannel
	if req.Channel != nil {
		parsed, apiErr := parseChannel(*req.Channel)
		if apiErr != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
			return
		}
		channel = &parsed
	}

	if req.TopicIDs != nil {
		userID, _ := middleware.UserIDFromContext(r.Context())
		if apiErr := h.validateTopicIDs(r.Context(), userID, req.TopicIDs); apiErr != nil {
			writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
			return
		}
	}

	patch := model.RulePatch{
		Name:                req.Name,
		Enabled:             req.Enabled,
		Keywords:            req.Keywords,
		TopicIDs:            req.TopicIDs,
		AllowedAccountIDs:   req.AllowedAccountIDs,
		SimilarityThreshold: req.SimilarityThreshold,
		CooldownMinutes:     req.CooldownMinutes,
		Channel:             channel,
	}
	patch.Apply(rule)
	rule.UpdatedAt = time.Now().UTC()

	if err := h.rules.Update(r.Context(), rule); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRuleResponse(rule))
}

// DeleteRule はアラートルールを削除する。
// DELETE /api/rules/{id}
func (h *RuleHandler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	rule, ok := h.findOwned(w, r)
	if !ok {
		return
	}

	if err := h.rules.Delete(r.Context(), rule.ID); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// parseChannel は通知チャネル文字列を検証する。空文字はlogとして扱う。
func parseChannel(raw string) (model.NotificationChannel, *model.APIError) {
	switch model.NotificationChannel(raw) {
	case "":
		return model.ChannelLog, nil
	case model.ChannelLog:
		return model.ChannelLog, nil
	case model.ChannelWebhook:
		return model.ChannelWebhook, nil
	default:
		return "", model.NewInvalidChannelError(raw)
	}
}

// validateTopicIDs は参照先トピックがすべて当該ユーザーのものとして存在するかを検証する。
func (h *RuleHandler) validateTopicIDs(ctx context.Context, userID string, topicIDs []string) *model.APIError {
	if len(topicIDs) == 0 {
		return nil
	}

	topics, err := h.topics.ListByIDs(ctx, topicIDs)
	if err != nil {
		return &model.APIError{
			Code:     "INTERNAL_ERROR",
			Message:  "トピックの検証に失敗しました。",
			Category: "system",
			Action:   "しばらく待ってから再度お試しください。",
		}
	}

	found := make(map[string]bool, len(topics))
	for _, t := range topics {
		if t.UserID == userID {
			found[t.ID] = true
		}
	}
	for _, id := range topicIDs {
		if !found[id] {
			return model.NewTopicNotFoundError(id)
		}
	}
	return nil
}

// findOwned はパスパラメータのルールを取得し、所有者チェックを行う。
func (h *RuleHandler) findOwned(w http.ResponseWriter, r *http.Request) (*model.AlertRule, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return nil, false
	}

	ruleID := chi.URLParam(r, "id")
	rule, err := h.rules.FindByID(r.Context(), ruleID)
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	if rule == nil || rule.UserID != userID {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewRuleNotFoundError(ruleID))
		return nil, false
	}
	return rule, true
}
