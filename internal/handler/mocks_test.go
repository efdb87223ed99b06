package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/pinglet/internal/ingestion"
	"github.com/hitoshi/pinglet/internal/middleware"
	"github.com/hitoshi/pinglet/internal/model"
)

// --- テストヘルパー ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUserID(r.Context(), userID)
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("エラーレスポンスのデコードに失敗しました: %v", err)
	}
	return result
}

// --- モック定義 ---

// mockAccountRepo はrepository.AccountRepositoryのモック実装。
type mockAccountRepo struct {
	findByIDFn              func(ctx context.Context, id string) (*model.MonitoredAccount, error)
	findByUserAndUsernameFn func(ctx context.Context, userID, username string) (*model.MonitoredAccount, error)
	listByUserIDFn          func(ctx context.Context, userID string) ([]*model.MonitoredAccount, error)
	createFn                func(ctx context.Context, account *model.MonitoredAccount) error
	updateFn                func(ctx context.Context, account *model.MonitoredAccount) error
	deleteFn                func(ctx context.Context, id string) error
}

func (m *mockAccountRepo) FindByID(ctx context.Context, id string) (*model.MonitoredAccount, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockAccountRepo) FindByUserAndUsername(ctx context.Context, userID, username string) (*model.MonitoredAccount, error) {
	if m.findByUserAndUsernameFn != nil {
		return m.findByUserAndUsernameFn(ctx, userID, username)
	}
	return nil, nil
}

func (m *mockAccountRepo) ListByUserID(ctx context.Context, userID string) ([]*model.MonitoredAccount, error) {
	if m.listByUserIDFn != nil {
		return m.listByUserIDFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockAccountRepo) ListDigestEnabledByUserID(ctx context.Context, userID string) ([]*model.MonitoredAccount, error) {
	return nil, nil
}

func (m *mockAccountRepo) ListAll(ctx context.Context) ([]*model.MonitoredAccount, error) {
	return nil, nil
}

func (m *mockAccountRepo) Create(ctx context.Context, account *model.MonitoredAccount) error {
	if m.createFn != nil {
		return m.createFn(ctx, account)
	}
	return nil
}

func (m *mockAccountRepo) Update(ctx context.Context, account *model.MonitoredAccount) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, account)
	}
	return nil
}

func (m *mockAccountRepo) UpdateLastSeenPostID(ctx context.Context, id, lastSeenPostID string) error {
	return nil
}

func (m *mockAccountRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockTopicRepo はrepository.TopicRepositoryのモック実装。
type mockTopicRepo struct {
	findByIDFn     func(ctx context.Context, id string) (*model.Topic, error)
	listByIDsFn    func(ctx context.Context, ids []string) ([]*model.Topic, error)
	listByUserIDFn func(ctx context.Context, userID string) ([]*model.Topic, error)
	createFn       func(ctx context.Context, topic *model.Topic) error
	updateFn       func(ctx context.Context, topic *model.Topic) error
	deleteFn       func(ctx context.Context, id string) error
}

func (m *mockTopicRepo) FindByID(ctx context.Context, id string) (*model.Topic, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockTopicRepo) ListByIDs(ctx context.Context, ids []string) ([]*model.Topic, error) {
	if m.listByIDsFn != nil {
		return m.listByIDsFn(ctx, ids)
	}
	return nil, nil
}

func (m *mockTopicRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Topic, error) {
	if m.listByUserIDFn != nil {
		return m.listByUserIDFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockTopicRepo) Create(ctx context.Context, topic *model.Topic) error {
	if m.createFn != nil {
		return m.createFn(ctx, topic)
	}
	return nil
}

func (m *mockTopicRepo) Update(ctx context.Context, topic *model.Topic) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, topic)
	}
	return nil
}

func (m *mockTopicRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockRuleRepo はrepository.RuleRepositoryのモック実装。
type mockRuleRepo struct {
	findByIDFn     func(ctx context.Context, id string) (*model.AlertRule, error)
	listByUserIDFn func(ctx context.Context, userID string) ([]*model.AlertRule, error)
	createFn       func(ctx context.Context, rule *model.AlertRule) error
	updateFn       func(ctx context.Context, rule *model.AlertRule) error
	deleteFn       func(ctx context.Context, id string) error
}

func (m *mockRuleRepo) FindByID(ctx context.Context, id string) (*model.AlertRule, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockRuleRepo) ListEnabledByUserID(ctx context.Context, userID string) ([]*model.AlertRule, error) {
	return nil, nil
}

func (m *mockRuleRepo) ListByUserID(ctx context.Context, userID string) ([]*model.AlertRule, error) {
	if m.listByUserIDFn != nil {
		return m.listByUserIDFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockRuleRepo) Create(ctx context.Context, rule *model.AlertRule) error {
	if m.createFn != nil {
		return m.createFn(ctx, rule)
	}
	return nil
}

func (m *mockRuleRepo) Update(ctx context.Context, rule *model.AlertRule) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, rule)
	}
	return nil
}

func (m *mockRuleRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockAlertLogRepo はrepository.AlertLogRepositoryのモック実装。
type mockAlertLogRepo struct {
	listByUserIDFn func(ctx context.Context, userID string, limit int) ([]*model.AlertLog, error)
}

func (m *mockAlertLogRepo) ExistsRecentByRuleAndAccount(ctx context.Context, ruleID, accountID string, since time.Time) (bool, error) {
	return false, nil
}

func (m *mockAlertLogRepo) CreateGated(ctx context.Context, log *model.AlertLog, accountID string, cooldown time.Duration) (bool, error) {
	return true, nil
}

func (m *mockAlertLogRepo) UpdateStatus(ctx context.Context, id string, status model.AlertStatus) error {
	return nil
}

func (m *mockAlertLogRepo) ListByUserID(ctx context.Context, userID string, limit int) ([]*model.AlertLog, error) {
	if m.listByUserIDFn != nil {
		return m.listByUserIDFn(ctx, userID, limit)
	}
	return nil, nil
}

// mockDigestRepo はrepository.DigestRepositoryのモック実装。
type mockDigestRepo struct {
	findLatestByUserAndDateFn func(ctx context.Context, userID string, date time.Time) (*model.Digest, error)
	findLatestByUserFn        func(ctx context.Context, userID string) (*model.Digest, error)
}

func (m *mockDigestRepo) FindLatestByUserAndDate(ctx context.Context, userID string, date time.Time) (*model.Digest, error) {
	if m.findLatestByUserAndDateFn != nil {
		return m.findLatestByUserAndDateFn(ctx, userID, date)
	}
	return nil, nil
}

func (m *mockDigestRepo) FindLatestByUser(ctx context.Context, userID string) (*model.Digest, error) {
	if m.findLatestByUserFn != nil {
		return m.findLatestByUserFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockDigestRepo) Create(ctx context.Context, digest *model.Digest) error {
	return nil
}

// mockResolver はUsernameResolverのモック実装。
type mockResolver struct {
	resolveFn func(ctx context.Context, username string) (string, error)
}

func (m *mockResolver) ResolveUsername(ctx context.Context, username string) (string, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, username)
	}
	return "x-user-1", nil
}

// mockEmbedder はembedding.Providerのモック実装。
type mockEmbedder struct {
	embedTextFn func(ctx context.Context, text string) ([]float64, error)
}

func (m *mockEmbedder) EmbedText(ctx context.Context, text string) ([]float64, error) {
	if m.embedTextFn != nil {
		return m.embedTextFn(ctx, text)
	}
	return []float64{0.1, 0.2}, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	vecs := make([][]float64, len(texts))
	for i := range texts {
		vecs[i] = []float64{0.1, 0.2}
	}
	return vecs, nil
}

// mockComposer はDigestComposerInterfaceのモック実装。
type mockComposer struct {
	composeFn func(ctx context.Context, userID string, date time.Time, force bool) (*model.Digest, error)
}

func (m *mockComposer) Compose(ctx context.Context, userID string, date time.Time, force bool) (*model.Digest, error) {
	if m.composeFn != nil {
		return m.composeFn(ctx, userID, date, force)
	}
	return nil, nil
}

// mockIngestionService はIngestionServiceInterfaceのモック実装。
type mockIngestionService struct {
	ingestAllFn     func(ctx context.Context) (*ingestion.Stats, error)
	ingestAccountFn func(ctx context.Context, accountID string) (*ingestion.AccountStats, error)
}

func (m *mockIngestionService) IngestAll(ctx context.Context) (*ingestion.Stats, error) {
	if m.ingestAllFn != nil {
		return m.ingestAllFn(ctx)
	}
	return &ingestion.Stats{}, nil
}

func (m *mockIngestionService) IngestAccount(ctx context.Context, accountID string) (*ingestion.AccountStats, error) {
	if m.ingestAccountFn != nil {
		return m.ingestAccountFn(ctx, accountID)
	}
	return &ingestion.AccountStats{}, nil
}
