package alert

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/pinglet/internal/llm"
	"github.com/hitoshi/pinglet/internal/metrics"
	"github.com/hitoshi/pinglet/internal/model"
	"github.com/hitoshi/pinglet/internal/notifier"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testCollector() *metrics.Collector {
	return metrics.NewCollector(prometheus.NewRegistry())
}

// mockAlertLogRepo はAlertLogRepositoryのテスト用モック。
type mockAlertLogRepo struct {
	existsRecentFunc func(ctx context.Context, ruleID, accountID string, since time.Time) (bool, error)
	createGatedFunc  func(ctx context.Context, log *model.AlertLog, accountID string, cooldown time.Duration) (bool, error)
	updateStatusFunc func(ctx context.Context, id string, status model.AlertStatus) error
}

func (m *mockAlertLogRepo) ExistsRecentByRuleAndAccount(ctx context.Context, ruleID, accountID string, since time.Time) (bool, error) {
	if m.existsRecentFunc != nil {
		return m.existsRecentFunc(ctx, ruleID, accountID, since)
	}
	return false, nil
}

func (m *mockAlertLogRepo) CreateGated(ctx context.Context, log *model.AlertLog, accountID string, cooldown time.Duration) (bool, error) {
	if m.createGatedFunc != nil {
		return m.createGatedFunc(ctx, log, accountID, cooldown)
	}
	return true, nil
}

func (m *mockAlertLogRepo) UpdateStatus(ctx context.Context, id string, status model.AlertStatus) error {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, status)
	}
	return nil
}

func (m *mockAlertLogRepo) ListByUserID(ctx context.Context, userID string, limit int) ([]*model.AlertLog, error) {
	return nil, nil
}

// mockPostRepo はPostRepositoryのテスト用モック。
type mockPostRepo struct {
	updateEmbeddingFunc func(ctx context.Context, postID string, embedding []float64) error
}

func (m *mockPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	return nil, nil
}

func (m *mockPostRepo) ExistsByAccountAndXPostID(ctx context.Context, accountID, xPostID string) (bool, error) {
	return false, nil
}

func (m *mockPostRepo) Create(ctx context.Context, post *model.Post) error {
	return nil
}

func (m *mockPostRepo) UpdateEmbedding(ctx context.Context, postID string, embedding []float64) error {
	if m.updateEmbeddingFunc != nil {
		return m.updateEmbeddingFunc(ctx, postID, embedding)
	}
	return nil
}

func (m *mockPostRepo) ListRecentByAccount(ctx context.Context, accountID string, limit int) ([]*model.Post, error) {
	return nil, nil
}

// mockTopicRepo はTopicRepositoryのテスト用モック。
type mockTopicRepo struct {
	listByIDsFunc func(ctx context.Context, ids []string) ([]*model.Topic, error)
}

func (m *mockTopicRepo) FindByID(ctx context.Context, id string) (*model.Topic, error) {
	return nil, nil
}

func (m *mockTopicRepo) ListByIDs(ctx context.Context, ids []string) ([]*model.Topic, error) {
	if m.listByIDsFunc != nil {
		return m.listByIDsFunc(ctx, ids)
	}
	return nil, nil
}

func (m *mockTopicRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Topic, error) {
	return nil, nil
}

func (m *mockTopicRepo) Create(ctx context.Context, topic *model.Topic) error { return nil }
func (m *mockTopicRepo) Update(ctx context.Context, topic *model.Topic) error { return nil }
func (m *mockTopicRepo) Delete(ctx context.Context, id string) error          { return nil }

// mockRuleRepo はRuleRepositoryのテスト用モック。
type mockRuleRepo struct {
	listEnabledFunc func(ctx context.Context, userID string) ([]*model.AlertRule, error)
}

func (m *mockRuleRepo) FindByID(ctx context.Context, id string) (*model.AlertRule, error) {
	return nil, nil
}

func (m *mockRuleRepo) ListEnabledByUserID(ctx context.Context, userID string) ([]*model.AlertRule, error) {
	if m.listEnabledFunc != nil {
		return m.listEnabledFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockRuleRepo) ListByUserID(ctx context.Context, userID string) ([]*model.AlertRule, error) {
	return nil, nil
}

func (m *mockRuleRepo) Create(ctx context.Context, rule *model.AlertRule) error { return nil }
func (m *mockRuleRepo) Update(ctx context.Context, rule *model.AlertRule) error { return nil }
func (m *mockRuleRepo) Delete(ctx context.Context, id string) error             { return nil }

// mockEmbedder はembedding.Providerのテスト用モック。
type mockEmbedder struct {
	embedTextFunc func(ctx context.Context, text string) ([]float64, error)
}

func (m *mockEmbedder) EmbedText(ctx context.Context, text string) ([]float64, error) {
	if m.embedTextFunc != nil {
		return m.embedTextFunc(ctx, text)
	}
	return []float64{1, 0, 0}, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i := range texts {
		v, err := m.EmbedText(ctx, texts[i])
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

// mockGenerator はllm.TextGeneratorのテスト用モック。
type mockGenerator struct {
	summarizeFunc func(ctx context.Context, text string, maxSentences int) string
}

func (m *mockGenerator) Summarize(ctx context.Context, text string, maxSentences int) string {
	if m.summarizeFunc != nil {
		return m.summarizeFunc(ctx, text, maxSentences)
	}
	return "summary of: " + text
}

func (m *mockGenerator) ComposeDigest(ctx context.Context, sections []llm.DigestSection) string {
	return "digest"
}

// mockNotifier はnotifier.Notifierのテスト用モック。
type mockNotifier struct {
	sendAlertFunc func(ctx context.Context, n *notifier.AlertNotification) error
	sent          []*notifier.AlertNotification
}

func (m *mockNotifier) SendAlert(ctx context.Context, n *notifier.AlertNotification) error {
	m.sent = append(m.sent, n)
	if m.sendAlertFunc != nil {
		return m.sendAlertFunc(ctx, n)
	}
	return nil
}

func (m *mockNotifier) SendDigest(ctx context.Context, digest *model.Digest) error {
	return nil
}

// mockResolver は全チャネルを単一のmockNotifierへ解決する。
type mockResolver struct {
	notifier *mockNotifier
}

func (m *mockResolver) For(channel model.NotificationChannel) notifier.Notifier {
	return m.notifier
}
