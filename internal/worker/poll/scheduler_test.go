package poll

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/pinglet/internal/ingestion"
	"github.com/hitoshi/pinglet/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// mockAccountRepo はrepository.AccountRepositoryのモック実装。
type mockAccountRepo struct {
	listAllFn func(ctx context.Context) ([]*model.MonitoredAccount, error)
}

func (m *mockAccountRepo) FindByID(ctx context.Context, id string) (*model.MonitoredAccount, error) {
	return nil, nil
}

func (m *mockAccountRepo) FindByUserAndUsername(ctx context.Context, userID, username string) (*model.MonitoredAccount, error) {
	return nil, nil
}

func (m *mockAccountRepo) ListByUserID(ctx context.Context, userID string) ([]*model.MonitoredAccount, error) {
	return nil, nil
}

func (m *mockAccountRepo) ListDigestEnabledByUserID(ctx context.Context, userID string) ([]*model.MonitoredAccount, error) {
	return nil, nil
}

func (m *mockAccountRepo) ListAll(ctx context.Context) ([]*model.MonitoredAccount, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx)
	}
	return nil, nil
}

func (m *mockAccountRepo) Create(ctx context.Context, account *model.MonitoredAccount) error {
	return nil
}

func (m *mockAccountRepo) Update(ctx context.Context, account *model.MonitoredAccount) error {
	return nil
}

func (m *mockAccountRepo) UpdateLastSeenPostID(ctx context.Context, id, lastSeenPostID string) error {
	return nil
}

func (m *mockAccountRepo) Delete(ctx context.Context, id string) error {
	return nil
}

// mockIngester はAccountIngesterServiceのモック実装。
type mockIngester struct {
	mu        sync.Mutex
	processed []string
	inFlight  int
	maxSeen   int
	delay     time.Duration
	err       error
}

func (m *mockIngester) IngestAccount(ctx context.Context, accountID string) (*ingestion.AccountStats, error) {
	m.mu.Lock()
	m.inFlight++
	if m.inFlight > m.maxSeen {
		m.maxSeen = m.inFlight
	}
	m.mu.Unlock()

	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	m.inFlight--
	m.processed = append(m.processed, accountID)
	m.mu.Unlock()

	return &ingestion.AccountStats{}, m.err
}

func testAccounts(n int) []*model.MonitoredAccount {
	accounts := make([]*model.MonitoredAccount, n)
	for i := range accounts {
		accounts[i] = &model.MonitoredAccount{
			ID:       string(rune('a' + i)),
			UserID:   "user-1",
			Username: "acct",
			XUserID:  "100",
		}
	}
	return accounts
}

func TestScheduler_RunOnce_全アカウントを取り込む(t *testing.T) {
	repo := &mockAccountRepo{
		listAllFn: func(ctx context.Context) ([]*model.MonitoredAccount, error) {
			return testAccounts(4), nil
		},
	}
	ingester := &mockIngester{}
	s := NewScheduler(repo, ingester, discardLogger(), 2)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if len(ingester.processed) != 4 {
		t.Errorf("processed = %d, want 4", len(ingester.processed))
	}
}

func TestScheduler_RunOnce_並列数が上限を超えない(t *testing.T) {
	repo := &mockAccountRepo{
		listAllFn: func(ctx context.Context) ([]*model.MonitoredAccount, error) {
			return testAccounts(8), nil
		},
	}
	ingester := &mockIngester{delay: 20 * time.Millisecond}
	s := NewScheduler(repo, ingester, discardLogger(), 3)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	if ingester.maxSeen > 3 {
		t.Errorf("最大並列数 = %d, want <= 3", ingester.maxSeen)
	}
	if len(ingester.processed) != 8 {
		t.Errorf("processed = %d, want 8", len(ingester.processed))
	}
}

func TestScheduler_RunOnce_アカウント単位の失敗でサイクルは継続する(t *testing.T) {
	repo := &mockAccountRepo{
		listAllFn: func(ctx context.Context) ([]*model.MonitoredAccount, error) {
			return testAccounts(3), nil
		},
	}
	ingester := &mockIngester{err: errors.New("fetch failed")}
	s := NewScheduler(repo, ingester, discardLogger(), 2)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if len(ingester.processed) != 3 {
		t.Errorf("processed = %d, want 3", len(ingester.processed))
	}
}

func TestScheduler_RunOnce_一覧取得失敗はエラーを返す(t *testing.T) {
	repo := &mockAccountRepo{
		listAllFn: func(ctx context.Context) ([]*model.MonitoredAccount, error) {
			return nil, errors.New("db down")
		},
	}
	s := NewScheduler(repo, &mockIngester{}, discardLogger(), 2)

	if err := s.RunOnce(context.Background()); err == nil {
		t.Error("一覧取得失敗でエラーが返らなかった")
	}
}

func TestScheduler_Start_コンテキストキャンセルで停止する(t *testing.T) {
	repo := &mockAccountRepo{}
	s := NewScheduler(repo, &mockIngester{}, discardLogger(), 2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx, time.Hour)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("キャンセル後もスケジューラが停止しない")
	}
}
