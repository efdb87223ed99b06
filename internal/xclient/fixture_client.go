package xclient

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// FixtureClient は開発・テスト用のインメモリ実装。
// 外部ネットワークに接続せず、登録済みのフィクスチャデータを返す。
type FixtureClient struct {
	mu    sync.RWMutex
	users map[string]string         // username -> xUserID
	posts map[string][]TimelinePost // xUserID -> posts
}

// NewFixtureClient は初期データ入りのFixtureClientを生成する。
func NewFixtureClient() *FixtureClient {
	c := &FixtureClient{
		users: make(map[string]string),
		posts: make(map[string][]TimelinePost),
	}
	c.AddUser("alice_dev", "100001")
	c.AddPost("100001", TimelinePost{
		XPostID:   "1111111111111111111",
		Text:      "shipping a new release today",
		CreatedAt: time.Now().UTC(),
		URL:       "https://twitter.com/i/web/status/1111111111111111111",
	})
	c.AddUser("bob_infra", "100002")
	c.AddPost("100002", TimelinePost{
		XPostID:   "2222222222222222222",
		Text:      "postgres tuning notes",
		CreatedAt: time.Now().UTC(),
		URL:       "https://twitter.com/i/web/status/2222222222222222222",
	})
	return c
}

// AddUser はフィクスチャへユーザーを登録する。
func (c *FixtureClient) AddUser(username, xUserID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[strings.ToLower(username)] = xUserID
}

// AddPost はフィクスチャへポストを追加する。
func (c *FixtureClient) AddPost(xUserID string, post TimelinePost) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.posts[xUserID] = append(c.posts[xUserID], post)
}

// ResolveUsername はフィクスチャからユーザーIDを引く。見つからない場合は空文字列を返す。
func (c *FixtureClient) ResolveUsername(ctx context.Context, username string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.users[strings.ToLower(strings.TrimPrefix(username, "@"))], nil
}

// FetchTimeline はフィクスチャからタイムラインを返す。
func (c *FixtureClient) FetchTimeline(ctx context.Context, xUserID, sinceID string) ([]TimelinePost, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]TimelinePost, 0, len(c.posts[xUserID]))
	for _, post := range c.posts[xUserID] {
		if sinceID != "" && !lessPostID(sinceID, post.XPostID) {
			continue
		}
		result = append(result, post)
	}

	sort.Slice(result, func(i, j int) bool {
		return lessPostID(result[j].XPostID, result[i].XPostID)
	})

	return result, nil
}
