package xclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/pinglet/internal/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestLessPostID_ComparesSnowflakeIDs はポストIDの新旧比較を検証する。
func TestLessPostID_ComparesSnowflakeIDs(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"100", "200", true},
		{"200", "100", false},
		{"99", "100", true}, // 桁数が少ない方が古い
		{"100", "100", false},
	}

	for _, tt := range tests {
		if got := lessPostID(tt.a, tt.b); got != tt.want {
			t.Errorf("lessPostID(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

// TestAPIClient_ResolveUsername はユーザー名がXユーザーIDへ解決されることを検証する。
func TestAPIClient_ResolveUsername(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/by/username/alice" {
			t.Errorf("path = %q, want /users/by/username/alice", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer token-1" {
			t.Errorf("Authorization = %q, want Bearer token-1", auth)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]string{"id": "42", "username": "alice"},
		})
	}))
	defer server.Close()

	c := NewAPIClient(server.Client(), discardLogger(), server.URL, "token-1", 100, 10)

	id, err := c.ResolveUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ResolveUsername returned error: %v", err)
	}
	if id != "42" {
		t.Errorf("id = %q, want 42", id)
	}
}

// TestAPIClient_ResolveUsername_NotFound は404で空文字列が返ることを検証する。
func TestAPIClient_ResolveUsername_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := NewAPIClient(server.Client(), discardLogger(), server.URL, "token-1", 100, 10)

	id, err := c.ResolveUsername(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("ResolveUsername returned error: %v", err)
	}
	if id != "" {
		t.Errorf("id = %q, want empty", id)
	}
}

// TestAPIClient_FetchTimeline はタイムラインがパースされURLが構築されることを検証する。
func TestAPIClient_FetchTimeline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/42/tweets" {
			t.Errorf("path = %q, want /users/42/tweets", r.URL.Path)
		}
		if since := r.URL.Query().Get("since_id"); since != "100" {
			t.Errorf("since_id = %q, want 100", since)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]string{
				{"id": "200", "text": "newest post", "created_at": "2025-06-01T12:00:00Z"},
				{"id": "150", "text": "older post", "created_at": "2025-06-01T10:00:00Z"},
			},
		})
	}))
	defer server.Close()

	c := NewAPIClient(server.Client(), discardLogger(), server.URL, "token-1", 100, 10)

	posts, err := c.FetchTimeline(context.Background(), "42", "100")
	if err != nil {
		t.Fatalf("FetchTimeline returned error: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("posts len = %d, want 2", len(posts))
	}
	if posts[0].XPostID != "200" {
		t.Errorf("posts[0].XPostID = %q, want 200", posts[0].XPostID)
	}
	if posts[0].URL != "https://twitter.com/i/web/status/200" {
		t.Errorf("posts[0].URL = %q", posts[0].URL)
	}
	if posts[0].CreatedAt.Hour() != 12 {
		t.Errorf("posts[0].CreatedAt = %v, want hour 12", posts[0].CreatedAt)
	}
}

// TestRSSClient_FetchTimeline はRSSフィードからポストが抽出されることを検証する。
func TestRSSClient_FetchTimeline(t *testing.T) {
	rss := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>alice / Mirror</title>
<item>
<title>second post text</title>
<link>http://MIRROR/alice/status/300#m</link>
<pubDate>Mon, 02 Jun 2025 09:00:00 GMT</pubDate>
</item>
<item>
<title>first post text</title>
<link>http://MIRROR/alice/status/200#m</link>
<pubDate>Sun, 01 Jun 2025 09:00:00 GMT</pubDate>
</item>
<item>
<title>not a post</title>
<link>http://MIRROR/alice/media</link>
</item>
</channel>
</rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/alice/rss" {
			t.Errorf("path = %q, want /alice/rss", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rss)
	}))
	defer server.Close()

	c := NewRSSClient(server.Client(), discardLogger(), server.URL)

	posts, err := c.FetchTimeline(context.Background(), "alice", "")
	if err != nil {
		t.Fatalf("FetchTimeline returned error: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("posts len = %d, want 2 (ID欠落アイテムはスキップ)", len(posts))
	}
	if posts[0].XPostID != "300" {
		t.Errorf("posts[0].XPostID = %q, want 300 (降順)", posts[0].XPostID)
	}
	if posts[1].Text != "first post text" {
		t.Errorf("posts[1].Text = %q", posts[1].Text)
	}
}

// TestRSSClient_FetchTimeline_SinceID はsinceIDより古いポストが除外されることを検証する。
func TestRSSClient_FetchTimeline_SinceID(t *testing.T) {
	rss := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>t</title>
<item><title>new</title><link>http://m/u/status/300</link></item>
<item><title>old</title><link>http://m/u/status/100</link></item>
</channel></rss>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, rss)
	}))
	defer server.Close()

	c := NewRSSClient(server.Client(), discardLogger(), server.URL)

	posts, err := c.FetchTimeline(context.Background(), "u", "200")
	if err != nil {
		t.Fatalf("FetchTimeline returned error: %v", err)
	}
	if len(posts) != 1 || posts[0].XPostID != "300" {
		t.Errorf("posts = %+v, want only ID 300", posts)
	}
}

// TestExtractPostID はリンクからのポストID抽出を検証する。
func TestExtractPostID(t *testing.T) {
	tests := []struct {
		link string
		want string
	}{
		{"https://nitter.net/alice/status/123#m", "123"},
		{"https://nitter.net/alice/status/123", "123"},
		{"https://nitter.net/alice/media", ""},
		{"https://nitter.net/alice/status/", ""},
		{"https://nitter.net/alice/status/abc", ""},
	}

	for _, tt := range tests {
		if got := extractPostID(tt.link); got != tt.want {
			t.Errorf("extractPostID(%q) = %q, want %q", tt.link, got, tt.want)
		}
	}
}

// TestFixtureClient_ResolveAndFetch はフィクスチャの解決と取得を検証する。
func TestFixtureClient_ResolveAndFetch(t *testing.T) {
	c := NewFixtureClient()
	c.AddUser("carol", "300001")
	c.AddPost("300001", TimelinePost{XPostID: "500", Text: "older"})
	c.AddPost("300001", TimelinePost{XPostID: "600", Text: "newer"})

	id, err := c.ResolveUsername(context.Background(), "@Carol")
	if err != nil {
		t.Fatalf("ResolveUsername returned error: %v", err)
	}
	if id != "300001" {
		t.Errorf("id = %q, want 300001", id)
	}

	posts, err := c.FetchTimeline(context.Background(), "300001", "500")
	if err != nil {
		t.Fatalf("FetchTimeline returned error: %v", err)
	}
	if len(posts) != 1 || posts[0].XPostID != "600" {
		t.Errorf("posts = %+v, want only ID 600", posts)
	}
}

// TestNewFromConfig_SelectsImplementation はTIMELINE_SOURCEで実装が切り替わることを検証する。
func TestNewFromConfig_SelectsImplementation(t *testing.T) {
	logger := discardLogger()

	api, err := NewFromConfig(&config.Config{
		TimelineSource: "api",
		XBearerToken:   "tok",
		XAPIBaseURL:    "https://api.twitter.com/2",
		XRateLimitRPS:  1,
	}, http.DefaultClient, logger)
	if err != nil {
		t.Fatalf("api: %v", err)
	}
	if _, ok := api.(*APIClient); !ok {
		t.Error("expected *APIClient for source api")
	}

	if _, err := NewFromConfig(&config.Config{TimelineSource: "api"}, http.DefaultClient, logger); err == nil {
		t.Error("expected error for api source without bearer token")
	}

	rssClient, err := NewFromConfig(&config.Config{
		TimelineSource:   "rss",
		RSSMirrorBaseURL: "https://nitter.example.com",
	}, http.DefaultClient, logger)
	if err != nil {
		t.Fatalf("rss: %v", err)
	}
	if _, ok := rssClient.(*RSSClient); !ok {
		t.Error("expected *RSSClient for source rss")
	}

	fixture, err := NewFromConfig(&config.Config{}, http.DefaultClient, logger)
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	if _, ok := fixture.(*FixtureClient); !ok {
		t.Error("expected *FixtureClient for empty source")
	}

	if _, err := NewFromConfig(&config.Config{TimelineSource: "carrier-pigeon"}, http.DefaultClient, logger); err == nil {
		t.Error("expected error for unknown source")
	}
}

// TestClients_ImplementInterface は各実装がClientインターフェースを満たすことを検証する。
func TestClients_ImplementInterface(t *testing.T) {
	var _ Client = NewAPIClient(http.DefaultClient, discardLogger(), "", "", 1, 1)
	var _ Client = NewRSSClient(http.DefaultClient, discardLogger(), "")
	var _ Client = NewFixtureClient()
}
