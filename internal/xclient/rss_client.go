package xclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/mmcdole/gofeed"
)

// RSSClient はNitter系のRSSミラーからタイムラインを取得するクライアント。
// X APIの認証情報なしで運用できる代替タイムラインソース。
// RSSミラーはユーザー名ベースでフィードを公開するため、
// ResolveUsernameはユーザー名自体をIDとして返す。
type RSSClient struct {
	parser  *gofeed.Parser
	logger  *slog.Logger
	baseURL string
}

// NewRSSClient はRSSClientの新しいインスタンスを生成する。
// httpClientにはsecurity.SSRFGuardServiceが生成した安全なクライアントを渡すこと。
func NewRSSClient(httpClient *http.Client, logger *slog.Logger, baseURL string) *RSSClient {
	parser := gofeed.NewParser()
	parser.Client = httpClient
	return &RSSClient{
		parser:  parser,
		logger:  logger,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// ResolveUsername はユーザー名をそのままIDとして返す。
func (c *RSSClient) ResolveUsername(ctx context.Context, username string) (string, error) {
	return strings.ToLower(strings.TrimPrefix(username, "@")), nil
}

// FetchTimeline はRSSフィードからタイムラインを取得する。
// フィードアイテムのリンク末尾（/status/<id>）からポストIDを抽出する。
// IDを抽出できないアイテムはスキップする。
func (c *RSSClient) FetchTimeline(ctx context.Context, xUserID, sinceID string) ([]TimelinePost, error) {
	feedURL := fmt.Sprintf("%s/%s/rss", c.baseURL, xUserID)

	feed, err := c.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("RSSフィードの取得に失敗しました: %w", err)
	}

	posts := make([]TimelinePost, 0, len(feed.Items))
	for _, item := range feed.Items {
		postID := extractPostID(item.Link)
		if postID == "" {
			c.logger.Warn("フィードアイテムからポストIDを抽出できませんでした",
				slog.String("link", item.Link),
			)
			continue
		}
		if sinceID != "" && !lessPostID(sinceID, postID) {
			continue
		}

		post := TimelinePost{
			XPostID: postID,
			Text:    item.Title,
			URL:     item.Link,
		}
		if item.PublishedParsed != nil {
			post.CreatedAt = item.PublishedParsed.UTC()
		}
		posts = append(posts, post)
	}

	// フィードの並びに依存せず作成日時降順へ揃える
	sort.Slice(posts, func(i, j int) bool {
		return lessPostID(posts[j].XPostID, posts[i].XPostID)
	})

	return posts, nil
}

// extractPostID はポストURLの /status/<id> 部分からIDを抽出する。
func extractPostID(link string) string {
	idx := strings.LastIndex(link, "/status/")
	if idx < 0 {
		return ""
	}
	id := link[idx+len("/status/"):]
	// Nitterはリンク末尾に #m を付与する
	if hash := strings.IndexByte(id, '#'); hash >= 0 {
		id = id[:hash]
	}
	if id == "" {
		return ""
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return id
}
