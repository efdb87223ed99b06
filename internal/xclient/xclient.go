// Package xclient はX（Twitter）タイムラインの取得を提供する。
// X API v2クライアント、RSSミラークライアント、開発用フィクスチャの3実装を含む。
package xclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/pinglet/internal/config"
)

// TimelinePost は取得したタイムライン上の1ポストを表す。
// 永続化前の生データであり、本文はサニタイズ前。
type TimelinePost struct {
	XPostID   string
	Text      string
	CreatedAt time.Time
	URL       string
}

// Client はタイムライン取得のインターフェース。
type Client interface {
	// ResolveUsername はユーザー名（@なし）をXユーザーIDへ解決する。
	// 見つからない場合は空文字列を返す。
	ResolveUsername(ctx context.Context, username string) (string, error)

	// FetchTimeline は指定ユーザーのタイムラインを取得する。
	// sinceIDが空でない場合、そのポストIDより新しいポストのみを返す。
	// 戻り値は作成日時降順で、先頭が最新ポストとなる。
	FetchTimeline(ctx context.Context, xUserID, sinceID string) ([]TimelinePost, error)
}

// NewFromConfig は設定に応じたClientを生成する。
// TIMELINE_SOURCEは "api"（X API v2）, "rss"（RSSミラー）, "fixture"（開発用）を受け付ける。
func NewFromConfig(cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (Client, error) {
	switch cfg.TimelineSource {
	case "api":
		if cfg.XBearerToken == "" {
			return nil, fmt.Errorf("TIMELINE_SOURCE=api にはX_BEARER_TOKENが必要です")
		}
		return NewAPIClient(httpClient, logger, cfg.XAPIBaseURL, cfg.XBearerToken, cfg.XRateLimitRPS, cfg.XRateLimitBurst), nil
	case "rss":
		if cfg.RSSMirrorBaseURL == "" {
			return nil, fmt.Errorf("TIMELINE_SOURCE=rss にはRSS_MIRROR_BASE_URLが必要です")
		}
		return NewRSSClient(httpClient, logger, cfg.RSSMirrorBaseURL), nil
	case "fixture", "":
		return NewFixtureClient(), nil
	default:
		return nil, fmt.Errorf("不明なTIMELINE_SOURCEです: %s", cfg.TimelineSource)
	}
}

// lessPostID はXポストIDの新旧を比較する。
// XのポストID（Snowflake）は数値として単調増加するため、
// 桁数が多いほど新しく、同桁数なら辞書順で比較できる。
func lessPostID(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
