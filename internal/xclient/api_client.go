package xclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// APIClient はX API v2のクライアント。
// x/timeのトークンバケットでリクエストをレート制限する。
// X APIのユーザータイムラインは15分あたりのリクエスト上限が厳しいため、
// 監視アカウント数が多い場合はRPSを下げて運用する。
type APIClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string // テスト用にエンドポイントを差し替え可能
	token      string
	limiter    *rate.Limiter
}

// NewAPIClient はAPIClientの新しいインスタンスを生成する。
func NewAPIClient(httpClient *http.Client, logger *slog.Logger, baseURL, token string, rps float64, burst int) *APIClient {
	return &APIClient{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
		token:      token,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}
}

type userLookupResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type timelineResponse struct {
	Data []struct {
		ID        string `json:"id"`
		Text      string `json:"text"`
		CreatedAt string `json:"created_at"`
	} `json:"data"`
}

// ResolveUsername はユーザー名をX API v2でXユーザーIDへ解決する。
// 404の場合は空文字列を返す。
func (c *APIClient) ResolveUsername(ctx context.Context, username string) (string, error) {
	body, status, err := c.get(ctx, fmt.Sprintf("%s/users/by/username/%s", c.baseURL, url.PathEscape(username)), nil)
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", nil
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("X APIがステータス %d を返しました", status)
	}

	var result userLookupResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return result.Data.ID, nil
}

// FetchTimeline はX API v2でユーザータイムラインを取得する。
// 404の場合は空スライスを返す。
func (c *APIClient) FetchTimeline(ctx context.Context, xUserID, sinceID string) ([]TimelinePost, error) {
	params := url.Values{}
	params.Set("max_results", "100")
	params.Set("tweet.fields", "created_at,text")
	if sinceID != "" {
		params.Set("since_id", sinceID)
	}

	body, status, err := c.get(ctx, fmt.Sprintf("%s/users/%s/tweets", c.baseURL, url.PathEscape(xUserID)), params)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return []TimelinePost{}, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("X APIがステータス %d を返しました", status)
	}

	var result timelineResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	posts := make([]TimelinePost, 0, len(result.Data))
	for _, tweet := range result.Data {
		createdAt, err := time.Parse(time.RFC3339, tweet.CreatedAt)
		if err != nil {
			c.logger.Warn("ポストの作成日時のパースに失敗しました",
				slog.String("x_post_id", tweet.ID),
				slog.String("created_at", tweet.CreatedAt),
			)
			createdAt = time.Now().UTC()
		}
		posts = append(posts, TimelinePost{
			XPostID:   tweet.ID,
			Text:      tweet.Text,
			CreatedAt: createdAt,
			URL:       fmt.Sprintf("https://twitter.com/i/web/status/%s", tweet.ID),
		})
	}
	return posts, nil
}

// get はレート制限を待ってからGETリクエストを実行する。
func (c *APIClient) get(ctx context.Context, rawURL string, params url.Values) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("レート制限の待機に失敗しました: %w", err)
	}

	if len(params) > 0 {
		rawURL = rawURL + "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("X APIの呼び出しに失敗しました", slog.String("error", err.Error()))
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	return body, resp.StatusCode, nil
}
