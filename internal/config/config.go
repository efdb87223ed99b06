package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Server
	ServerPort        string
	CORSAllowedOrigin string

	// OpenAI（埋め込み・要約）
	// APIキーが未設定の場合はno-op実装が選択される。選択はファクトリが行い、
	// コア側が資格情報を参照することはない。
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	EmbeddingModel string
	LLMModel       string

	// Xタイムライン取得
	// TimelineSource: "api"（X API v2）, "rss"（RSSミラー）, "fixture"（開発用）
	TimelineSource   string
	XBearerToken     string
	XAPIBaseURL      string
	RSSMirrorBaseURL string
	XRateLimitRPS    float64
	XRateLimitBurst  int

	// 通知
	WebhookURL string

	// 外部プロバイダ呼び出しの上限時間
	ProviderTimeout time.Duration

	// ワーカー
	PollInterval      time.Duration
	PollMaxConcurrent int
	DigestTime        string // "HH:MM"
	Timezone          string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.OpenAIBaseURL = getEnvString("OPENAI_BASE_URL", "https://api.openai.com/v1")
	cfg.EmbeddingModel = getEnvString("EMBEDDING_MODEL", "text-embedding-3-small")
	cfg.LLMModel = getEnvString("LLM_MODEL", "gpt-4o-mini")

	cfg.TimelineSource = getEnvString("TIMELINE_SOURCE", "")
	cfg.XBearerToken = os.Getenv("X_BEARER_TOKEN")
	cfg.XAPIBaseURL = getEnvString("X_API_BASE_URL", "https://api.twitter.com/2")
	cfg.RSSMirrorBaseURL = getEnvString("RSS_MIRROR_BASE_URL", "")
	cfg.XRateLimitRPS = getEnvFloat("X_RATE_LIMIT_RPS", 1.0)
	cfg.XRateLimitBurst = getEnvInt("X_RATE_LIMIT_BURST", 5)

	cfg.WebhookURL = os.Getenv("WEBHOOK_URL")

	cfg.ProviderTimeout = getEnvDuration("PROVIDER_TIMEOUT", 10*time.Second)

	cfg.PollInterval = getEnvDuration("POLL_INTERVAL", 5*time.Minute)
	cfg.PollMaxConcurrent = getEnvInt("POLL_MAX_CONCURRENT", 5)
	cfg.DigestTime = getEnvString("DIGEST_TIME", "08:00")
	cfg.Timezone = getEnvString("TIMEZONE", "UTC")

	return cfg, nil
}

// Location はTimezoneをtime.Locationへ解決する。不明な場合はUTCを返す。
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
