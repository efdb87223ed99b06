package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/pinglet/internal/embedding"
	"github.com/hitoshi/pinglet/internal/middleware"
	"github.com/hitoshi/pinglet/internal/repository"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger            *slog.Logger
	CORSAllowedOrigin string
	Location          *time.Location

	// リポジトリ
	Accounts  repository.AccountRepository
	Topics    repository.TopicRepository
	Rules     repository.RuleRepository
	AlertLogs repository.AlertLogRepository
	Digests   repository.DigestRepository

	// サービス
	Resolver  UsernameResolver
	Embedder  embedding.Provider
	Composer  DigestComposerInterface
	Ingestion IngestionServiceInterface

	// /metrics に公開するPrometheusハンドラー
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → CORS → UserContext
//
// /healthz と /metrics はユーザーコンテキストを要求しないため、チェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	accountHandler := NewAccountHandler(deps.Accounts, deps.Resolver)
	topicHandler := NewTopicHandler(deps.Topics, deps.Embedder, deps.Logger)
	ruleHandler := NewRuleHandler(deps.Rules, deps.Topics)
	alertLogHandler := NewAlertLogHandler(deps.AlertLogs)
	digestHandler := NewDigestHandler(deps.Digests, deps.Composer, deps.Location)
	ingestionHandler := NewIngestionHandler(deps.Ingestion, deps.Accounts)

	// --- ユーザーコンテキスト不要のルート ---

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- ユーザーコンテキストが必要なルート ---

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewUserContextMiddleware())

		// 監視アカウント管理
		r.Route("/api/accounts", func(r chi.Router) {
			r.Get("/", accountHandler.ListAccounts)
			r.Post("/", accountHandler.CreateAccount)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", accountHandler.GetAccount)
				r.Patch("/", accountHandler.PatchAccount)
				r.Delete("/", accountHandler.DeleteAccount)

				// POST /api/accounts/{id}/ingest - 単一アカウントの即時取り込み
				r.Post("/ingest", ingestionHandler.IngestAccount)
			})
		})

		// トピック管理
		r.Route("/api/topics", func(r chi.Router) {
			r.Get("/", topicHandler.ListTopics)
			r.Post("/", topicHandler.CreateTopic)

			r.Route("/{id}", func(r chi.Router) {
				r.Patch("/", topicHandler.PatchTopic)
				r.Delete("/", topicHandler.DeleteTopic)
			})
		})

		// アラートルール管理
		r.Route("/api/rules", func(r chi.Router) {
			r.Get("/", ruleHandler.ListRules)
			r.Post("/", ruleHandler.CreateRule)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", ruleHandler.GetRule)
				r.Patch("/", ruleHandler.PatchRule)
				r.Delete("/", ruleHandler.DeleteRule)
			})
		})

		// アラート発火履歴
		r.Get("/api/alerts", alertLogHandler.ListAlertLogs)

		// ダイジェスト
		r.Route("/api/digests", func(r chi.Router) {
			r.Post("/", digestHandler.GenerateDigest)
			r.Get("/latest", digestHandler.GetLatestDigest)
			r.Get("/{date}", digestHandler.GetDigestByDate)
		})

		// 取り込みのオンデマンド実行
		r.Post("/api/ingestion/run", ingestionHandler.RunIngestion)
	})

	return r
}
