// Package app はアプリケーションの初期化と起動を行う。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/pinglet/internal/alert"
	"github.com/hitoshi/pinglet/internal/config"
	"github.com/hitoshi/pinglet/internal/database"
	"github.com/hitoshi/pinglet/internal/digest"
	"github.com/hitoshi/pinglet/internal/embedding"
	"github.com/hitoshi/pinglet/internal/handler"
	"github.com/hitoshi/pinglet/internal/ingestion"
	"github.com/hitoshi/pinglet/internal/llm"
	"github.com/hitoshi/pinglet/internal/logger"
	"github.com/hitoshi/pinglet/internal/metrics"
	"github.com/hitoshi/pinglet/internal/model"
	"github.com/hitoshi/pinglet/internal/notifier"
	"github.com/hitoshi/pinglet/internal/repository"
	"github.com/hitoshi/pinglet/internal/security"
	"github.com/hitoshi/pinglet/internal/worker/daily"
	"github.com/hitoshi/pinglet/internal/worker/poll"
	"github.com/hitoshi/pinglet/internal/xclient"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("timeline_source", cfg.TimelineSource),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// core はサーバーとワーカーが共有するドメインサービス群。
type core struct {
	accounts  repository.AccountRepository
	topics    repository.TopicRepository
	rules     repository.RuleRepository
	alertLogs repository.AlertLogRepository
	digests   repository.DigestRepository

	embedder  embedding.Provider
	xClient   xclient.Client
	ingestion *ingestion.Service
	composer  *digest.Composer

	metricsHandler http.Handler
}

// buildCore はDB接続の上に全ドメインサービスをワイヤリングする。
func buildCore(cfg *config.Config, db *sql.DB) (*core, error) {
	log := slog.Default()

	// 1. リポジトリの初期化
	accountRepo := repository.NewPostgresAccountRepo(db)
	postRepo := repository.NewPostgresPostRepo(db)
	topicRepo := repository.NewPostgresTopicRepo(db)
	ruleRepo := repository.NewPostgresRuleRepo(db)
	alertLogRepo := repository.NewPostgresAlertLogRepo(db)
	digestRepo := repository.NewPostgresDigestRepo(db)

	// 2. セキュリティサービスと外部プロバイダの初期化
	ssrfGuard := security.NewSSRFGuard()
	safeClient := ssrfGuard.NewSafeClient(cfg.ProviderTimeout)
	sanitizer := security.NewTextSanitizer()

	embedder := embedding.NewFromConfig(cfg, safeClient, log)
	generator := llm.NewFromConfig(cfg, safeClient, log)

	xClient, err := xclient.NewFromConfig(cfg, safeClient, log)
	if err != nil {
		return nil, fmt.Errorf("タイムラインクライアントの初期化に失敗しました: %w", err)
	}

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. 通知レジストリの初期化
	notifiers := notifier.NewRegistry(log, safeClient, cfg.WebhookURL)

	// 5. アラートパイプラインの初期化
	cooldown := alert.NewCooldownTracker(alertLogRepo)
	matcher := alert.NewRuleMatcher(postRepo, topicRepo, cooldown, embedder, collector, log)
	engine := alert.NewEngine(ruleRepo, alertLogRepo, matcher, generator, notifiers, collector, log)

	// 6. 取り込みサービスの初期化
	ingestSvc := ingestion.NewService(accountRepo, postRepo, xClient, sanitizer, engine, collector, log)

	// 7. ダイジェストの初期化
	// Webhook URLが設定されている場合はダイジェストもWebhookで通知する
	digestChannel := model.ChannelLog
	if cfg.WebhookURL != "" {
		digestChannel = model.ChannelWebhook
	}
	selector := digest.NewRelevanceSelector()
	composer := digest.NewComposer(
		accountRepo, postRepo, topicRepo, digestRepo,
		selector, generator, notifiers.For(digestChannel), collector, log,
	)

	return &core{
		accounts:       accountRepo,
		topics:         topicRepo,
		rules:          ruleRepo,
		alertLogs:      alertLogRepo,
		digests:        digestRepo,
		embedder:       embedder,
		xClient:        xClient,
		ingestion:      ingestSvc,
		composer:       composer,
		metricsHandler: metrics.Handler(registry),
	}, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	c, err := buildCore(cfg, db)
	if err != nil {
		return err
	}

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Location:          cfg.Location(),

		Accounts:  c.accounts,
		Topics:    c.topics,
		Rules:     c.rules,
		AlertLogs: c.alertLogs,
		Digests:   c.digests,

		Resolver:  c.xClient,
		Embedder:  c.embedder,
		Composer:  c.composer,
		Ingestion: c.ingestion,

		MetricsHandler: c.metricsHandler,
	}

	router := handler.NewRouter(deps)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// タイムライン取り込みスケジューラと日次ダイジェストジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	c, err := buildCore(cfg, db)
	if err != nil {
		return err
	}

	scheduler := poll.NewScheduler(c.accounts, c.ingestion, slog.Default(), cfg.PollMaxConcurrent)

	digestJob, err := daily.NewJob(c.accounts, c.composer, slog.Default(), cfg.DigestTime, cfg.Location())
	if err != nil {
		return fmt.Errorf("ダイジェストジョブの初期化に失敗しました: %w", err)
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("poll_interval", cfg.PollInterval),
		slog.Int("max_concurrent", cfg.PollMaxConcurrent),
		slog.String("digest_time", cfg.DigestTime),
	)

	// 日次ダイジェストジョブをバックグラウンドで起動
	go digestJob.Start(ctx)

	// 取り込みスケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.PollInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
