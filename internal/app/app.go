// Package app はアプリケーションの起動とサブコマンドの実行を提供する。
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
	"golang.org/x/time/rate"

	"github.com/hitoshi/feedcloud/internal/auth"
	"github.com/hitoshi/feedcloud/internal/config"
	"github.com/hitoshi/feedcloud/internal/database"
	"github.com/hitoshi/feedcloud/internal/entry"
	"github.com/hitoshi/feedcloud/internal/feed"
	"github.com/hitoshi/feedcloud/internal/handler"
	"github.com/hitoshi/feedcloud/internal/logger"
	"github.com/hitoshi/feedcloud/internal/metrics"
	"github.com/hitoshi/feedcloud/internal/middleware"
	"github.com/hitoshi/feedcloud/internal/notify"
	"github.com/hitoshi/feedcloud/internal/queue"
	"github.com/hitoshi/feedcloud/internal/repository"
	"github.com/hitoshi/feedcloud/internal/security"
	"github.com/hitoshi/feedcloud/internal/user"
	"github.com/hitoshi/feedcloud/internal/worker/ingest"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) *config.Config {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	return config.Load()
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("FEEDCLOUD_SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg := Init(w)

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandScheduler:
		return runScheduler(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandCreateUser:
		return runCreateUser(cfg, args[1:])
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// newEnqueuer はタスク投入用のEnqueuerを生成する。
// IsTestingの場合はインメモリブローカーに差し替える。
func newEnqueuer(cfg *config.Config) (queue.Enqueuer, error) {
	if cfg.IsTesting {
		return queue.NewMemoryBroker(128), nil
	}
	return queue.NewAsynqEnqueuer(cfg.BrokerURL)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	feedRepo := repository.NewPostgresFeedRepo(db)
	entryRepo := repository.NewPostgresEntryRepo(db)

	// 3. セキュリティサービスとメトリクスの初期化
	ssrfGuard := security.NewSSRFGuard()
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. タスク投入の初期化
	enqueuer, err := newEnqueuer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create enqueuer: %w", err)
	}

	// 5. ドメインサービスの初期化
	issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	authService := auth.NewService(userRepo, issuer)
	userService := user.NewService(userRepo)
	feedDetector := feed.NewFeedDetector(ssrfGuard)
	feedService := feed.NewService(feedRepo, feedDetector, enqueuer)
	entryService := entry.NewService(entryRepo, feedRepo)

	// 6. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		UserResolver:      authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		AuthService:  authService,
		UserService:  userService,
		FeedService:  feedService,
		EntryService: entryService,

		Gatherer: registry,
		Metrics:  collector,
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
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

// runWorker はタスクワーカーモードで起動する。
// ブローカーからダウンロードタスクと失敗通知タスクを消費する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. リポジトリと永続化層の初期化
	feedRepo := repository.NewPostgresFeedRepo(db)
	entryRepo := repository.NewPostgresEntryRepo(db)
	runRepo := repository.NewPostgresRunRepo(db)
	store := repository.NewIngestStore(db, entryRepo, runRepo)

	// 3. セキュリティサービスとメトリクスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. タスク投入の初期化（失敗通知タスクの投入に使用する）
	enqueuer, err := newEnqueuer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create enqueuer: %w", err)
	}

	// 5. ワーカーと通知の初期化
	downloader := ingest.NewHTTPDownloader(ssrfGuard, cfg.DownloadTimeout, cfg.DownloadMaxSize)
	worker := ingest.NewWorker(
		feedRepo, store, downloader, sanitizer,
		enqueuer, collector, slog.Default(), cfg.FeedMaxFailureCount,
	)
	notifier := notify.NewLogNotifier(feedRepo, collector, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	slog.Info("worker starting",
		slog.Int("concurrency", cfg.WorkerConcurrency),
		slog.Int("max_failure_count", cfg.FeedMaxFailureCount),
	)

	// IsTestingの場合はインメモリブローカーをこのプロセスで直接消費する
	if broker, ok := enqueuer.(*queue.MemoryBroker); ok {
		go func() {
			<-stop
			slog.Info("shutting down worker...")
			cancel()
		}()

		broker.Run(ctx, worker.Run, notifier.NotifyTerminalFailure)
		slog.Info("worker stopped gracefully")
		return nil
	}

	server, err := queue.NewAsynqServer(
		cfg.BrokerURL, cfg.WorkerConcurrency,
		worker.Run, notifier.NotifyTerminalFailure,
	)
	if err != nil {
		return fmt.Errorf("failed to create task server: %w", err)
	}

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		server.Shutdown()
	}()

	if err := server.Run(); err != nil {
		return fmt.Errorf("task server stopped with error: %w", err)
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runScheduler はスケジューラモードで起動する。
// 定期的に更新対象フィードを選択し、ダウンロードタスクを投入する。
func runScheduler(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. 依存の初期化
	feedRepo := repository.NewPostgresFeedRepo(db)
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	enqueuer, err := newEnqueuer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create enqueuer: %w", err)
	}

	scheduler := ingest.NewScheduler(feedRepo, enqueuer, collector, slog.Default())

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down scheduler...")
		cancel()
	}()

	// スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.SchedulerInterval)

	slog.Info("scheduler stopped gracefully")
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

// runCreateUser は管理用のユーザー作成コマンドを実行する。
// 初回の管理者ユーザーをAPIを経由せずに作成するために使用する。
// 使用法: createuser <username> <password> [--admin]
func runCreateUser(cfg *config.Config, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: createuser <username> <password> [--admin]")
	}
	username, password := args[0], args[1]

	isAdmin := false
	for _, a := range args[2:] {
		if a == "--admin" {
			isAdmin = true
		}
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	userRepo := repository.NewPostgresUserRepo(db)
	userService := user.NewService(userRepo)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	u, err := userService.CreateUser(ctx, username, password, isAdmin)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user created via CLI",
		slog.Int64("user_id", u.ID),
		slog.String("username", u.Username),
		slog.Bool("is_admin", u.IsAdmin),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
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
