package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/feedcloud/internal/metrics"
	"github.com/hitoshi/feedcloud/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	UserResolver      middleware.UserResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// サービス
	AuthService  AuthServiceInterface
	UserService  UserServiceInterface
	FeedService  FeedServiceInterface
	EntryService EntryServiceInterface

	// メトリクス
	Gatherer prometheus.Gatherer
	Metrics  middleware.HTTPMetricsRecorder
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Metrics → Logging → Auth → RateLimit(General)
//
// 認証ルート（POST /auth/）とGET /health、GET /metricsは認証チェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}

	authHandler := NewAuthHandler(deps.AuthService)
	userHandler := NewUserHandler(deps.UserService)
	feedHandler := NewFeedHandler(deps.FeedService)
	entryHandler := NewEntryHandler(deps.EntryService)

	// --- 認証不要のルート ---

	r.Post("/auth/", authHandler.Login)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.SetupMetricsRoute(deps.Gatherer))
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.UserResolver))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		// ユーザー管理（管理者のみ）
		r.Post("/users/", userHandler.CreateUser)

		// フィード管理
		r.Route("/feeds", func(r chi.Router) {
			// POST /feeds/ - フィード登録（登録専用レート制限を追加）
			if deps.RateLimiter != nil {
				r.With(deps.RateLimiter.FeedRegistrationMiddleware()).Post("/", feedHandler.RegisterFeed)
			} else {
				r.Post("/", feedHandler.RegisterFeed)
			}
			r.Get("/", feedHandler.ListFeeds)

			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", feedHandler.DeleteFeed)
				r.Put("/force-run", feedHandler.ForceRun)
				r.Get("/entries/", entryHandler.ListFeedEntries)
			})
		})

		// 記事管理
		r.Route("/entries", func(r chi.Router) {
			r.Get("/", entryHandler.ListEntries)
			r.Put("/{id}", entryHandler.UpdateEntry)
		})
	})

	return r
}
