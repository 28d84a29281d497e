package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/finmemory/finmemory/internal/metrics"
	"github.com/finmemory/finmemory/internal/middleware"
)

// HealthChecker はヘルスチェックでの死活確認インターフェース。
// *sql.DBがそのまま満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// ヘルスチェック
	HealthChecker HealthChecker

	// メトリクス
	MetricsCollector metrics.MetricsCollector
	MetricsHandler   http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 取引
	TransactionService TransactionServiceInterface
	Deriver            PricePointDeriver
	TransactionConfig  TransactionHandlerConfig

	// 価格マップ
	PricePointReader PricePointReader
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → (認証ルート以外) Session → RateLimit
//
// 認証ルート（/auth/*）、/health、/metricsはセッション検証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	var recorder middleware.StatusRecorder
	if deps.MetricsCollector != nil {
		recorder = deps.MetricsCollector
	}
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, recorder))

	authHandler := NewAuthHandler(deps.AuthService, deps.MetricsCollector, deps.AuthConfig)
	txnHandler := NewTransactionHandler(deps.TransactionService, deps.Deriver, deps.TransactionConfig)
	ppHandler := NewPricePointHandler(deps.PricePointReader)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.PingContext(req.Context()); err != nil {
				deps.Logger.Error("health check failed", slog.String("error", err.Error()))
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.Write([]byte(`{"status":"ok"}`))
	})

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 取引管理
		r.Route("/api/transactions", func(r chi.Router) {
			// POST /api/transactions - 取引登録（登録専用レート制限を追加）
			r.With(deps.RateLimiter.TransactionSaveMiddleware()).Post("/", txnHandler.SaveTransaction)

			r.Get("/", txnHandler.ListTransactions)
			r.Get("/{id}", txnHandler.GetTransaction)
		})

		// 価格マップ
		r.Route("/api/price-points", func(r chi.Router) {
			r.Get("/", ppHandler.ListByStore)
			r.Get("/map", ppHandler.ListInBounds)
		})
	})

	return r
}
