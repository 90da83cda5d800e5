package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/stockman/internal/metrics"
	"github.com/hitoshi/stockman/internal/middleware"
	"github.com/hitoshi/stockman/internal/security"
)

// APIInterface はルーター構成に必要なバックエンド操作をまとめたインターフェース。
// api.Clientがすべてを満たす。
type APIInterface interface {
	AuthAPIInterface
	CategoryAPIInterface
	ProductAPIInterface
	MovementAPIInterface
	DashboardAPIInterface
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	API         APIInterface
	Renderer    *Renderer
	Sanitizer   security.TextSanitizerService
	Collector   metrics.MetricsCollector
	Gatherer    prometheus.Gatherer
	RateLimiter *middleware.RateLimiter
	Logger      *slog.Logger
	Cookies     middleware.CookieConfig
}

// NewRouter は全画面のルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Metrics → Recovery → SecurityHeaders → [Guard → RateLimit(General) → CSRF]
//
// ログイン・登録・ヘルスチェック・メトリクスはガードの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewMetricsMiddleware(deps.Collector))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())

	authHandler := NewAuthHandler(deps.API, deps.Renderer, deps.Collector, deps.Cookies)
	categoryHandler := NewCategoryHandler(deps.API, deps.Renderer, deps.Sanitizer, deps.Cookies)
	productHandler := NewProductHandler(deps.API, deps.Renderer, deps.Sanitizer, deps.Cookies)
	movementHandler := NewMovementHandler(deps.API, deps.Renderer, deps.Sanitizer, deps.Cookies)
	dashboardHandler := NewDashboardHandler(deps.API, deps.Renderer, deps.Sanitizer, deps.Logger, deps.Cookies)

	// --- 認証不要のルート ---

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(middleware.CSRFConfig{CookieSecure: deps.Cookies.Secure, CookieDomain: deps.Cookies.Domain}))

		r.Get("/login", authHandler.LoginForm)
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
		r.Get("/register", authHandler.RegisterForm)
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/register", authHandler.Register)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Guard → RateLimit(General) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewGuardMiddleware(deps.Cookies))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(middleware.CSRFConfig{CookieSecure: deps.Cookies.Secure, CookieDomain: deps.Cookies.Domain}))

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/dashboard", http.StatusFound)
		})

		r.Get("/dashboard", dashboardHandler.Show)

		r.Post("/logout", authHandler.Logout)

		// カテゴリー管理
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", categoryHandler.List)
			r.Get("/new", categoryHandler.NewForm)
			r.Post("/", categoryHandler.Create)

			r.Route("/{categoryID}", func(r chi.Router) {
				r.Get("/edit", categoryHandler.EditForm)
				r.Post("/", categoryHandler.Update)
				r.Get("/delete", categoryHandler.DeleteConfirm)
				r.Post("/delete", categoryHandler.Delete)

				// カテゴリー配下の商品
				r.Route("/products", func(r chi.Router) {
					r.Get("/", productHandler.List)
					r.Get("/new", productHandler.NewForm)
					r.Post("/", productHandler.Create)
				})
			})
		})

		// 商品管理
		r.Route("/products/{productID}", func(r chi.Router) {
			r.Get("/edit", productHandler.EditForm)
			r.Post("/", productHandler.Update)
			r.Get("/delete", productHandler.DeleteConfirm)
			r.Post("/delete", productHandler.Delete)

			// 在庫移動の記録画面
			r.Get("/movements/new", movementHandler.NewForm)
		})

		// 在庫移動
		r.Post("/movements", movementHandler.Create)
	})

	return r
}
