package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/stockman/internal/api"
	"github.com/hitoshi/stockman/internal/metrics"
	"github.com/hitoshi/stockman/internal/middleware"
	"github.com/hitoshi/stockman/internal/model"
)

// stubAPI はルーター組み立てテスト用の固定応答バックエンド。
type stubAPI struct{}

func (stubAPI) Login(ctx context.Context, email, password string) (string, error) {
	return validToken, nil
}
func (stubAPI) Register(ctx context.Context, name, email, password string) error { return nil }
func (stubAPI) ListCategories(ctx context.Context, token string) ([]model.Category, error) {
	return []model.Category{{ID: 1, Name: "文具"}}, nil
}
func (stubAPI) GetCategory(ctx context.Context, token string, id int64) (*model.Category, error) {
	return &model.Category{ID: id, Name: "文具"}, nil
}
func (stubAPI) CreateCategory(ctx context.Context, token, name, description string) error { return nil }
func (stubAPI) UpdateCategory(ctx context.Context, token string, id int64, name, description string) error {
	return nil
}
func (stubAPI) DeleteCategory(ctx context.Context, token string, id int64) error { return nil }
func (stubAPI) ListProducts(ctx context.Context, token string) ([]model.Product, error) {
	return []model.Product{{ID: 1, Name: "ボールペン", CategoryID: 1}}, nil
}
func (stubAPI) GetProduct(ctx context.Context, token string, id int64) (*model.Product, error) {
	return &model.Product{ID: id, Name: "ボールペン", CategoryID: 1}, nil
}
func (stubAPI) CreateProduct(ctx context.Context, token string, input api.ProductInput) error {
	return nil
}
func (stubAPI) UpdateProduct(ctx context.Context, token string, id int64, input api.ProductInput) error {
	return nil
}
func (stubAPI) DeleteProduct(ctx context.Context, token string, id int64) error { return nil }
func (stubAPI) ListMovements(ctx context.Context, token string, filter api.MovementFilter) ([]model.Movement, error) {
	return nil, nil
}
func (stubAPI) CreateMovement(ctx context.Context, token string, input api.MovementInput) error {
	return nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	registry := prometheus.NewRegistry()
	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(limiter.Stop)
	return NewRouter(&RouterDeps{
		API:         stubAPI{},
		Renderer:    newTestRenderer(t),
		Sanitizer:   passthroughSanitizer{},
		Collector:   metrics.NewCollector(registry),
		Gatherer:    registry,
		RateLimiter: limiter,
		Logger:      slog.New(slog.NewJSONHandler(io.Discard, nil)),
		Cookies:     middleware.CookieConfig{},
	})
}

// --- テスト ---

func TestRouter_Healthz(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if body := w.Body.String(); body != "ok" {
		t.Errorf("body = %q, want %q", body, "ok")
	}
}

func TestRouter_Metrics(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_GuardedRoutesRedirectWithoutToken(t *testing.T) {
	router := newTestRouter(t)

	paths := []string{"/dashboard", "/categories", "/categories/1/products", "/products/1/edit"}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusFound {
				t.Errorf("status = %d, want %d", w.Code, http.StatusFound)
			}
			if location := w.Header().Get("Location"); location != "/login" {
				t.Errorf("Location = %q, want %q", location, "/login")
			}
		})
	}
}

func TestRouter_GuardedRouteServedWithValidToken(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/categories", nil)
	req.AddCookie(&http.Cookie{Name: middleware.TokenCookieName, Value: validToken})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !containsStr(w.Body.String(), "文具") {
		t.Error("expected category list body")
	}
}

func TestRouter_RootRedirectsToDashboard(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: middleware.TokenCookieName, Value: validToken})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusFound)
	}
	if location := w.Header().Get("Location"); location != "/dashboard" {
		t.Errorf("Location = %q, want %q", location, "/dashboard")
	}
}

func TestRouter_LoginPageIssuesCSRFCookie(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.CSRFFormField && c.Value != "" {
			found = true
		}
	}
	if !found {
		t.Error("expected csrf cookie on login page")
	}
	// 発行したトークンはフォームの隠しフィールドに埋め込まれる
	if !containsStr(w.Body.String(), `name="csrf_token"`) {
		t.Error("expected csrf hidden field in form")
	}
}

func TestRouter_MutationWithoutCSRFTokenRejected(t *testing.T) {
	router := newTestRouter(t)

	form := url.Values{}
	form.Set("name", "文具")
	req := httptest.NewRequest(http.MethodPost, "/categories", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: middleware.TokenCookieName, Value: validToken})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
}

func TestRouter_MutationWithMatchingCSRFTokenAccepted(t *testing.T) {
	router := newTestRouter(t)

	form := url.Values{}
	form.Set("name", "文具")
	form.Set("csrf_token", "csrf-value-1")
	req := httptest.NewRequest(http.MethodPost, "/categories", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: middleware.TokenCookieName, Value: validToken})
	req.AddCookie(&http.Cookie{Name: middleware.CSRFFormField, Value: "csrf-value-1"})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusFound)
	}
	if location := w.Header().Get("Location"); location != "/categories" {
		t.Errorf("Location = %q, want %q", location, "/categories")
	}
}

func TestRouter_SecurityHeadersApplied(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	headers := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
	}
	for name, want := range headers {
		if got := w.Header().Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	if w.Header().Get("Content-Security-Policy") == "" {
		t.Error("expected Content-Security-Policy header")
	}
}

func TestRouter_ExpiredTokenRedirectsAndClearsCookie(t *testing.T) {
	router := newTestRouter(t)

	// exp = 1 (1970年) の失効済みトークン
	expired := "h.eyJpZCI6MSwiZXhwIjoxfQ.s"
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: middleware.TokenCookieName, Value: expired})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusFound)
	}
	if location := w.Header().Get("Location"); location != "/login" {
		t.Errorf("Location = %q, want %q", location, "/login")
	}
	if !tokenCookieCleared(w) {
		t.Error("expected token cookie to be cleared")
	}
}
