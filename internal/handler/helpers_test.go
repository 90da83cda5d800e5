package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/stockman/internal/flash"
	"github.com/hitoshi/stockman/internal/middleware"
	"github.com/hitoshi/stockman/internal/model"
)

// --- テスト用ヘルパー ---

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	renderer, err := NewRenderer(slog.New(slog.NewJSONHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	return renderer
}

func testSession() *model.Session {
	return &model.Session{
		SubjectID:   1,
		DisplayName: "テスト太郎",
		Email:       "taro@example.com",
		RawToken:    "test-token",
	}
}

// getRequest は認証済みセッション付きのGETリクエストを組み立てる。
func getRequest(path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	return req.WithContext(middleware.ContextWithSession(req.Context(), testSession()))
}

// postFormRequest は認証済みセッション付きのフォーム送信リクエストを組み立てる。
func postFormRequest(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req.WithContext(middleware.ContextWithSession(req.Context(), testSession()))
}

// withURLParam はchiのパスパラメータをリクエストに付与する。
func withURLParam(r *http.Request, name, value string) *http.Request {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		rctx = chi.NewRouteContext()
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
	}
	rctx.URLParams.Add(name, value)
	return r
}

// publishedFlash はレスポンスに設定された通知Cookieをデコードして返す。
func publishedFlash(t *testing.T, w *httptest.ResponseRecorder) *flash.Flash {
	t.Helper()
	var latest *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "flash" && c.MaxAge >= 0 {
			latest = c
		}
	}
	if latest == nil {
		return nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(latest.Value)
	if err != nil {
		t.Fatalf("flash cookie decode error = %v", err)
	}
	var f flash.Flash
	if err := json.Unmarshal(decoded, &f); err != nil {
		t.Fatalf("flash cookie unmarshal error = %v", err)
	}
	return &f
}

// tokenCookieCleared はトークンCookieが消去指示付きで設定されたかどうかを返す。
func tokenCookieCleared(w *httptest.ResponseRecorder) bool {
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.TokenCookieName && c.MaxAge < 0 {
			return true
		}
	}
	return false
}

// passthroughSanitizer はテスト用にテキストをそのまま返すサニタイザー。
type passthroughSanitizer struct{}

func (passthroughSanitizer) Sanitize(raw string) string { return raw }

func containsStr(s, substr string) bool {
	return strings.Contains(s, substr)
}
