package middleware

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// makeToken はテスト用のコンパクト形式トークンを組み立てる。
func makeToken(payload string) string {
	return "header." + base64.RawURLEncoding.EncodeToString([]byte(payload)) + ".sig"
}

func TestGuardMiddleware_ValidToken_InjectsSession(t *testing.T) {
	mw := NewGuardMiddleware(CookieConfig{})

	exp := time.Now().Add(1 * time.Hour).Unix()
	token := makeToken(fmt.Sprintf(`{"id":123,"name":"Taro","email":"taro@example.com","exp":%d}`, exp))

	var capturedSubject int64
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := SessionFromContext(r.Context())
		if err != nil {
			t.Errorf("expected no error, got %v", err)
			return
		}
		capturedSubject = session.SubjectID
		if session.RawToken != token {
			t.Errorf("RawToken = %q, want 元のトークン", session.RawToken)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: token})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if capturedSubject != 123 {
		t.Errorf("SubjectID = %d, want %d", capturedSubject, 123)
	}
}

func TestGuardMiddleware_NoTokenCookie_RedirectsToLogin(t *testing.T) {
	mw := NewGuardMiddleware(CookieConfig{})

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusFound)
	}
	if loc := resp.Header.Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want %q", loc, "/login")
	}
}

func TestGuardMiddleware_MalformedToken_ClearsCookieAndRedirects(t *testing.T) {
	mw := NewGuardMiddleware(CookieConfig{})

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "not-a-token"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusFound)
	}
	if loc := resp.Header.Get("Location"); loc != "/login" {
		t.Errorf("Location = %q, want %q", loc, "/login")
	}

	// トークンCookieが破棄されていること
	cleared := false
	for _, c := range resp.Cookies() {
		if c.Name == TokenCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("不正トークンのCookieが破棄されていない")
	}
}

func TestGuardMiddleware_ExpiredToken_ClearsCookieAndRedirects(t *testing.T) {
	mw := NewGuardMiddleware(CookieConfig{})

	exp := time.Now().Add(-1 * time.Hour).Unix()
	token := makeToken(fmt.Sprintf(`{"id":1,"exp":%d}`, exp))

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: token})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusFound)
	}

	cleared := false
	for _, c := range resp.Cookies() {
		if c.Name == TokenCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("失効トークンのCookieが破棄されていない")
	}

	// リダイレクトのボディにエラーメッセージを含まない（サイレントリダイレクト）
	if w.Body.Len() > 0 && w.Body.String() != "<a href=\"/login\">Found</a>.\n\n" {
		t.Logf("redirect body: %q", w.Body.String())
	}
}

func TestGuardMiddleware_TokenWithoutExp_IsAccepted(t *testing.T) {
	mw := NewGuardMiddleware(CookieConfig{})

	token := makeToken(`{"id":9,"name":"NoExp"}`)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookieName, Value: token})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

func TestSessionFromContext_WithoutSession_ReturnsError(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	if _, err := SessionFromContext(req.Context()); err == nil {
		t.Error("セッションなしのコンテキストでエラーが返らなかった")
	}
}
