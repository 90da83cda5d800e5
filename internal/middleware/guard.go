// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/stockman/internal/auth"
	"github.com/hitoshi/stockman/internal/model"
)

// TokenCookieName は永続化されるベアラートークンの格納キー。
// クライアント側に永続化される状態はこのCookie1つのみ。
const TokenCookieName = "token"

// loginPath は未認証時のリダイレクト先。
const loginPath = "/login"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストにセッションを格納するためのキー。
var sessionContextKey = contextKey("session")

// CookieConfig はトークンCookieの発行・破棄に必要な属性を保持する。
type CookieConfig struct {
	Secure bool
	Domain string
}

// NewGuardMiddleware は保護対象ルートのガードミドルウェアを返す。
//
// リクエストごとにトークンCookieをデコードし、次のいずれかに確定させる:
//   - 認証済み: Sessionをリクエストコンテキストに注入して後続へ渡す。
//     以降このリクエスト内で失効の再検査は行わない（リクエスト単位の
//     正当性はバックエンドの401応答が司る）。
//   - 未認証: トークンCookieを破棄し、/loginへ302リダイレクトする。
//     エラーメッセージは表示しない。
//
// 未認証への遷移はトークンの不在・不正・失効のいずれでも同じ経路をとる。
func NewGuardMiddleware(cookies CookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Cookieからトークンを取得
			cookie, err := r.Cookie(TokenCookieName)
			if err != nil || cookie.Value == "" {
				http.Redirect(w, r, loginPath, http.StatusFound)
				return
			}

			// 2. トークンをデコードしてセッションを導出
			session, err := auth.Decode(cookie.Value, time.Now())
			if err != nil {
				slog.Warn("token rejected",
					slog.String("error", err.Error()),
					slog.String("path", r.URL.Path),
				)
				ClearTokenCookie(w, cookies)
				http.Redirect(w, r, loginPath, http.StatusFound)
				return
			}

			// 3. セッションをコンテキストに注入
			ctx := ContextWithSession(r.Context(), session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SetTokenCookie はログイン成功時にトークンCookieを発行する。
// トークン自体が有効期限を内包するため、Cookieはセッションスコープとする。
func SetTokenCookie(w http.ResponseWriter, cookies CookieConfig, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    token,
		Path:     "/",
		Domain:   cookies.Domain,
		HttpOnly: true,
		Secure:   cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearTokenCookie はトークンCookieを破棄する。
// ログアウト・デコード失敗・失効検出のいずれでも同じ破棄処理を使う。
func ClearTokenCookie(w http.ResponseWriter, cookies CookieConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    "",
		Path:     "/",
		Domain:   cookies.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionFromContext はリクエストコンテキストからセッションを取得する。
// ガードミドルウェアを通過したリクエストでのみ有効。
func SessionFromContext(ctx context.Context) (*model.Session, error) {
	session, ok := ctx.Value(sessionContextKey).(*model.Session)
	if !ok || session == nil {
		return nil, fmt.Errorf("session not found in context")
	}
	return session, nil
}

// ContextWithSession はコンテキストにセッションを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, session *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}
