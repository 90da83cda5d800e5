package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/stockman/internal/auth"
	"github.com/hitoshi/stockman/internal/flash"
	"github.com/hitoshi/stockman/internal/metrics"
	"github.com/hitoshi/stockman/internal/middleware"
	"github.com/hitoshi/stockman/internal/model"
)

// AuthAPIInterface は認証ハンドラーが必要とするバックエンド操作のインターフェース。
type AuthAPIInterface interface {
	// Login は認証を行い、成功時にベアラートークンを返す。
	Login(ctx context.Context, email, password string) (string, error)
	// Register は新規ユーザーを登録する。
	Register(ctx context.Context, name, email, password string) error
}

// AuthHandler はログイン・登録・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	api       AuthAPIInterface
	renderer  *Renderer
	collector metrics.MetricsCollector
	cookies   middleware.CookieConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(api AuthAPIInterface, renderer *Renderer, collector metrics.MetricsCollector, cookies middleware.CookieConfig) *AuthHandler {
	return &AuthHandler{
		api:       api,
		renderer:  renderer,
		collector: collector,
		cookies:   cookies,
	}
}

// loginViewModel はログイン画面のテンプレートデータ。
type loginViewModel struct {
	Email string
	Error string
}

// registerViewModel は登録画面のテンプレートデータ。
type registerViewModel struct {
	Name  string
	Email string
	Error string
}

// LoginForm はログイン画面を表示する。
// GET /login
// 有効なトークンCookieを既に持っている場合はダッシュボードへ転送する。
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(middleware.TokenCookieName); err == nil && cookie.Value != "" {
		if _, err := auth.Decode(cookie.Value, time.Now()); err == nil {
			http.Redirect(w, r, "/dashboard", http.StatusFound)
			return
		}
	}
	h.renderer.Render(w, r, "login.html", "ログイン", loginViewModel{})
}

// Login はログインフォームの送信を処理する。
// POST /login
// 失敗時はエラーメッセージをフォーム内に表示したまま再描画する。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.Render(w, r, "login.html", "ログイン", loginViewModel{Error: "フォームの内容が不正です"})
		return
	}

	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")

	if email == "" || password == "" {
		h.renderer.Render(w, r, "login.html", "ログイン", loginViewModel{
			Email: email,
			Error: "メールアドレスとパスワードを入力してください",
		})
		return
	}

	token, err := h.api.Login(r.Context(), email, password)
	if err != nil {
		h.collector.RecordLoginFailure()
		h.renderer.Render(w, r, "login.html", "ログイン", loginViewModel{
			Email: email,
			Error: authErrorMessage(err),
		})
		return
	}

	// トークンの中身が空や不正なら認証済みとは扱わない
	if _, err := auth.Decode(token, time.Now()); err != nil {
		h.collector.RecordLoginFailure()
		h.renderer.Render(w, r, "login.html", "ログイン", loginViewModel{
			Email: email,
			Error: "認証に失敗しました。もう一度お試しください。",
		})
		return
	}

	middleware.SetTokenCookie(w, h.cookies, token)
	http.Redirect(w, r, "/dashboard", http.StatusFound)
}

// RegisterForm は登録画面を表示する。
// GET /register
func (h *AuthHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, "register.html", "ユーザー登録", registerViewModel{})
}

// Register は登録フォームの送信を処理する。
// POST /register
// 成功時は通知を発行してログイン画面へ転送する。
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.Render(w, r, "register.html", "ユーザー登録", registerViewModel{Error: "フォームの内容が不正です"})
		return
	}

	name := strings.TrimSpace(r.PostFormValue("name"))
	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")

	if name == "" || email == "" || password == "" {
		h.renderer.Render(w, r, "register.html", "ユーザー登録", registerViewModel{
			Name:  name,
			Email: email,
			Error: "すべての項目を入力してください",
		})
		return
	}

	if err := h.api.Register(r.Context(), name, email, password); err != nil {
		h.renderer.Render(w, r, "register.html", "ユーザー登録", registerViewModel{
			Name:  name,
			Email: email,
			Error: authErrorMessage(err),
		})
		return
	}

	flash.Success(w, "登録が完了しました。ログインしてください。")
	http.Redirect(w, r, "/login", http.StatusFound)
}

// Logout はログアウトを処理する。
// POST /logout
// トークンCookieを消去してログイン画面へ転送する。
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	middleware.ClearTokenCookie(w, h.cookies)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// authErrorMessage は認証系エラーを画面内表示用の文言に変換する。
// バックエンドのメッセージはそのまま表示し、接続失敗は汎用文言に落とす。
func authErrorMessage(err error) string {
	if ue, ok := model.AsUpstreamError(err); ok {
		return ue.MessageOr("認証に失敗しました。もう一度お試しください。")
	}
	return "サーバーに接続できません。時間をおいて再度お試しください。"
}
