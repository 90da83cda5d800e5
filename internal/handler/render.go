// Package handler は在庫管理画面のHTTPハンドラーとテンプレート描画を提供する。
package handler

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/hitoshi/stockman/internal/flash"
	"github.com/hitoshi/stockman/internal/middleware"
	"github.com/hitoshi/stockman/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// pages は描画対象のページテンプレート一覧。
// 各ページはlayout.htmlと組で事前にパースされる。
var pages = []string{
	"login.html",
	"register.html",
	"dashboard.html",
	"categories.html",
	"category_form.html",
	"category_delete.html",
	"products.html",
	"product_form.html",
	"product_delete.html",
	"movement_form.html",
}

// Renderer は事前パース済みテンプレートを保持し、ページを描画する。
type Renderer struct {
	templates map[string]*template.Template
	logger    *slog.Logger
}

// NewRenderer は全ページテンプレートをパースしたRendererを生成する。
func NewRenderer(logger *slog.Logger) (*Renderer, error) {
	templates := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("テンプレート %s のパースに失敗しました: %w", page, err)
		}
		templates[page] = tmpl
	}
	return &Renderer{templates: templates, logger: logger}, nil
}

// pageData は全ページ共通のテンプレートデータ。
type pageData struct {
	Title             string
	Session           *model.Session
	Flash             *flash.Flash
	AutoDismissMillis int
	CSRFToken         string
	Data              any
}

// Render はページを描画する。未読の通知Cookieがあれば取り込んで消費する。
func (rn *Renderer) Render(w http.ResponseWriter, r *http.Request, page, title string, data any) {
	f, _ := flash.Take(w, r)
	rn.render(w, r, page, title, data, f)
}

// RenderWithFlash は通知を明示指定してページを描画する。
// 同一リクエスト内で発生したエラーをリダイレクトせずに見せる場合に使う。
func (rn *Renderer) RenderWithFlash(w http.ResponseWriter, r *http.Request, page, title string, data any, f *flash.Flash) {
	rn.render(w, r, page, title, data, f)
}

func (rn *Renderer) render(w http.ResponseWriter, r *http.Request, page, title string, data any, f *flash.Flash) {
	tmpl, ok := rn.templates[page]
	if !ok {
		rn.logger.Error("未登録のページテンプレートです", slog.String("page", page))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	session, _ := middleware.SessionFromContext(r.Context())

	pd := pageData{
		Title:             title,
		Session:           session,
		Flash:             f,
		AutoDismissMillis: flash.AutoDismissMillis,
		CSRFToken:         middleware.CSRFTokenFromContext(r.Context()),
		Data:              data,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "layout", pd); err != nil {
		rn.logger.Error("テンプレートの描画に失敗しました",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
	}
}

// reduceUpstreamError はバックエンド呼び出しの失敗を通知とリダイレクトに変換する。
// 分類:
//   - 401 → トークンを消去してログイン画面へ（通知は出さない）
//   - 接続失敗 → 汎用の接続エラー通知
//   - その他の非2xx → バックエンドのメッセージを通知（パース不能時はfallback）
//
// backToはエラー通知後に戻す画面のパス。
func reduceUpstreamError(w http.ResponseWriter, r *http.Request, err error, fallback, backTo string, cookies middleware.CookieConfig) {
	if ue, ok := model.AsUpstreamError(err); ok {
		if ue.Status == http.StatusUnauthorized {
			middleware.ClearTokenCookie(w, cookies)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		flash.Error(w, ue.MessageOr(fallback))
		http.Redirect(w, r, backTo, http.StatusFound)
		return
	}

	if errors.Is(err, model.ErrUpstreamUnreachable) {
		flash.Error(w, "サーバーに接続できません。時間をおいて再度お試しください。")
		http.Redirect(w, r, backTo, http.StatusFound)
		return
	}

	flash.Error(w, fallback)
	http.Redirect(w, r, backTo, http.StatusFound)
}
