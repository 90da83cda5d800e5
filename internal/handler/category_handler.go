package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/stockman/internal/flash"
	"github.com/hitoshi/stockman/internal/middleware"
	"github.com/hitoshi/stockman/internal/model"
	"github.com/hitoshi/stockman/internal/security"
)

// CategoryAPIInterface はカテゴリーハンドラーが必要とするバックエンド操作のインターフェース。
type CategoryAPIInterface interface {
	ListCategories(ctx context.Context, token string) ([]model.Category, error)
	GetCategory(ctx context.Context, token string, id int64) (*model.Category, error)
	CreateCategory(ctx context.Context, token, name, description string) error
	UpdateCategory(ctx context.Context, token string, id int64, name, description string) error
	DeleteCategory(ctx context.Context, token string, id int64) error
}

// CategoryHandler はカテゴリーCRUD画面のHTTPハンドラー。
type CategoryHandler struct {
	api       CategoryAPIInterface
	renderer  *Renderer
	sanitizer security.TextSanitizerService
	cookies   middleware.CookieConfig
}

// NewCategoryHandler はCategoryHandlerを生成する。
func NewCategoryHandler(api CategoryAPIInterface, renderer *Renderer, sanitizer security.TextSanitizerService, cookies middleware.CookieConfig) *CategoryHandler {
	return &CategoryHandler{
		api:       api,
		renderer:  renderer,
		sanitizer: sanitizer,
		cookies:   cookies,
	}
}

// categoryView はカテゴリー1件の表示用データ。
type categoryView struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   string
}

// categoriesViewModel はカテゴリー一覧画面のテンプレートデータ。
type categoriesViewModel struct {
	Categories []categoryView
}

// categoryFormViewModel はカテゴリー作成・編集画面のテンプレートデータ。
type categoryFormViewModel struct {
	ID          int64
	Name        string
	Description string
	IsEdit      bool
}

// categoryDeleteViewModel は削除確認画面のテンプレートデータ。
type categoryDeleteViewModel struct {
	Category categoryView
}

// toCategoryView はバックエンドのカテゴリーを表示用に変換する。
// バックエンド由来のテキストはマークアップを除去してから使う。
func (h *CategoryHandler) toCategoryView(c model.Category) categoryView {
	view := categoryView{
		ID:          c.ID,
		Name:        h.sanitizer.Sanitize(c.Name),
		Description: h.sanitizer.Sanitize(c.Description),
	}
	if !c.CreatedAt.IsZero() {
		view.CreatedAt = c.CreatedAt.Format("2006/01/02")
	}
	return view
}

// List はカテゴリー一覧を表示する。
// GET /categories
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	categories, err := h.api.ListCategories(r.Context(), session.RawToken)
	if err != nil {
		reduceUpstreamError(w, r, err, "カテゴリー一覧の取得に失敗しました", "/dashboard", h.cookies)
		return
	}

	views := make([]categoryView, 0, len(categories))
	for _, c := range categories {
		views = append(views, h.toCategoryView(c))
	}

	h.renderer.Render(w, r, "categories.html", "カテゴリー", categoriesViewModel{Categories: views})
}

// NewForm はカテゴリー作成画面を表示する。
// GET /categories/new
func (h *CategoryHandler) NewForm(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, r, "category_form.html", "カテゴリー作成", categoryFormViewModel{})
}

// Create はカテゴリー作成フォームの送信を処理する。
// POST /categories
// 名前が空の場合はバックエンドを呼ばずにエラー通知を出す。
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	name := strings.TrimSpace(r.PostFormValue("name"))
	description := strings.TrimSpace(r.PostFormValue("description"))

	if name == "" {
		flash.Error(w, "カテゴリー名を入力してください")
		http.Redirect(w, r, "/categories/new", http.StatusFound)
		return
	}

	if err := h.api.CreateCategory(r.Context(), session.RawToken, name, description); err != nil {
		reduceUpstreamError(w, r, err, "カテゴリーの作成に失敗しました", "/categories/new", h.cookies)
		return
	}

	flash.Success(w, "カテゴリーを作成しました")
	http.Redirect(w, r, "/categories", http.StatusFound)
}

// EditForm はカテゴリー編集画面を表示する。
// GET /categories/{categoryID}/edit
func (h *CategoryHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	id, err := parseIDParam(r, "categoryID")
	if err != nil {
		http.NotFound(w, r)
		return
	}

	category, err := h.api.GetCategory(r.Context(), session.RawToken, id)
	if err != nil {
		reduceUpstreamError(w, r, err, "カテゴリーが見つかりません", "/categories", h.cookies)
		return
	}

	view := h.toCategoryView(*category)
	h.renderer.Render(w, r, "category_form.html", "カテゴリー編集", categoryFormViewModel{
		ID:          view.ID,
		Name:        view.Name,
		Description: view.Description,
		IsEdit:      true,
	})
}

// Update はカテゴリー編集フォームの送信を処理する。
// POST /categories/{categoryID}
func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	id, err := parseIDParam(r, "categoryID")
	if err != nil {
		http.NotFound(w, r)
		return
	}

	name := strings.TrimSpace(r.PostFormValue("name"))
	description := strings.TrimSpace(r.PostFormValue("description"))

	if name == "" {
		flash.Error(w, "カテゴリー名を入力してください")
		http.Redirect(w, r, fmt.Sprintf("/categories/%d/edit", id), http.StatusFound)
		return
	}

	if err := h.api.UpdateCategory(r.Context(), session.RawToken, id, name, description); err != nil {
		reduceUpstreamError(w, r, err, "カテゴリーの更新に失敗しました", fmt.Sprintf("/categories/%d/edit", id), h.cookies)
		return
	}

	flash.Success(w, "カテゴリーを更新しました")
	http.Redirect(w, r, "/categories", http.StatusFound)
}

// DeleteConfirm は削除確認画面を表示する。データの変更は行わない。
// GET /categories/{categoryID}/delete
func (h *CategoryHandler) DeleteConfirm(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	id, err := parseIDParam(r, "categoryID")
	if err != nil {
		http.NotFound(w, r)
		return
	}

	category, err := h.api.GetCategory(r.Context(), session.RawToken, id)
	if err != nil {
		reduceUpstreamError(w, r, err, "カテゴリーが見つかりません", "/categories", h.cookies)
		return
	}

	h.renderer.Render(w, r, "category_delete.html", "カテゴリー削除", categoryDeleteViewModel{
		Category: h.toCategoryView(*category),
	})
}

// Delete は削除確認画面からの送信を処理する。
// POST /categories/{categoryID}/delete
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	id, err := parseIDParam(r, "categoryID")
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if err := h.api.DeleteCategory(r.Context(), session.RawToken, id); err != nil {
		reduceUpstreamError(w, r, err, "カテゴリーの削除に失敗しました", "/categories", h.cookies)
		return
	}

	flash.Success(w, "カテゴリーを削除しました")
	http.Redirect(w, r, "/categories", http.StatusFound)
}

// parseIDParam はURLパスパラメータを数値IDとして取り出す。
func parseIDParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}
