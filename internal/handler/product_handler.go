package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/hitoshi/stockman/internal/api"
	"github.com/hitoshi/stockman/internal/flash"
	"github.com/hitoshi/stockman/internal/middleware"
	"github.com/hitoshi/stockman/internal/model"
	"github.com/hitoshi/stockman/internal/security"
)

// ProductAPIInterface は商品ハンドラーが必要とするバックエンド操作のインターフェース。
type ProductAPIInterface interface {
	GetCategory(ctx context.Context, token string, id int64) (*model.Category, error)
	ListProducts(ctx context.Context, token string) ([]model.Product, error)
	GetProduct(ctx context.Context, token string, id int64) (*model.Product, error)
	CreateProduct(ctx context.Context, token string, input api.ProductInput) error
	UpdateProduct(ctx context.Context, token string, id int64, input api.ProductInput) error
	DeleteProduct(ctx context.Context, token string, id int64) error
}

// ProductHandler はカテゴリー配下の商品CRUD画面のHTTPハンドラー。
type ProductHandler struct {
	api       ProductAPIInterface
	renderer  *Renderer
	sanitizer security.TextSanitizerService
	cookies   middleware.CookieConfig
}

// NewProductHandler はProductHandlerを生成する。
func NewProductHandler(api ProductAPIInterface, renderer *Renderer, sanitizer security.TextSanitizerService, cookies middleware.CookieConfig) *ProductHandler {
	return &ProductHandler{
		api:       api,
		renderer:  renderer,
		sanitizer: sanitizer,
		cookies:   cookies,
	}
}

// productView は商品1件の表示用データ。
type productView struct {
	ID              int64
	Name            string
	Description     string
	Price           string
	Quantity        int
	MinimumQuantity int
	CategoryID      int64
	LowStock        bool
}

// productsViewModel は商品一覧画面のテンプレートデータ。
type productsViewModel struct {
	Category   categoryView
	Products   []productView
	FilterName string
	FilterMin  string
	FilterMax  string
}

// productFormViewModel は商品作成・編集画面のテンプレートデータ。
type productFormViewModel struct {
	ID              int64
	CategoryID      int64
	CategoryName    string
	Name            string
	Description     string
	Price           string
	Quantity        string
	MinimumQuantity string
	IsEdit          bool
}

// productDeleteViewModel は商品削除確認画面のテンプレートデータ。
type productDeleteViewModel struct {
	Product productView
}

// toProductView はバックエンドの商品を表示用に変換する。
func (h *ProductHandler) toProductView(p model.Product) productView {
	return productView{
		ID:              p.ID,
		Name:            h.sanitizer.Sanitize(p.Name),
		Description:     h.sanitizer.Sanitize(p.Description),
		Price:           strconv.FormatFloat(p.Price, 'f', 2, 64),
		Quantity:        p.Quantity,
		MinimumQuantity: p.MinimumQuantity,
		CategoryID:      p.CategoryID,
		LowStock:        p.Quantity < p.MinimumQuantity,
	}
}

// List はカテゴリーに属する商品の一覧を表示する。
// GET /categories/{categoryID}/products?name=&min=&max=
// バックエンドは全商品を返すため、カテゴリー・名前・価格の絞り込みは
// このハンドラー内で行う。
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	categoryID, err := parseIDParam(r, "categoryID")
	if err != nil {
		http.NotFound(w, r)
		return
	}

	category, err := h.api.GetCategory(r.Context(), session.RawToken, categoryID)
	if err != nil {
		reduceUpstreamError(w, r, err, "カテゴリーが見つかりません", "/categories", h.cookies)
		return
	}

	products, err := h.api.ListProducts(r.Context(), session.RawToken)
	if err != nil {
		reduceUpstreamError(w, r, err, "商品一覧の取得に失敗しました", "/categories", h.cookies)
		return
	}

	filterName := strings.TrimSpace(r.URL.Query().Get("name"))
	filterMin := strings.TrimSpace(r.URL.Query().Get("min"))
	filterMax := strings.TrimSpace(r.URL.Query().Get("max"))

	views := make([]productView, 0, len(products))
	for _, p := range products {
		if p.CategoryID != categoryID {
			continue
		}
		if !matchProductFilters(p, filterName, filterMin, filterMax) {
			continue
		}
		views = append(views, h.toProductView(p))
	}

	h.renderer.Render(w, r, "products.html", "商品", productsViewModel{
		Category:   categoryView{ID: category.ID, Name: h.sanitizer.Sanitize(category.Name)},
		Products:   views,
		FilterName: filterName,
		FilterMin:  filterMin,
		FilterMax:  filterMax,
	})
}

// matchProductFilters は商品が名前・価格フィルタに合致するかを判定する。
// 名前は部分一致（大文字小文字を区別しない）。
// 数値として解釈できない価格フィルタは無視する。
func matchProductFilters(p model.Product, name, min, max string) bool {
	if name != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(name)) {
		return false
	}
	if min != "" {
		if v, err := strconv.ParseFloat(min, 64); err == nil && p.Price < v {
			return false
		}
	}
	if max != "" {
		if v, err := strconv.ParseFloat(max, 64); err == nil && p.Price > v {
			return false
		}
	}
	return true
}

// NewForm は商品作成画面を表示する。
// GET /categories/{categoryID}/products/new
func (h *ProductHandler) NewForm(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	categoryID, err := parseIDParam(r, "categoryID")
	if err != nil {
		http.NotFound(w, r)
		return
	}

	category, err := h.api.GetCategory(r.Context(), session.RawToken, categoryID)
	if err != nil {
		reduceUpstreamError(w, r, err, "カテゴリーが見つかりません", "/categories", h.cookies)
		return
	}

	h.renderer.Render(w, r, "product_form.html", "商品登録", productFormViewModel{
		CategoryID:   category.ID,
		CategoryName: h.sanitizer.Sanitize(category.Name),
	})
}

// Create は商品作成フォームの送信を処理する。
// POST /categories/{categoryID}/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	categoryID, err := parseIDParam(r, "categoryID")
	if err != nil {
		http.NotFound(w, r)
		return
	}

	backTo := fmt.Sprintf("/categories/%d/products/new", categoryID)
	listPath := fmt.Sprintf("/categories/%d/products", categoryID)

	input, formErr := parseProductForm(r, categoryID)
	if formErr != "" {
		flash.Error(w, formErr)
		http.Redirect(w, r, backTo, http.StatusFound)
		return
	}

	if err := h.api.CreateProduct(r.Context(), session.RawToken, input); err != nil {
		reduceUpstreamError(w, r, err, "商品の登録に失敗しました", backTo, h.cookies)
		return
	}

	flash.Success(w, "商品を登録しました")
	http.Redirect(w, r, listPath, http.StatusFound)
}

// EditForm は商品編集画面を表示する。
// GET /products/{productID}/edit
func (h *ProductHandler) EditForm(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	productID, err := parseIDParam(r, "productID")
	if err != nil {
		http.NotFound(w, r)
		return
	}

	product, err := h.api.GetProduct(r.Context(), session.RawToken, productID)
	if err != nil {
		reduceUpstreamError(w, r, err, "商品が見つかりません", "/categories", h.cookies)
		return
	}

	view := h.toProductView(*product)
	h.renderer.Render(w, r, "product_form.html", "商品編集", productFormViewModel{
		ID:              view.ID,
		CategoryID:      view.CategoryID,
		Name:            view.Name,
		Description:     view.Description,
		Price:           view.Price,
		Quantity:        strconv.Itoa(view.Quantity),
		MinimumQuantity: strconv.Itoa(view.MinimumQuantity),
		IsEdit:          true,
	})
}

// Update は商品編集フォームの送信を処理する。
// POST /products/{productID}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	productID, err := parseIDParam(r, "productID")
	if err != nil {
		http.NotFound(w, r)
		return
	}

	categoryID, _ := strconv.ParseInt(r.PostFormValue("categoryId"), 10, 64)
	backTo := fmt.Sprintf("/products/%d/edit", productID)
	listPath := fmt.Sprintf("/categories/%d/products", categoryID)

	input, formErr := parseProductForm(r, categoryID)
	if formErr != "" {
		flash.Error(w, formErr)
		http.Redirect(w, r, backTo, http.StatusFound)
		return
	}

	if err := h.api.UpdateProduct(r.Context(), session.RawToken, productID, input); err != nil {
		reduceUpstreamError(w, r, err, "商品の更新に失敗しました", backTo, h.cookies)
		return
	}

	flash.Success(w, "商品を更新しました")
	http.Redirect(w, r, listPath, http.StatusFound)
}

// DeleteConfirm は商品の削除確認画面を表示する。データの変更は行わない。
// GET /products/{productID}/delete
func (h *ProductHandler) DeleteConfirm(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	productID, err := parseIDParam(r, "productID")
	if err != nil {
		http.NotFound(w, r)
		return
	}

	product, err := h.api.GetProduct(r.Context(), session.RawToken, productID)
	if err != nil {
		reduceUpstreamError(w, r, err, "商品が見つかりません", "/categories", h.cookies)
		return
	}

	h.renderer.Render(w, r, "product_delete.html", "商品削除", productDeleteViewModel{
		Product: h.toProductView(*product),
	})
}

// Delete は削除確認画面からの送信を処理する。
// POST /products/{productID}/delete
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	productID, err := parseIDParam(r, "productID")
	if err != nil {
		http.NotFound(w, r)
		return
	}

	categoryID, _ := strconv.ParseInt(r.PostFormValue("categoryId"), 10, 64)
	listPath := "/categories"
	if categoryID > 0 {
		listPath = fmt.Sprintf("/categories/%d/products", categoryID)
	}

	if err := h.api.DeleteProduct(r.Context(), session.RawToken, productID); err != nil {
		reduceUpstreamError(w, r, err, "商品の削除に失敗しました", listPath, h.cookies)
		return
	}

	flash.Success(w, "商品を削除しました")
	http.Redirect(w, r, listPath, http.StatusFound)
}

// parseProductForm は商品フォームの入力を検証して組み立てる。
// 不正な場合は空でないエラーメッセージを返す。
func parseProductForm(r *http.Request, categoryID int64) (api.ProductInput, string) {
	name := strings.TrimSpace(r.PostFormValue("name"))
	description := strings.TrimSpace(r.PostFormValue("description"))

	if name == "" {
		return api.ProductInput{}, "商品名を入力してください"
	}

	price, err := strconv.ParseFloat(r.PostFormValue("price"), 64)
	if err != nil || price < 0 {
		return api.ProductInput{}, "価格には0以上の数値を入力してください"
	}

	quantity, err := strconv.Atoi(r.PostFormValue("quantity"))
	if err != nil || quantity < 0 {
		return api.ProductInput{}, "在庫数には0以上の整数を入力してください"
	}

	minimumQuantity, err := strconv.Atoi(r.PostFormValue("minimumQuantity"))
	if err != nil || minimumQuantity < 0 {
		return api.ProductInput{}, "最低在庫数には0以上の整数を入力してください"
	}

	return api.ProductInput{
		Name:            name,
		Description:     description,
		Price:           price,
		Quantity:        quantity,
		CategoryID:      categoryID,
		MinimumQuantity: minimumQuantity,
	}, ""
}
