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

// MovementAPIInterface は在庫移動ハンドラーが必要とするバックエンド操作のインターフェース。
// 在庫移動は作成のみで、編集・削除の操作は存在しない。
type MovementAPIInterface interface {
	GetProduct(ctx context.Context, token string, id int64) (*model.Product, error)
	CreateMovement(ctx context.Context, token string, input api.MovementInput) error
}

// MovementHandler は在庫移動の記録画面のHTTPハンドラー。
type MovementHandler struct {
	api       MovementAPIInterface
	renderer  *Renderer
	sanitizer security.TextSanitizerService
	cookies   middleware.CookieConfig
}

// NewMovementHandler はMovementHandlerを生成する。
func NewMovementHandler(api MovementAPIInterface, renderer *Renderer, sanitizer security.TextSanitizerService, cookies middleware.CookieConfig) *MovementHandler {
	return &MovementHandler{
		api:       api,
		renderer:  renderer,
		sanitizer: sanitizer,
		cookies:   cookies,
	}
}

// movementKindOption は種別セレクトの選択肢。
type movementKindOption struct {
	Value    string
	Label    string
	Selected bool
}

// movementFormViewModel は在庫移動記録画面のテンプレートデータ。
type movementFormViewModel struct {
	ProductID   int64
	ProductName string
	CategoryID  int64
	Quantity    int
	Kinds       []movementKindOption
}

// kindLabels は種別の表示名。
var kindLabels = map[model.MovementKind]string{
	model.KindInflow:     "入庫",
	model.KindOutflow:    "出庫",
	model.KindAdjustment: "棚卸調整",
}

// NewForm は在庫移動の記録画面を表示する。
// GET /products/{productID}/movements/new?kind=...
func (h *MovementHandler) NewForm(w http.ResponseWriter, r *http.Request) {
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

	preselected := r.URL.Query().Get("kind")
	kinds := make([]movementKindOption, 0, len(kindLabels))
	for _, kind := range []model.MovementKind{model.KindInflow, model.KindOutflow, model.KindAdjustment} {
		kinds = append(kinds, movementKindOption{
			Value:    string(kind),
			Label:    kindLabels[kind],
			Selected: string(kind) == preselected,
		})
	}

	h.renderer.Render(w, r, "movement_form.html", "在庫移動の記録", movementFormViewModel{
		ProductID:   product.ID,
		ProductName: h.sanitizer.Sanitize(product.Name),
		CategoryID:  product.CategoryID,
		Quantity:    product.Quantity,
		Kinds:       kinds,
	})
}

// Create は在庫移動フォームの送信を処理する。
// POST /movements
// 在庫数の増減はバックエンドの責務であり、ここでは一切計算しない。
func (h *MovementHandler) Create(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	productID, err := strconv.ParseInt(r.PostFormValue("productId"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	categoryID, _ := strconv.ParseInt(r.PostFormValue("categoryId"), 10, 64)
	backTo := fmt.Sprintf("/products/%d/movements/new", productID)
	listPath := "/dashboard"
	if categoryID > 0 {
		listPath = fmt.Sprintf("/categories/%d/products", categoryID)
	}

	kind := model.MovementKind(r.PostFormValue("kind"))
	if _, ok := kindLabels[kind]; !ok {
		flash.Error(w, "移動種別を選択してください")
		http.Redirect(w, r, backTo, http.StatusFound)
		return
	}

	quantity, err := strconv.Atoi(r.PostFormValue("quantity"))
	if err != nil || quantity <= 0 {
		flash.Error(w, "数量には1以上の整数を入力してください")
		http.Redirect(w, r, backTo, http.StatusFound)
		return
	}

	input := api.MovementInput{
		ProductID: productID,
		Kind:      kind,
		Quantity:  quantity,
		Note:      strings.TrimSpace(r.PostFormValue("note")),
	}

	if err := h.api.CreateMovement(r.Context(), session.RawToken, input); err != nil {
		reduceUpstreamError(w, r, err, "在庫移動の記録に失敗しました", backTo, h.cookies)
		return
	}

	flash.Success(w, "在庫移動を記録しました")
	http.Redirect(w, r, listPath, http.StatusFound)
}
