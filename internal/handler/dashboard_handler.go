package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/hitoshi/stockman/internal/api"
	"github.com/hitoshi/stockman/internal/dashboard"
	"github.com/hitoshi/stockman/internal/middleware"
	"github.com/hitoshi/stockman/internal/model"
	"github.com/hitoshi/stockman/internal/security"
)

// DashboardAPIInterface はダッシュボードハンドラーが必要とするバックエンド操作のインターフェース。
type DashboardAPIInterface interface {
	ListCategories(ctx context.Context, token string) ([]model.Category, error)
	ListProducts(ctx context.Context, token string) ([]model.Product, error)
	ListMovements(ctx context.Context, token string, filter api.MovementFilter) ([]model.Movement, error)
}

// DashboardHandler はダッシュボード画面のHTTPハンドラー。
type DashboardHandler struct {
	api       DashboardAPIInterface
	renderer  *Renderer
	sanitizer security.TextSanitizerService
	logger    *slog.Logger
	cookies   middleware.CookieConfig
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(api DashboardAPIInterface, renderer *Renderer, sanitizer security.TextSanitizerService, logger *slog.Logger, cookies middleware.CookieConfig) *DashboardHandler {
	return &DashboardHandler{
		api:       api,
		renderer:  renderer,
		sanitizer: sanitizer,
		logger:    logger,
		cookies:   cookies,
	}
}

// chartBar はグラフの1本の棒。Percentは最大値に対する割合（0-100）。
type chartBar struct {
	Label   string
	Value   int
	Percent int
}

// filterOption はフィルタセレクトの選択肢。
type filterOption struct {
	Value    string
	Label    string
	Selected bool
}

// dashboardViewModel はダッシュボード画面のテンプレートデータ。
type dashboardViewModel struct {
	KindTotals     []chartBar
	CategoryStocks []chartBar
	DateTotals     []chartBar
	KindOptions    []filterOption
	CategoryOpts   []filterOption
	FilterDate     string
}

// Show はダッシュボードを表示する。
// GET /dashboard?kind=&categoryId=&date=
//
// カテゴリー・商品・在庫移動は互いに独立して並行に取得する。
// 一部の取得が失敗しても画面全体は落とさず、該当データを空として描画する。
// ただしいずれかが401を返した場合はログイン画面へ転送する。
func (h *DashboardHandler) Show(w http.ResponseWriter, r *http.Request) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	filterKind := r.URL.Query().Get("kind")
	if filterKind == "" {
		filterKind = model.FilterAll
	}
	filterCategory := r.URL.Query().Get("categoryId")
	if filterCategory == "" {
		filterCategory = model.FilterAll
	}
	filterDate := r.URL.Query().Get("date")

	var (
		wg         sync.WaitGroup
		categories []model.Category
		products   []model.Product
		movements  []model.Movement
		errs       [3]error
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		categories, errs[0] = h.api.ListCategories(r.Context(), session.RawToken)
	}()
	go func() {
		defer wg.Done()
		products, errs[1] = h.api.ListProducts(r.Context(), session.RawToken)
	}()
	go func() {
		defer wg.Done()
		// 日付フィルタはバックエンド側でのみ適用される
		movements, errs[2] = h.api.ListMovements(r.Context(), session.RawToken, api.MovementFilter{
			Kind:       filterKind,
			CategoryID: filterCategory,
			Date:       filterDate,
		})
	}()
	wg.Wait()

	for _, err := range errs {
		if err == nil {
			continue
		}
		if ue, ok := model.AsUpstreamError(err); ok && ue.Status == http.StatusUnauthorized {
			middleware.ClearTokenCookie(w, h.cookies)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		// 失敗したデータは空のまま描画を続ける
		h.logger.Warn("ダッシュボードのデータ取得に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	// 種別フィルタはバックエンドに渡した上で、集計前にも適用する
	filtered := dashboard.ApplyKind(movements, filterKind)

	vm := dashboardViewModel{
		KindTotals:     kindBars(dashboard.ByType(filtered)),
		CategoryStocks: h.stockBars(dashboard.StockByCategory(products, filterCategory)),
		DateTotals:     dateBars(dashboard.ByDate(filtered)),
		KindOptions:    kindFilterOptions(filterKind),
		CategoryOpts:   h.categoryFilterOptions(categories, filterCategory),
		FilterDate:     filterDate,
	}

	h.renderer.Render(w, r, "dashboard.html", "ダッシュボード", vm)
}

// kindBars は種別集計をグラフの棒に変換する。
func kindBars(totals []dashboard.KindTotal) []chartBar {
	bars := make([]chartBar, 0, len(totals))
	max := 0
	for _, t := range totals {
		if t.Total > max {
			max = t.Total
		}
	}
	for _, t := range totals {
		bars = append(bars, chartBar{Label: t.Label, Value: t.Total, Percent: percentOf(t.Total, max)})
	}
	return bars
}

// stockBars は在庫集計をグラフの棒に変換する。
func (h *DashboardHandler) stockBars(stocks []dashboard.CategoryStock) []chartBar {
	bars := make([]chartBar, 0, len(stocks))
	max := 0
	for _, s := range stocks {
		if s.Quantity > max {
			max = s.Quantity
		}
	}
	for _, s := range stocks {
		bars = append(bars, chartBar{
			Label:   h.sanitizer.Sanitize(s.Name),
			Value:   s.Quantity,
			Percent: percentOf(s.Quantity, max),
		})
	}
	return bars
}

// dateBars は日付集計をグラフの棒に変換する。
func dateBars(totals []dashboard.DateTotal) []chartBar {
	bars := make([]chartBar, 0, len(totals))
	max := 0
	for _, t := range totals {
		if t.Total > max {
			max = t.Total
		}
	}
	for _, t := range totals {
		bars = append(bars, chartBar{Label: t.Date, Value: t.Total, Percent: percentOf(t.Total, max)})
	}
	return bars
}

// percentOf はmaxに対するvalueの割合を0-100で返す。
func percentOf(value, max int) int {
	if max <= 0 {
		return 0
	}
	return value * 100 / max
}

// kindFilterOptions は種別フィルタの選択肢を組み立てる。
func kindFilterOptions(selected string) []filterOption {
	options := []filterOption{
		{Value: model.FilterAll, Label: "すべて"},
	}
	for _, kind := range []model.MovementKind{model.KindInflow, model.KindOutflow, model.KindAdjustment} {
		options = append(options, filterOption{Value: string(kind), Label: kindLabels[kind]})
	}
	for i := range options {
		options[i].Selected = options[i].Value == selected
	}
	return options
}

// categoryFilterOptions はカテゴリーフィルタの選択肢を組み立てる。
func (h *DashboardHandler) categoryFilterOptions(categories []model.Category, selected string) []filterOption {
	options := []filterOption{
		{Value: model.FilterAll, Label: "すべて"},
	}
	for _, c := range categories {
		options = append(options, filterOption{
			Value: strconv.FormatInt(c.ID, 10),
			Label: h.sanitizer.Sanitize(c.Name),
		})
	}
	for i := range options {
		options[i].Selected = options[i].Value == selected
	}
	return options
}
