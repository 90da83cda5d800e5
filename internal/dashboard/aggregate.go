// Package dashboard はダッシュボードのグラフ描画用の集計を提供する。
//
// すべての関数は入力スライスに対する純粋な変換であり、副作用を持たない。
// バックエンドから取得した在庫移動・商品の一覧をそのまま受け取り、
// グラフに渡せる形へ畳み込む。
package dashboard

import (
	"sort"
	"strconv"
	"strings"

	"github.com/hitoshi/stockman/internal/model"
)

// KindTotal は種別ごとの数量合計。
type KindTotal struct {
	Label string
	Total int
}

// CategoryStock は商品ごとの在庫数。商品1件が1エントリになる。
type CategoryStock struct {
	Name     string
	Quantity int
}

// DateTotal は日付バケットごとの数量合計。Dateは"日/月"形式で年を持たない。
type DateTotal struct {
	Date  string
	Total int
}

// ApplyKind は種別フィルタを適用した在庫移動のスライスを返す。
// kindが"all"または空の場合は絞り込まない。
func ApplyKind(movements []model.Movement, kind string) []model.Movement {
	if kind == "" || kind == model.FilterAll {
		return movements
	}

	filtered := make([]model.Movement, 0, len(movements))
	for _, m := range movements {
		if string(m.Kind) == kind {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

// ByType は在庫移動を種別ごとに畳み込み、数量を合計する。
// 出力の並びは入力中で種別が最初に現れた順。
// 移動が1件もない種別はエントリ自体が現れない（0埋めしない）。
func ByType(movements []model.Movement) []KindTotal {
	totals := make([]KindTotal, 0, 3)
	index := make(map[string]int)

	for _, m := range movements {
		label := capitalize(string(m.Kind))
		if i, ok := index[label]; ok {
			totals[i].Total += m.Quantity
			continue
		}
		index[label] = len(totals)
		totals = append(totals, KindTotal{Label: label, Total: m.Quantity})
	}

	return totals
}

// StockByCategory は商品を在庫グラフ用のエントリに写す。
// categoryIDが"all"の場合は全商品を残し、それ以外は一致する商品だけを残す。
// 入力の並びを保ち、同名の商品があってもまとめない。
func StockByCategory(products []model.Product, categoryID string) []CategoryStock {
	stocks := make([]CategoryStock, 0, len(products))
	for _, p := range products {
		if categoryID != model.FilterAll && categoryID != "" &&
			strconv.FormatInt(p.CategoryID, 10) != categoryID {
			continue
		}
		stocks = append(stocks, CategoryStock{Name: p.Name, Quantity: p.Quantity})
	}
	return stocks
}

// ByDate は在庫移動を発生日（日/月、年は落ちる）でバケットし、数量を合計する。
// 並び順は月、次に日の昇順。年をまたぐ場合でも月だけで比較するため、
// 12月のバケットは翌年1月のバケットより後ろに並ぶ。
func ByDate(movements []model.Movement) []DateTotal {
	totals := make([]DateTotal, 0)
	index := make(map[string]int)

	for _, m := range movements {
		key := m.OccurredAt.Format("02/01")
		if i, ok := index[key]; ok {
			totals[i].Total += m.Quantity
			continue
		}
		index[key] = len(totals)
		totals = append(totals, DateTotal{Date: key, Total: m.Quantity})
	}

	sort.SliceStable(totals, func(i, j int) bool {
		di, mi := splitDayMonth(totals[i].Date)
		dj, mj := splitDayMonth(totals[j].Date)
		if mi != mj {
			return mi < mj
		}
		return di < dj
	})

	return totals
}

// splitDayMonth は"日/月"形式のキーを数値の組に分解する。
func splitDayMonth(key string) (day, month int) {
	parts := strings.SplitN(key, "/", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	day, _ = strconv.Atoi(parts[0])
	month, _ = strconv.Atoi(parts[1])
	return day, month
}

// capitalize は先頭1文字を大文字にする。
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
