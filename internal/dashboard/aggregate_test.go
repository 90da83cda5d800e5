package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitoshi/stockman/internal/model"
)

func movementOn(kind model.MovementKind, quantity int, date string) model.Movement {
	occurred, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return model.Movement{Kind: kind, Quantity: quantity, OccurredAt: occurred}
}

func TestApplyKind_AllKeepsEverything(t *testing.T) {
	movements := []model.Movement{
		movementOn(model.KindInflow, 3, "2026-01-10"),
		movementOn(model.KindOutflow, 2, "2026-01-11"),
	}

	assert.Len(t, ApplyKind(movements, "all"), 2)
	assert.Len(t, ApplyKind(movements, ""), 2)
}

func TestApplyKind_ExactMatch(t *testing.T) {
	movements := []model.Movement{
		movementOn(model.KindInflow, 3, "2026-01-10"),
		movementOn(model.KindOutflow, 2, "2026-01-11"),
		movementOn(model.KindInflow, 1, "2026-01-12"),
	}

	filtered := ApplyKind(movements, "inflow")
	require.Len(t, filtered, 2)
	for _, m := range filtered {
		assert.Equal(t, model.KindInflow, m.Kind)
	}
}

func TestByType_SumsPerKind(t *testing.T) {
	movements := []model.Movement{
		movementOn(model.KindInflow, 3, "2026-01-10"),
		movementOn(model.KindOutflow, 2, "2026-01-11"),
		movementOn(model.KindInflow, 5, "2026-01-12"),
	}

	totals := ByType(movements)
	require.Len(t, totals, 2)
	assert.Equal(t, KindTotal{Label: "Inflow", Total: 8}, totals[0])
	assert.Equal(t, KindTotal{Label: "Outflow", Total: 2}, totals[1])
}

func TestByType_ZeroMovementKindIsAbsent(t *testing.T) {
	// 調整（adjustment）の移動が1件もなければエントリ自体が現れない。
	// 0件のエントリを出してはいけない
	movements := []model.Movement{
		movementOn(model.KindInflow, 3, "2026-01-10"),
	}

	totals := ByType(movements)
	require.Len(t, totals, 1)
	for _, kt := range totals {
		assert.NotEqual(t, "Adjustment", kt.Label)
		assert.NotZero(t, kt.Total)
	}
}

func TestByType_FirstSeenOrder(t *testing.T) {
	// 出力順は固定の正規順ではなく、入力中で種別が最初に現れた順
	movements := []model.Movement{
		movementOn(model.KindAdjustment, 1, "2026-01-10"),
		movementOn(model.KindOutflow, 2, "2026-01-11"),
		movementOn(model.KindInflow, 3, "2026-01-12"),
		movementOn(model.KindOutflow, 4, "2026-01-13"),
	}

	totals := ByType(movements)
	require.Len(t, totals, 3)
	assert.Equal(t, "Adjustment", totals[0].Label)
	assert.Equal(t, "Outflow", totals[1].Label)
	assert.Equal(t, "Inflow", totals[2].Label)
}

func TestByType_Empty(t *testing.T) {
	assert.Empty(t, ByType(nil))
}

func TestStockByCategory_AllReturnsOneEntryPerProduct(t *testing.T) {
	products := []model.Product{
		{ID: 1, Name: "コーラ", Quantity: 10, CategoryID: 1},
		{ID: 2, Name: "コーラ", Quantity: 4, CategoryID: 1}, // 同名でもまとめない
		{ID: 3, Name: "ポテトチップス", Quantity: 7, CategoryID: 2},
	}

	stocks := StockByCategory(products, "all")
	require.Len(t, stocks, 3)
	assert.Equal(t, CategoryStock{Name: "コーラ", Quantity: 10}, stocks[0])
	assert.Equal(t, CategoryStock{Name: "コーラ", Quantity: 4}, stocks[1])
	assert.Equal(t, CategoryStock{Name: "ポテトチップス", Quantity: 7}, stocks[2])
}

func TestStockByCategory_FiltersByCategory(t *testing.T) {
	products := []model.Product{
		{ID: 1, Name: "コーラ", Quantity: 10, CategoryID: 1},
		{ID: 3, Name: "ポテトチップス", Quantity: 7, CategoryID: 2},
	}

	stocks := StockByCategory(products, "2")
	require.Len(t, stocks, 1)
	assert.Equal(t, "ポテトチップス", stocks[0].Name)
}

func TestByDate_SumsPerDayMonthBucket(t *testing.T) {
	// 年はバケットキーから落ちるため、別の年の同じ日/月は同じバケットに入る
	movements := []model.Movement{
		movementOn(model.KindInflow, 3, "2025-03-15"),
		movementOn(model.KindInflow, 2, "2026-03-15"),
		movementOn(model.KindOutflow, 1, "2026-03-16"),
	}

	totals := ByDate(movements)
	require.Len(t, totals, 2)
	assert.Equal(t, DateTotal{Date: "15/03", Total: 5}, totals[0])
	assert.Equal(t, DateTotal{Date: "16/03", Total: 1}, totals[1])
}

func TestByDate_MonthFirstSortOrder(t *testing.T) {
	// 並び順は月→日の比較で決まり、年は考慮されない。
	// "10/01"（1月10日）は"05/12"（12月5日）より前に並ぶ。
	// 12月のバケットが翌年1月より後ろに来る現行挙動を固定するテスト
	movements := []model.Movement{
		movementOn(model.KindOutflow, 2, "2025-12-05"),
		movementOn(model.KindInflow, 3, "2026-01-10"),
	}

	totals := ByDate(movements)
	require.Len(t, totals, 2)
	assert.Equal(t, "10/01", totals[0].Date)
	assert.Equal(t, "05/12", totals[1].Date)
}

func TestByDate_SameMonthSortsByDay(t *testing.T) {
	movements := []model.Movement{
		movementOn(model.KindInflow, 1, "2026-05-20"),
		movementOn(model.KindInflow, 1, "2026-05-03"),
		movementOn(model.KindInflow, 1, "2026-05-11"),
	}

	totals := ByDate(movements)
	require.Len(t, totals, 3)
	assert.Equal(t, "03/05", totals[0].Date)
	assert.Equal(t, "11/05", totals[1].Date)
	assert.Equal(t, "20/05", totals[2].Date)
}

func TestByDate_Empty(t *testing.T) {
	assert.Empty(t, ByDate(nil))
}
