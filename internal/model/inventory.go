package model

import "time"

// MovementKind は在庫移動の種別を表す。
type MovementKind string

const (
	// KindInflow は入庫を示す。
	KindInflow MovementKind = "inflow"
	// KindOutflow は出庫を示す。
	KindOutflow MovementKind = "outflow"
	// KindAdjustment は棚卸調整を示す。
	KindAdjustment MovementKind = "adjustment"
)

// FilterAll はダッシュボードフィルタで「絞り込みなし」を示す値。
// 種別フィルタとカテゴリフィルタで共通に使用する。
const FilterAll = "all"

// Category は商品カテゴリを表す。
// ProductからCategoryIDで参照されるが、参照整合性はバックエンドが管理する。
type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Product は在庫管理対象の商品を表す。
type Product struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	Price           float64 `json:"price"`
	Quantity        int     `json:"quantity"`
	MinimumQuantity int     `json:"minimumQuantity"`
	CategoryID      int64   `json:"categoryId"`
}

// Movement は在庫移動の記録を表す。
// クライアントから見て追記専用であり、編集・削除は行わない。
type Movement struct {
	ID         int64        `json:"id"`
	ProductID  int64        `json:"productId"`
	Kind       MovementKind `json:"kind"`
	Quantity   int          `json:"quantity"`
	Note       string       `json:"note,omitempty"`
	OccurredAt time.Time    `json:"occurredAt"`
}
