package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction はレシートから登録された購入取引を表す。
type Transaction struct {
	ID          string
	UserID      string
	StoreName   string
	Category    string
	Total       decimal.Decimal
	PurchasedAt time.Time
	CreatedAt   time.Time
}

// TransactionItem は取引の明細行を表す。
// Quantityが0または未指定の場合、単価計算時には1として扱う（ゼロ除算回避）。
type TransactionItem struct {
	ID            string
	TransactionID string
	Description   string
	Quantity      int
	TotalValue    decimal.Decimal
}
