package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type QuoteLineItem struct {
	Name              string          `db:"name" json:"name"`
	Quantity          int64           `db:"quantity" json:"quantity"`
	UnitPrice         decimal.Decimal `db:"unit_price" json:"unit_price"`
	UnitType          string          `db:"unit_type" json:"unit_type"`
	LinkedStockItemID *string         `db:"linked_stock_item_id" json:"linked_stock_item_id,omitempty"`
	// StockSnapshot is quantityOnHand when the line was built. Display only.
	StockSnapshot *int64 `db:"stock_snapshot" json:"stock_snapshot,omitempty"`
	IsMatched     bool   `db:"is_matched" json:"is_matched"`
}

func (l QuoteLineItem) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
}

type Quote struct {
	ID           string          `json:"id"`
	RequestID    string          `json:"request_id"`
	PharmacyID   string          `json:"pharmacy_id"`
	PharmacyName string          `json:"pharmacy_name"`
	Items        []QuoteLineItem `json:"items"`
	TotalValue   decimal.Decimal `json:"total_value"`
	Note         string          `json:"note,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type ViolationKind string

const (
	ViolationInvalidQuantity   ViolationKind = "invalid_quantity"
	ViolationInvalidPrice      ViolationKind = "invalid_price"
	ViolationInsufficientStock ViolationKind = "insufficient_stock"
	ViolationEmptyQuote        ViolationKind = "empty_quote"
)

// Violation is one problem found while validating quote lines. Requested is
// set for quantity and stock violations, Available only for stock ones; both
// are kept in the JSON even when zero.
type Violation struct {
	Kind      ViolationKind `json:"kind"`
	ItemName  string        `json:"item_name,omitempty"`
	Requested *int64        `json:"requested,omitempty"`
	Available *int64        `json:"available,omitempty"`
	Message   string        `json:"message"`
}
