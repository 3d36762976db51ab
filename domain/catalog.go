package domain

import "github.com/shopspring/decimal"

// CatalogEntry is a reference medication shared network-wide, independent of
// any single pharmacy's stock.
type CatalogEntry struct {
	ID             string          `db:"id" json:"id"`
	CanonicalName  string          `db:"canonical_name" json:"canonical_name"`
	Category       string          `db:"category" json:"category"`
	ReferencePrice decimal.Decimal `db:"reference_price" json:"reference_price"`
	CreatedAt      string          `db:"created_at" json:"created_at"`
}
