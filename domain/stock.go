package domain

import "github.com/shopspring/decimal"

// StockItem is a pharmacy-owned inventory record.
type StockItem struct {
	ID                   string          `db:"id" json:"id"`
	PharmacyID           string          `db:"pharmacy_id" json:"pharmacy_id"`
	Name                 string          `db:"name" json:"name"`
	UnitPrice            decimal.Decimal `db:"unit_price" json:"unit_price"`
	QuantityOnHand       int64           `db:"quantity_on_hand" json:"quantity_on_hand"`
	UnitType             string          `db:"unit_type" json:"unit_type"`
	RequiresPrescription bool            `db:"requires_prescription" json:"requires_prescription"`
	LinkedCatalogEntryID *string         `db:"linked_catalog_entry_id" json:"linked_catalog_entry_id,omitempty"`
	CreatedAt            string          `db:"created_at" json:"created_at"`
	UpdatedAt            string          `db:"updated_at" json:"updated_at"`
}
