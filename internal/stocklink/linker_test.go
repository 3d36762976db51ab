package stocklink

import (
	"testing"

	"github.com/shopspring/decimal"

	"medeasy/rx/domain"
)

func testStock() []domain.StockItem {
	return []domain.StockItem{
		{ID: "s1", PharmacyID: "p1", Name: "Dipirona Sódica 500mg", UnitPrice: decimal.NewFromInt(800), QuantityOnHand: 40, UnitType: "caixa"},
		{ID: "s2", PharmacyID: "p1", Name: "Amoxicilina 250mg Cápsula", UnitPrice: decimal.NewFromInt(1200), QuantityOnHand: 3, UnitType: "caixa"},
		{ID: "s3", PharmacyID: "p1", Name: "Amoxicilina 500mg Cápsula", UnitPrice: decimal.NewFromInt(1500), QuantityOnHand: 10, UnitType: "caixa"},
	}
}

func TestLinkSuggestedItems(t *testing.T) {
	lines := LinkSuggestedItems([]domain.SuggestedItem{
		{Name: "amoxicilina 500", Quantity: 2},
		{Name: "Xarope Desconhecido", Quantity: 1},
		{Name: "Dipirona", Quantity: 0},
	}, testStock())

	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}

	amox := lines[0]
	if !amox.IsMatched || amox.LinkedStockItemID == nil || *amox.LinkedStockItemID != "s3" {
		t.Fatalf("amoxicilina should link to s3: %+v", amox)
	}
	if !amox.UnitPrice.Equal(decimal.NewFromInt(1500)) || amox.UnitType != "caixa" || amox.Quantity != 2 {
		t.Fatalf("linked line not pre-filled from stock: %+v", amox)
	}
	if amox.StockSnapshot == nil || *amox.StockSnapshot != 10 {
		t.Fatalf("expected stock snapshot 10, got %v", amox.StockSnapshot)
	}

	unknown := lines[1]
	if unknown.IsMatched || unknown.LinkedStockItemID != nil || !unknown.UnitPrice.IsZero() {
		t.Fatalf("unmatched line must be unlinked and unpriced: %+v", unknown)
	}
	if unknown.Name != "Xarope Desconhecido" {
		t.Fatalf("unmatched line keeps the extracted name, got %q", unknown.Name)
	}

	dip := lines[2]
	if !dip.IsMatched || *dip.LinkedStockItemID != "s1" || dip.Quantity != 1 {
		t.Fatalf("dipirona should link to s1 with quantity 1: %+v", dip)
	}
}

func TestLinkSuggestedItemsEmptyStock(t *testing.T) {
	lines := LinkSuggestedItems([]domain.SuggestedItem{{Name: "Dipirona", Quantity: 1}}, nil)
	if len(lines) != 1 || lines[0].IsMatched {
		t.Fatalf("expected one unmatched line, got %+v", lines)
	}
}
