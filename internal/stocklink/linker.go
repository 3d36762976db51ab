// Package stocklink pairs medication names read off a prescription with the
// items a pharmacy actually holds.
package stocklink

import (
	"github.com/shopspring/decimal"

	"medeasy/rx/domain"
	"medeasy/rx/internal/matching"
)

// LinkSuggestedItems turns each suggested item into a quote line. Items that
// match a stock entry under the numeric-aware policy are priced from it and
// linked; the rest are left unpriced and unlinked so they never touch stock.
func LinkSuggestedItems(items []domain.SuggestedItem, stock []domain.StockItem) []domain.QuoteLineItem {
	names := make([]string, len(stock))
	for i, s := range stock {
		names[i] = s.Name
	}

	lines := make([]domain.QuoteLineItem, 0, len(items))
	for _, item := range items {
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		m, ok := matching.Default().Best(item.Name, names, matching.NumericAware)
		if !ok {
			lines = append(lines, domain.QuoteLineItem{
				Name:      item.Name,
				Quantity:  qty,
				UnitPrice: decimal.Zero,
			})
			continue
		}
		s := stock[m.Index]
		id := s.ID
		onHand := s.QuantityOnHand
		lines = append(lines, domain.QuoteLineItem{
			Name:              s.Name,
			Quantity:          qty,
			UnitPrice:         s.UnitPrice,
			UnitType:          s.UnitType,
			LinkedStockItemID: &id,
			StockSnapshot:     &onHand,
			IsMatched:         true,
		})
	}
	return lines
}
