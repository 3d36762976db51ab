// Package quote assembles and checks the priced lines a pharmacy sends back
// for a prescription request.
package quote

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"medeasy/rx/domain"
)

var (
	ErrNoItems      = errors.New("quote has no items")
	ErrInvalidLines = errors.New("quote has invalid lines")
)

// StockLookup returns the live stock record for id, or false when it no
// longer exists.
type StockLookup func(id string) (domain.StockItem, bool)

// LookupFrom indexes a stock listing by id.
func LookupFrom(items []domain.StockItem) StockLookup {
	byID := make(map[string]domain.StockItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	return func(id string) (domain.StockItem, bool) {
		it, ok := byID[id]
		return it, ok
	}
}

// ManualLine builds an unlinked line; it never decrements stock.
func ManualLine(name string, quantity int64, price decimal.Decimal, unitType string) domain.QuoteLineItem {
	return domain.QuoteLineItem{
		Name:      strings.TrimSpace(name),
		Quantity:  quantity,
		UnitPrice: price,
		UnitType:  unitType,
	}
}

// StockLine builds a line linked to stock, priced at its current unit price.
func StockLine(stock domain.StockItem, quantity int64) domain.QuoteLineItem {
	id := stock.ID
	onHand := stock.QuantityOnHand
	return domain.QuoteLineItem{
		Name:              stock.Name,
		Quantity:          quantity,
		UnitPrice:         stock.UnitPrice,
		UnitType:          stock.UnitType,
		LinkedStockItemID: &id,
		StockSnapshot:     &onHand,
		IsMatched:         true,
	}
}

// Validate returns every problem with lines. An empty result means the quote
// can be submitted. Linked lines are checked against lookup, which should be
// read right before the quote is committed.
func Validate(lines []domain.QuoteLineItem, lookup StockLookup) []domain.Violation {
	var violations []domain.Violation
	if len(lines) == 0 {
		return append(violations, domain.Violation{
			Kind:    domain.ViolationEmptyQuote,
			Message: "quote has no items",
		})
	}
	violations = append(violations, checkLines(lines)...)

	requested := make(map[string]int64)
	var order []string
	for _, l := range lines {
		if l.LinkedStockItemID == nil || l.Quantity <= 0 {
			continue
		}
		id := *l.LinkedStockItemID
		if _, seen := requested[id]; !seen {
			order = append(order, id)
		}
		requested[id] += l.Quantity
	}
	names := lineNames(lines)
	for _, id := range order {
		var available int64
		if lookup != nil {
			if it, ok := lookup(id); ok {
				available = it.QuantityOnHand
			}
		}
		if requested[id] > available {
			violations = append(violations, domain.Violation{
				Kind:      domain.ViolationInsufficientStock,
				ItemName:  names[id],
				Requested: count(requested[id]),
				Available: count(available),
				Message:   fmt.Sprintf("insufficient stock for %s: requested %d, available %d", names[id], requested[id], available),
			})
		}
	}
	return violations
}

// checkLines runs the checks that need no stock.
func checkLines(lines []domain.QuoteLineItem) []domain.Violation {
	var violations []domain.Violation
	for _, l := range lines {
		if l.Quantity <= 0 {
			violations = append(violations, domain.Violation{
				Kind:      domain.ViolationInvalidQuantity,
				ItemName:  l.Name,
				Requested: count(l.Quantity),
				Message:   fmt.Sprintf("invalid quantity for %s", l.Name),
			})
		}
		if !l.UnitPrice.IsPositive() {
			violations = append(violations, domain.Violation{
				Kind:     domain.ViolationInvalidPrice,
				ItemName: l.Name,
				Message:  fmt.Sprintf("invalid price for %s", l.Name),
			})
		}
	}
	return violations
}

func count(n int64) *int64 { return &n }

func lineNames(lines []domain.QuoteLineItem) map[string]string {
	names := make(map[string]string)
	for _, l := range lines {
		if l.LinkedStockItemID == nil {
			continue
		}
		if _, ok := names[*l.LinkedStockItemID]; !ok {
			names[*l.LinkedStockItemID] = l.Name
		}
	}
	return names
}

type BuildInput struct {
	ID           string
	RequestID    string
	PharmacyID   string
	PharmacyName string
	Items        []domain.QuoteLineItem
	Note         string
	CreatedAt    time.Time
}

// Build totals the lines into a Quote. Callers validate against live stock
// first; Build only refuses lines that could never be valid.
func Build(in BuildInput) (domain.Quote, error) {
	if len(in.Items) == 0 {
		return domain.Quote{}, ErrNoItems
	}
	if v := checkLines(in.Items); len(v) > 0 {
		return domain.Quote{}, fmt.Errorf("%w: %s", ErrInvalidLines, v[0].Message)
	}
	items := make([]domain.QuoteLineItem, len(in.Items))
	copy(items, in.Items)
	total := decimal.Zero
	for _, l := range items {
		total = total.Add(l.Subtotal())
	}
	return domain.Quote{
		ID:           in.ID,
		RequestID:    in.RequestID,
		PharmacyID:   in.PharmacyID,
		PharmacyName: in.PharmacyName,
		Items:        items,
		TotalValue:   total,
		Note:         strings.TrimSpace(in.Note),
		CreatedAt:    in.CreatedAt,
	}, nil
}
