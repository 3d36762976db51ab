package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"medeasy/rx/domain"
	"medeasy/rx/internal/catalog"
	"medeasy/rx/internal/matching"
	"medeasy/rx/internal/repository"
)

const defaultSuggestLimit = 5

type CatalogStore interface {
	CatalogReader
	Get(ctx context.Context, id string) (domain.CatalogEntry, error)
	Names(ctx context.Context) ([]string, error)
	CreateMany(ctx context.Context, entries []domain.CatalogEntry) ([]domain.CatalogEntry, error)
}

type StockStore interface {
	StockReader
	Create(ctx context.Context, item domain.StockItem) (domain.StockItem, error)
	CreateMany(ctx context.Context, items []domain.StockItem) ([]domain.StockItem, error)
	UpdateQuantity(ctx context.Context, pharmacyID, id string, quantity int64) (domain.StockItem, error)
}

// DuplicateError is returned when a new stock item looks like one the
// pharmacy already carries. It lists the clashing names and catalog entries
// the item could be linked to instead.
type DuplicateError struct {
	Name        string                `json:"name"`
	Existing    []string              `json:"existing"`
	Suggestions []domain.CatalogEntry `json:"suggestions"`
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s duplicates existing stock %s", e.Name, strings.Join(e.Existing, ", "))
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicate }

// ImportReport is the screening outcome of a bulk import. Created stays zero
// on a dry run.
type ImportReport struct {
	Results   []catalog.ScreenResult `json:"results"`
	Accepted  int                    `json:"accepted"`
	Committed bool                   `json:"committed"`
	Created   int                    `json:"created"`
}

type CatalogService struct {
	catalog CatalogStore
	stock   StockStore
	tracer  trace.Tracer
}

func NewCatalogService(catalogStore CatalogStore, stock StockStore) *CatalogService {
	return &CatalogService{catalog: catalogStore, stock: stock, tracer: otel.Tracer(tracerName)}
}

// Search is the plain catalog listing filtered by term.
func (s *CatalogService) Search(ctx context.Context, term string) (entries []domain.CatalogEntry, err error) {
	ctx, span := startSpan(ctx, s.tracer, "CatalogService.Search")
	defer func() { endSpan(span, err) }()

	entries, err = s.catalog.List(ctx, term)
	if err != nil {
		return nil, storeError("search catalog", err)
	}
	return entries, nil
}

// Suggest offers catalog entries resembling a name being typed. A limit of
// zero or less uses the default of 5.
func (s *CatalogService) Suggest(ctx context.Context, name string, limit int) (entries []domain.CatalogEntry, err error) {
	ctx, span := startSpan(ctx, s.tracer, "CatalogService.Suggest")
	defer func() { endSpan(span, err) }()

	if limit <= 0 {
		limit = defaultSuggestLimit
	}
	all, err := s.catalog.List(ctx, "")
	if err != nil {
		return nil, storeError("load catalog", err)
	}
	entries = catalog.SuggestCatalogMatch(name, all, limit)
	if entries == nil {
		entries = []domain.CatalogEntry{}
	}
	return entries, nil
}

// ImportCatalog screens entries against the catalog and each other. With
// commit set, the rows that passed are stored in one transaction.
func (s *CatalogService) ImportCatalog(ctx context.Context, actor Actor, entries []domain.CatalogEntry, commit bool) (report ImportReport, err error) {
	ctx, span := startSpan(ctx, s.tracer, "CatalogService.ImportCatalog")
	defer func() { endSpan(span, err) }()

	if !actor.IsAdmin() {
		return ImportReport{}, fmt.Errorf("operator only: %w", ErrForbidden)
	}
	existing, err := s.catalog.Names(ctx)
	if err != nil {
		return ImportReport{}, storeError("load catalog names", err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.CanonicalName
		if e.ReferencePrice.IsNegative() {
			return ImportReport{}, fmt.Errorf("%w: negative reference price for %s", ErrInvalidInput, e.CanonicalName)
		}
	}
	report = screen(names, existing)
	if !commit || report.Accepted == 0 {
		return report, nil
	}
	var accepted []domain.CatalogEntry
	for _, i := range catalog.Accepted(report.Results) {
		accepted = append(accepted, entries[i])
	}
	created, err := s.catalog.CreateMany(ctx, accepted)
	if err != nil {
		return ImportReport{}, storeError("import catalog", err)
	}
	report.Committed = true
	report.Created = len(created)
	return report, nil
}

func (s *CatalogService) ListStock(ctx context.Context, actor Actor) (items []domain.StockItem, err error) {
	ctx, span := startSpan(ctx, s.tracer, "CatalogService.ListStock")
	defer func() { endSpan(span, err) }()

	if !actor.IsStaff() {
		return nil, fmt.Errorf("pharmacy staff only: %w", ErrForbidden)
	}
	items, err = s.stock.ListByPharmacy(ctx, actor.PharmacyID)
	if err != nil {
		return nil, storeError("list stock", err)
	}
	return items, nil
}

type StockInput struct {
	Name                 string
	UnitPrice            decimal.Decimal
	Quantity             int64
	UnitType             string
	RequiresPrescription bool
	CatalogEntryID       *string
	// Force stores the item even when it duplicates existing stock.
	Force bool
}

// AddStockItem adds one item to the actor's pharmacy, refusing near
// duplicates of what it already carries unless forced.
func (s *CatalogService) AddStockItem(ctx context.Context, actor Actor, in StockInput) (item domain.StockItem, err error) {
	ctx, span := startSpan(ctx, s.tracer, "CatalogService.AddStockItem")
	defer func() { endSpan(span, err) }()

	if !actor.IsStaff() {
		return domain.StockItem{}, fmt.Errorf("pharmacy staff only: %w", ErrForbidden)
	}
	candidate, err := s.stockItem(ctx, actor, in)
	if err != nil {
		return domain.StockItem{}, err
	}
	current, err := s.stock.ListByPharmacy(ctx, actor.PharmacyID)
	if err != nil {
		return domain.StockItem{}, storeError("load stock", err)
	}
	if !in.Force {
		var clashes []string
		for _, it := range current {
			if matching.IsDuplicate(candidate.Name, it.Name) {
				clashes = append(clashes, it.Name)
			}
		}
		if len(clashes) > 0 {
			dup := &DuplicateError{Name: candidate.Name, Existing: clashes, Suggestions: []domain.CatalogEntry{}}
			if all, err := s.catalog.List(ctx, ""); err == nil {
				if sugg := catalog.SuggestCatalogMatch(candidate.Name, all, defaultSuggestLimit); sugg != nil {
					dup.Suggestions = sugg
				}
			}
			return domain.StockItem{}, dup
		}
	}
	created, err := s.stock.Create(ctx, candidate)
	if err != nil {
		return domain.StockItem{}, storeError("add stock item", err)
	}
	return created, nil
}

// ImportStock screens a batch of stock rows against the pharmacy's inventory
// and each other, storing the rows that pass when commit is set.
func (s *CatalogService) ImportStock(ctx context.Context, actor Actor, in []StockInput, commit bool) (report ImportReport, err error) {
	ctx, span := startSpan(ctx, s.tracer, "CatalogService.ImportStock")
	defer func() { endSpan(span, err) }()

	if !actor.IsStaff() {
		return ImportReport{}, fmt.Errorf("pharmacy staff only: %w", ErrForbidden)
	}
	current, err := s.stock.ListByPharmacy(ctx, actor.PharmacyID)
	if err != nil {
		return ImportReport{}, storeError("load stock", err)
	}
	existing := make([]string, len(current))
	for i, it := range current {
		existing[i] = it.Name
	}
	names := make([]string, len(in))
	for i, row := range in {
		names[i] = row.Name
	}
	report = screen(names, existing)
	if !commit || report.Accepted == 0 {
		return report, nil
	}
	var items []domain.StockItem
	for _, i := range catalog.Accepted(report.Results) {
		it, err := s.stockItem(ctx, actor, in[i])
		if err != nil {
			return ImportReport{}, fmt.Errorf("row %d: %w", i+1, err)
		}
		items = append(items, it)
	}
	created, err := s.stock.CreateMany(ctx, items)
	if err != nil {
		return ImportReport{}, storeError("import stock", err)
	}
	report.Committed = true
	report.Created = len(created)
	return report, nil
}

func (s *CatalogService) UpdateStockQuantity(ctx context.Context, actor Actor, id string, quantity int64) (item domain.StockItem, err error) {
	ctx, span := startSpan(ctx, s.tracer, "CatalogService.UpdateStockQuantity")
	defer func() { endSpan(span, err) }()

	if !actor.IsStaff() {
		return domain.StockItem{}, fmt.Errorf("pharmacy staff only: %w", ErrForbidden)
	}
	if quantity < 0 {
		return domain.StockItem{}, fmt.Errorf("%w: quantity cannot be negative", ErrInvalidInput)
	}
	item, err = s.stock.UpdateQuantity(ctx, actor.PharmacyID, id, quantity)
	if err != nil {
		return domain.StockItem{}, storeError("stock item "+id, err)
	}
	return item, nil
}

func (s *CatalogService) stockItem(ctx context.Context, actor Actor, in StockInput) (domain.StockItem, error) {
	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return domain.StockItem{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	case in.UnitPrice.IsNegative():
		return domain.StockItem{}, fmt.Errorf("%w: unit price cannot be negative", ErrInvalidInput)
	case in.Quantity < 0:
		return domain.StockItem{}, fmt.Errorf("%w: quantity cannot be negative", ErrInvalidInput)
	}
	var linked *string
	if in.CatalogEntryID != nil && strings.TrimSpace(*in.CatalogEntryID) != "" {
		id := strings.TrimSpace(*in.CatalogEntryID)
		if _, err := s.catalog.Get(ctx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.StockItem{}, fmt.Errorf("%w: unknown catalog entry %s", ErrInvalidInput, id)
			}
			return domain.StockItem{}, storeError("catalog entry", err)
		}
		linked = &id
	}
	return domain.StockItem{
		PharmacyID:           actor.PharmacyID,
		Name:                 name,
		UnitPrice:            in.UnitPrice,
		QuantityOnHand:       in.Quantity,
		UnitType:             strings.TrimSpace(in.UnitType),
		RequiresPrescription: in.RequiresPrescription,
		LinkedCatalogEntryID: linked,
	}, nil
}

func screen(names, existing []string) ImportReport {
	results := catalog.Screen(names, existing)
	return ImportReport{Results: results, Accepted: len(catalog.Accepted(results))}
}
