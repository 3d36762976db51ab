package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"medeasy/rx/domain"
)

const stockColumns = `id, pharmacy_id, name, unit_price, quantity_on_hand, unit_type, requires_prescription, linked_catalog_entry_id, created_at, updated_at`

type StockRepository struct {
	db *sqlx.DB
}

func NewStockRepository(db *sqlx.DB) *StockRepository {
	return &StockRepository{db: db}
}

// ListByPharmacy returns the pharmacy's inventory ordered by creation time,
// then name. Stock matching breaks score ties by this order.
func (r *StockRepository) ListByPharmacy(ctx context.Context, pharmacyID string) ([]domain.StockItem, error) {
	items := []domain.StockItem{}
	q := r.db.Rebind(`SELECT ` + stockColumns + ` FROM stock_items WHERE pharmacy_id = ? ORDER BY created_at, name`)
	if err := r.db.SelectContext(ctx, &items, q, pharmacyID); err != nil {
		return nil, fmt.Errorf("list stock for %s: %w", pharmacyID, err)
	}
	return items, nil
}

func (r *StockRepository) Get(ctx context.Context, id string) (domain.StockItem, error) {
	var it domain.StockItem
	q := r.db.Rebind(`SELECT ` + stockColumns + ` FROM stock_items WHERE id = ?`)
	if err := r.db.GetContext(ctx, &it, q, id); err != nil {
		return domain.StockItem{}, notFound(err)
	}
	return it, nil
}

func (r *StockRepository) Create(ctx context.Context, item domain.StockItem) (domain.StockItem, error) {
	created, err := r.CreateMany(ctx, []domain.StockItem{item})
	if err != nil {
		return domain.StockItem{}, err
	}
	return created[0], nil
}

// CreateMany inserts items in one transaction.
func (r *StockRepository) CreateMany(ctx context.Context, items []domain.StockItem) ([]domain.StockItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin stock insert: %w", err)
	}
	defer rollback(tx)

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO stock_items (`+stockColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return nil, fmt.Errorf("prepare stock insert: %w", err)
	}
	defer stmt.Close()

	created := make([]domain.StockItem, 0, len(items))
	ts := now()
	for _, it := range items {
		it.ID = uuid.NewString()
		it.Name = strings.TrimSpace(it.Name)
		it.CreatedAt = ts
		it.UpdatedAt = ts
		_, err := stmt.ExecContext(ctx, it.ID, it.PharmacyID, it.Name, it.UnitPrice, it.QuantityOnHand, it.UnitType,
			it.RequiresPrescription, it.LinkedCatalogEntryID, it.CreatedAt, it.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert stock item %s: %w", it.Name, err)
		}
		created = append(created, it)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit stock insert: %w", err)
	}
	return created, nil
}

// UpdateQuantity sets quantity on hand for an item owned by pharmacyID.
func (r *StockRepository) UpdateQuantity(ctx context.Context, pharmacyID, id string, quantity int64) (domain.StockItem, error) {
	q := r.db.Rebind(`UPDATE stock_items SET quantity_on_hand = ?, updated_at = ? WHERE id = ? AND pharmacy_id = ?`)
	res, err := r.db.ExecContext(ctx, q, quantity, now(), id, pharmacyID)
	if err != nil {
		return domain.StockItem{}, fmt.Errorf("update stock quantity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.StockItem{}, ErrNotFound
	}
	return r.Get(ctx, id)
}
