package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"medeasy/rx/domain"
)

const catalogColumns = `id, canonical_name, category, reference_price, created_at`

type CatalogRepository struct {
	db *sqlx.DB
}

func NewCatalogRepository(db *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// List returns catalog entries whose name or category contains term, or every
// entry when term is blank. This is a plain filter; ranking is done by callers.
func (r *CatalogRepository) List(ctx context.Context, term string) ([]domain.CatalogEntry, error) {
	entries := []domain.CatalogEntry{}
	term = strings.ToLower(strings.TrimSpace(term))
	var err error
	if term == "" {
		err = r.db.SelectContext(ctx, &entries, `SELECT `+catalogColumns+` FROM catalog_entries ORDER BY canonical_name`)
	} else {
		like := "%" + term + "%"
		q := r.db.Rebind(`SELECT ` + catalogColumns + ` FROM catalog_entries WHERE LOWER(canonical_name) LIKE ? OR LOWER(category) LIKE ? ORDER BY canonical_name`)
		err = r.db.SelectContext(ctx, &entries, q, like, like)
	}
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}
	return entries, nil
}

func (r *CatalogRepository) Names(ctx context.Context) ([]string, error) {
	names := []string{}
	if err := r.db.SelectContext(ctx, &names, `SELECT canonical_name FROM catalog_entries ORDER BY created_at, canonical_name`); err != nil {
		return nil, fmt.Errorf("list catalog names: %w", err)
	}
	return names, nil
}

func (r *CatalogRepository) Get(ctx context.Context, id string) (domain.CatalogEntry, error) {
	var e domain.CatalogEntry
	q := r.db.Rebind(`SELECT ` + catalogColumns + ` FROM catalog_entries WHERE id = ?`)
	if err := r.db.GetContext(ctx, &e, q, id); err != nil {
		return domain.CatalogEntry{}, notFound(err)
	}
	return e, nil
}

// CreateMany inserts entries in one transaction, assigning ids and creation
// times. Either all rows are stored or none.
func (r *CatalogRepository) CreateMany(ctx context.Context, entries []domain.CatalogEntry) ([]domain.CatalogEntry, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin catalog import: %w", err)
	}
	defer rollback(tx)

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO catalog_entries (`+catalogColumns+`) VALUES (?, ?, ?, ?, ?)`))
	if err != nil {
		return nil, fmt.Errorf("prepare catalog insert: %w", err)
	}
	defer stmt.Close()

	created := make([]domain.CatalogEntry, 0, len(entries))
	ts := now()
	for _, e := range entries {
		e.ID = uuid.NewString()
		e.CanonicalName = strings.TrimSpace(e.CanonicalName)
		e.Category = strings.TrimSpace(e.Category)
		e.CreatedAt = ts
		if _, err := stmt.ExecContext(ctx, e.ID, e.CanonicalName, e.Category, e.ReferencePrice, e.CreatedAt); err != nil {
			return nil, fmt.Errorf("insert catalog entry %s: %w", e.CanonicalName, err)
		}
		created = append(created, e)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit catalog import: %w", err)
	}
	return created, nil
}
