package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"medeasy/rx/domain"
)

type PharmacyRepository struct {
	db *sqlx.DB
}

func NewPharmacyRepository(db *sqlx.DB) *PharmacyRepository {
	return &PharmacyRepository{db: db}
}

func (r *PharmacyRepository) Create(ctx context.Context, p domain.Pharmacy) (domain.Pharmacy, error) {
	return insertPharmacy(ctx, r.db, p)
}

func insertPharmacy(ctx context.Context, db sqlx.ExtContext, p domain.Pharmacy) (domain.Pharmacy, error) {
	p.ID = uuid.NewString()
	p.CreatedAt = now()
	q := db.Rebind(`INSERT INTO pharmacies (id, name, address, location, owner_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if _, err := db.ExecContext(ctx, q, p.ID, p.Name, p.Address, p.Location, p.OwnerID, p.CreatedAt); err != nil {
		return domain.Pharmacy{}, fmt.Errorf("insert pharmacy: %w", err)
	}
	return p, nil
}

func (r *PharmacyRepository) Get(ctx context.Context, id string) (domain.Pharmacy, error) {
	var p domain.Pharmacy
	q := r.db.Rebind(`SELECT id, name, address, location, owner_id, created_at FROM pharmacies WHERE id = ?`)
	if err := r.db.GetContext(ctx, &p, q, id); err != nil {
		return domain.Pharmacy{}, notFound(err)
	}
	return p, nil
}

func (r *PharmacyRepository) List(ctx context.Context) ([]domain.Pharmacy, error) {
	pharmacies := []domain.Pharmacy{}
	if err := r.db.SelectContext(ctx, &pharmacies, `SELECT id, name, address, location, owner_id, created_at FROM pharmacies ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list pharmacies: %w", err)
	}
	return pharmacies, nil
}

// Update changes the pharmacy's details when ownerID owns it.
func (r *PharmacyRepository) Update(ctx context.Context, ownerID string, p domain.Pharmacy) error {
	q := r.db.Rebind(`UPDATE pharmacies SET name = ?, address = ?, location = ? WHERE id = ? AND owner_id = ?`)
	res, err := r.db.ExecContext(ctx, q, p.Name, p.Address, p.Location, p.ID, ownerID)
	if err != nil {
		return fmt.Errorf("update pharmacy: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
