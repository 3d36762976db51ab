package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"medeasy/rx/domain"
)

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Register stores user and, for owners, the pharmacy they open, linking the
// two in one transaction. Email is stored lowercased.
func (r *UserRepository) Register(ctx context.Context, user domain.User, pharmacy *domain.Pharmacy) (domain.User, *domain.Pharmacy, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.User{}, nil, fmt.Errorf("begin registration: %w", err)
	}
	defer rollback(tx)

	if user.PharmacyID != nil && pharmacy == nil {
		var exists bool
		q := tx.Rebind(`SELECT EXISTS(SELECT 1 FROM pharmacies WHERE id = ?)`)
		if err := tx.GetContext(ctx, &exists, q, *user.PharmacyID); err != nil {
			return domain.User{}, nil, fmt.Errorf("check pharmacy: %w", err)
		}
		if !exists {
			return domain.User{}, nil, fmt.Errorf("pharmacy %s: %w", *user.PharmacyID, ErrNotFound)
		}
	}

	user.ID = uuid.NewString()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt = now()
	q := tx.Rebind(`INSERT INTO users (id, username, email, password, role, pharmacy_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, q, user.ID, user.Username, user.Email, user.Password, user.Role, user.PharmacyID, user.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, nil, fmt.Errorf("email %s: %w", user.Email, ErrDuplicate)
		}
		return domain.User{}, nil, fmt.Errorf("insert user: %w", err)
	}

	if pharmacy != nil {
		p := *pharmacy
		p.OwnerID = &user.ID
		created, err := insertPharmacy(ctx, tx, p)
		if err != nil {
			return domain.User{}, nil, err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE users SET pharmacy_id = ? WHERE id = ?`), created.ID, user.ID); err != nil {
			return domain.User{}, nil, fmt.Errorf("link owner to pharmacy: %w", err)
		}
		user.PharmacyID = &created.ID
		pharmacy = &created
	}

	if err := tx.Commit(); err != nil {
		return domain.User{}, nil, fmt.Errorf("commit registration: %w", err)
	}
	user.Password = ""
	return user, pharmacy, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	var user domain.User
	q := r.db.Rebind(`SELECT id, username, email, password, role, pharmacy_id, created_at FROM users WHERE email = ?`)
	if err := r.db.GetContext(ctx, &user, q, strings.ToLower(strings.TrimSpace(email))); err != nil {
		return domain.User{}, notFound(err)
	}
	return user, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID string, hashed []byte) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE users SET password = ? WHERE id = ?`), string(hashed), userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
