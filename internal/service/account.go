package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"medeasy/rx/domain"
	"medeasy/rx/internal/repository"
)

type UserStore interface {
	Register(ctx context.Context, user domain.User, pharmacy *domain.Pharmacy) (domain.User, *domain.Pharmacy, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	UpdatePassword(ctx context.Context, userID string, hashed []byte) error
}

type PharmacyStore interface {
	PharmacyReader
	Create(ctx context.Context, p domain.Pharmacy) (domain.Pharmacy, error)
	List(ctx context.Context) ([]domain.Pharmacy, error)
	Update(ctx context.Context, ownerID string, p domain.Pharmacy) error
}

// AccountService handles sign-up, login and pharmacy ownership.
type AccountService struct {
	users      UserStore
	pharmacies PharmacyStore
}

func NewAccountService(users UserStore, pharmacies PharmacyStore) *AccountService {
	return &AccountService{users: users, pharmacies: pharmacies}
}

type RegisterInput struct {
	Username         string
	Email            string
	Password         string
	Role             string
	PharmacyID       string
	PharmacyName     string
	PharmacyAddress  string
	PharmacyLocation string
}

// Register creates a user. Owners open their pharmacy at the same time;
// employees join an existing one.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (domain.User, *domain.Pharmacy, error) {
	if in.Username == "" || in.Email == "" || in.Password == "" || in.Role == "" {
		return domain.User{}, nil, fmt.Errorf("%w: username, email, password and role are required", ErrInvalidInput)
	}
	user := domain.User{Username: in.Username, Email: in.Email, Role: in.Role}
	var pharmacy *domain.Pharmacy
	switch in.Role {
	case domain.RoleOwner:
		if strings.TrimSpace(in.PharmacyName) == "" {
			return domain.User{}, nil, fmt.Errorf("%w: pharmacy_name is required for owners", ErrInvalidInput)
		}
		pharmacy = &domain.Pharmacy{Name: strings.TrimSpace(in.PharmacyName), Address: in.PharmacyAddress, Location: in.PharmacyLocation}
	case domain.RoleEmployee:
		if strings.TrimSpace(in.PharmacyID) == "" {
			return domain.User{}, nil, fmt.Errorf("%w: pharmacy_id is required for employees", ErrInvalidInput)
		}
		id := strings.TrimSpace(in.PharmacyID)
		user.PharmacyID = &id
	case domain.RoleCustomer:
	default:
		return domain.User{}, nil, fmt.Errorf("%w: role must be owner, employee or customer", ErrInvalidInput)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, nil, fmt.Errorf("unable to secure password: %w", err)
	}
	user.Password = string(hashed)

	created, pharmacy, err := s.users.Register(ctx, user, pharmacy)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, nil, fmt.Errorf("%w: invalid pharmacy_id for employee", ErrInvalidInput)
		}
		return domain.User{}, nil, storeError("register", err)
	}
	return created, pharmacy, nil
}

// EnsureAdmin creates the operator account if no user holds email yet.
func (s *AccountService) EnsureAdmin(ctx context.Context, email, password string) error {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return storeError("look up admin", err)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("unable to secure password: %w", err)
	}
	_, _, err = s.users.Register(ctx, domain.User{Username: "admin", Email: email, Password: string(hashed), Role: domain.RoleAdmin}, nil)
	if err != nil {
		return storeError("create admin", err)
	}
	return nil
}

func (s *AccountService) Login(ctx context.Context, email, password string) (domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.User{}, ErrUnauthorized
		}
		return domain.User{}, storeError("login", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return domain.User{}, ErrUnauthorized
	}
	if (user.Role == domain.RoleOwner || user.Role == domain.RoleEmployee) && user.PharmacyID == nil {
		return domain.User{}, fmt.Errorf("user is not linked to a pharmacy: %w", ErrForbidden)
	}
	user.Password = ""
	return user, nil
}

func (s *AccountService) ResetPassword(ctx context.Context, actor Actor, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("%w: new_password is required", ErrInvalidInput)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("unable to secure password: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, actor.UserID, hashed); err != nil {
		return storeError("update password", err)
	}
	return nil
}

func (s *AccountService) ListPharmacies(ctx context.Context) ([]domain.Pharmacy, error) {
	pharmacies, err := s.pharmacies.List(ctx)
	if err != nil {
		return nil, storeError("list pharmacies", err)
	}
	return pharmacies, nil
}

func (s *AccountService) CreatePharmacy(ctx context.Context, actor Actor, p domain.Pharmacy) (domain.Pharmacy, error) {
	if actor.Role != domain.RoleOwner {
		return domain.Pharmacy{}, fmt.Errorf("owners only: %w", ErrForbidden)
	}
	if strings.TrimSpace(p.Name) == "" {
		return domain.Pharmacy{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	owner := actor.UserID
	p.OwnerID = &owner
	created, err := s.pharmacies.Create(ctx, p)
	if err != nil {
		return domain.Pharmacy{}, storeError("create pharmacy", err)
	}
	return created, nil
}

func (s *AccountService) UpdatePharmacy(ctx context.Context, actor Actor, p domain.Pharmacy) error {
	if actor.Role != domain.RoleOwner {
		return fmt.Errorf("owners only: %w", ErrForbidden)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if err := s.pharmacies.Update(ctx, actor.UserID, p); err != nil {
		return storeError("pharmacy "+p.ID, err)
	}
	return nil
}
