package store

import (
	"context"
	"errors"

	"habibeat/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

type ProductRepository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

// EntryRepository holds daily entries keyed by (product_id, day, section, month, year).
type EntryRepository interface {
	ListEntries(ctx context.Context, period domain.Period) ([]domain.StockEntry, error)
	// ListEntriesByDayDesc returns the month's rows ordered by day, highest first.
	ListEntriesByDayDesc(ctx context.Context, period domain.Period) ([]domain.StockEntry, error)
	// UpsertEntry inserts the row or replaces it unless the stored row was modified
	// later than the incoming one. It reports whether the row was written.
	UpsertEntry(ctx context.Context, entry domain.StockEntry) (bool, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
	SetUserActive(ctx context.Context, username string, active bool) (*domain.UserAccount, error)
	DeleteUser(ctx context.Context, username string) error
}

type Repository interface {
	ProductRepository
	EntryRepository
	UserRepository
}
