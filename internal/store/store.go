// Package store persists the catalog, the append-only ledgers and operator
// accounts behind a single interface with several interchangeable drivers.
package store

import (
	"context"

	"github.com/noah-isme/backend-kasir/internal/model"
)

// ProductStore holds the product catalog.
type ProductStore interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	GetProduct(ctx context.Context, id int64) (model.Product, error)
	// CreateProduct fails with model.ErrDuplicateID when the id is taken.
	CreateProduct(ctx context.Context, p model.Product) error
	UpdateProduct(ctx context.Context, p model.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	// AdjustStock applies every delta or none. A delta that would take stock
	// below zero fails with a *model.StockError; an unknown product with
	// model.ErrNotFound.
	AdjustStock(ctx context.Context, deltas []model.StockDelta) error
}

// TransactionStore is the append-only sales ledger.
type TransactionStore interface {
	// AppendTransaction fails with model.ErrDuplicateID when the id exists.
	AppendTransaction(ctx context.Context, tx model.Transaction) error
	GetTransaction(ctx context.Context, id string) (model.Transaction, error)
	// ListTransactions returns records in insertion order.
	ListTransactions(ctx context.Context) ([]model.Transaction, error)
}

// RefundStore is the append-only refund ledger.
type RefundStore interface {
	// AppendRefund fails with model.ErrAlreadyRefunded when the original
	// transaction already has a refund and model.ErrDuplicateID on id reuse.
	AppendRefund(ctx context.Context, rf model.Refund) error
	GetRefund(ctx context.Context, id string) (model.Refund, error)
	RefundForTransaction(ctx context.Context, txID string) (model.Refund, bool, error)
	ListRefunds(ctx context.Context) ([]model.Refund, error)
}

// UserStore holds operator accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u model.User) error
	GetUserByID(ctx context.Context, id string) (model.User, error)
	// GetUserByLogin matches email or username case-insensitively.
	GetUserByLogin(ctx context.Context, identifier string) (model.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// Store bundles every collection plus lifecycle hooks.
type Store interface {
	ProductStore
	TransactionStore
	RefundStore
	UserStore
	Ping(ctx context.Context) error
	Close() error
}

// Seed loads the demo catalog when the product collection is empty.
func Seed(ctx context.Context, s ProductStore, products []model.Product) (int, error) {
	existing, err := s.ListProducts(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	n := 0
	for _, p := range products {
		if err := s.CreateProduct(ctx, p); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
