package repository

import (
	"context"
	"time"

	"b-resto/internal/model"

	"github.com/google/uuid"
)

// MenuRepository defines the interface for menu data access operations.
type MenuRepository interface {
	// GetAll retrieves menu items with pagination support.
	GetAll(ctx context.Context, limit, offset int) ([]model.MenuItem, error)

	// GetByID retrieves a single menu item by its ID. Returns nil when absent.
	GetByID(ctx context.Context, id string) (*model.MenuItem, error)

	// GetByIDs retrieves multiple menu items by their IDs.
	GetByIDs(ctx context.Context, ids []string) ([]model.MenuItem, error)

	// Upsert inserts or replaces menu items in a single transaction.
	Upsert(ctx context.Context, items []model.MenuItem) error
}

// OrderRepository defines the interface for order data access operations.
type OrderRepository interface {
	// Create inserts a validated order. When an order with the same idempotency
	// key already exists, that order is returned and created is false.
	Create(ctx context.Context, order *model.Order) (stored *model.Order, created bool, err error)

	// GetByID retrieves an order by its ID. Returns nil when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)

	// List returns orders matching the filter, most recent first.
	List(ctx context.Context, filter model.OrderFilter) ([]model.Order, error)

	// UpdateStatus changes the status of a non-terminal order. Returns
	// ErrOrderTerminal when the stored order is delivered or cancelled and
	// ErrOrderNotFound when it does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, at time.Time) (*model.Order, error)

	// UpdatePayment records the payment outcome reported by the gateway.
	UpdatePayment(ctx context.Context, id uuid.UUID, status model.PaymentStatus, ref *string, at time.Time) (*model.Order, error)
}
