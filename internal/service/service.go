package service

import (
	"context"

	"b-resto/internal/model"
	"b-resto/internal/payment"

	"github.com/google/uuid"
)

// MenuService defines read access to the menu and catalogue import.
type MenuService interface {
	// GetAll retrieves menu items with pagination.
	GetAll(ctx context.Context, limit, offset int) ([]model.MenuItem, error)

	// GetByID retrieves a single menu item by ID.
	GetByID(ctx context.Context, id string) (*model.MenuItem, error)

	// Import upserts catalogue items.
	Import(ctx context.Context, items []model.MenuItem) error
}

// OrderService defines the customer checkout operations.
type OrderService interface {
	// SubmitOrder validates and reprices the cart, then persists the order or
	// hands off to WhatsApp depending on the payment method.
	SubmitOrder(ctx context.Context, sub *Submission) (*model.CheckoutResult, error)

	// GetByID retrieves the current snapshot of an order. Returns nil when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
}

// BoardService defines the staff order board operations.
type BoardService interface {
	// Filter builds the board filter for a calendar day (YYYY-MM-DD, empty for
	// today) in the restaurant time zone.
	Filter(date string, limit int) (model.OrderFilter, error)

	// List returns orders matching filter, most recent first.
	List(ctx context.Context, filter model.OrderFilter) ([]model.Order, error)

	// UpdateStatus moves an order through its lifecycle.
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus) (*model.Order, error)
}

// PaymentService defines handling of gateway notifications.
type PaymentService interface {
	// HandleNotification verifies a notification and records the outcome on the order.
	HandleNotification(ctx context.Context, n *payment.Notification) (*model.Order, error)
}
