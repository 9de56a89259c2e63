package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfillment stage of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// OrderStatuses lists every status in board display order.
var OrderStatuses = []OrderStatus{
	StatusPending,
	StatusPreparing,
	StatusReady,
	StatusDelivered,
	StatusCancelled,
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusReady, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further status change is allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// PaymentMethod is how the customer intends to pay.
type PaymentMethod string

const (
	PaymentCard        PaymentMethod = "card"
	PaymentCash        PaymentMethod = "cash"
	PaymentMobileMoney PaymentMethod = "mobileMoney"
	PaymentWhatsApp    PaymentMethod = "whatsapp"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCard, PaymentCash, PaymentMobileMoney, PaymentWhatsApp:
		return true
	}
	return false
}

// PaymentStatus tracks settlement independently of fulfillment.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
	PaymentFailed PaymentStatus = "failed"
)

// Valid reports whether p is a known payment status.
func (p PaymentStatus) Valid() bool {
	return p == PaymentUnpaid || p == PaymentPaid || p == PaymentFailed
}

// Location is the optional geolocation captured at checkout.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinates are within range.
func (l Location) Valid() bool {
	return l.Latitude >= -90 && l.Latitude <= 90 && l.Longitude >= -180 && l.Longitude <= 180
}

// OrderItem is a cart line frozen into an order. Price is the unit price
// including the size override and extra surcharges.
type OrderItem struct {
	ProductID string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Size      *string         `json:"size"`
	Extras    []string        `json:"extras"`
}

// LineTotal returns price multiplied by quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderItems is the frozen item list of an order.
type OrderItems []OrderItem

// Subtotal sums the line totals, before tax.
func (items OrderItems) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, i := range items {
		sum = sum.Add(i.LineTotal())
	}
	return sum
}

// Order is a persisted customer order.
type Order struct {
	ID              uuid.UUID       `json:"id"`
	Items           OrderItems      `json:"items"`
	Total           decimal.Decimal `json:"total"`
	Status          OrderStatus     `json:"status"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	PaymentRef      *string         `json:"paymentRef,omitempty"`
	CustomerName    string          `json:"customerName"`
	CustomerEmail   string          `json:"customerEmail"`
	CustomerPhone   string          `json:"customerPhone"`
	DeliveryAddress string          `json:"deliveryAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	Location        *Location       `json:"location"`
	IdempotencyKey  *string         `json:"-"`
	Version         int64           `json:"version"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Validate checks the invariants every stored order must satisfy.
func (o *Order) Validate() error {
	verr := NewValidationError()

	if o.ID == uuid.Nil {
		verr.Add("id", "order id is required")
	}
	if len(o.Items) == 0 {
		verr.Add("items", "order must contain at least one item")
	}
	for i, item := range o.Items {
		field := fmt.Sprintf("items[%d]", i)
		if item.ProductID == "" {
			verr.Add(field, "product id is required")
		}
		if item.Quantity < 1 {
			verr.Add(field, "quantity must be at least 1")
		}
		if item.Price.IsNegative() {
			verr.Add(field, "price must not be negative")
		}
	}
	if o.Total.IsNegative() {
		verr.Add("total", "total must not be negative")
	}
	if !o.Status.Valid() {
		verr.Add("status", fmt.Sprintf("unknown status %q", o.Status))
	}
	if !o.PaymentStatus.Valid() {
		verr.Add("paymentStatus", fmt.Sprintf("unknown payment status %q", o.PaymentStatus))
	}
	if !o.PaymentMethod.Valid() {
		verr.Add("paymentMethod", fmt.Sprintf("unknown payment method %q", o.PaymentMethod))
	}
	if o.CustomerName == "" {
		verr.Add("customerName", "customer name is required")
	}
	if o.Location != nil && !o.Location.Valid() {
		verr.Add("location", "coordinates out of range")
	}
	if o.CreatedAt.IsZero() {
		verr.Add("createdAt", "creation time is required")
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// OrderFilter bounds the set of orders watched or listed by the board.
// From is inclusive and To exclusive; nil bounds are open.
type OrderFilter struct {
	From   *time.Time
	To     *time.Time
	Status *OrderStatus
	Limit  int
}

// DayFilter selects the calendar day containing t in loc.
func DayFilter(t time.Time, loc *time.Location, limit int) OrderFilter {
	local := t.In(loc)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	to := from.AddDate(0, 0, 1)
	return OrderFilter{From: &from, To: &to, Limit: limit}
}

// Contains reports whether the order falls inside the filter window and status.
func (f OrderFilter) Contains(o *Order) bool {
	if f.From != nil && o.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !o.CreatedAt.Before(*f.To) {
		return false
	}
	if f.Status != nil && o.Status != *f.Status {
		return false
	}
	return true
}

// CheckoutResult is returned by order submission.
type CheckoutResult struct {
	OrderID     *uuid.UUID      `json:"orderId,omitempty"`
	Order       *Order          `json:"order,omitempty"`
	Replayed    bool            `json:"replayed"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
	PaymentURL  string          `json:"paymentUrl,omitempty"`
	WhatsAppURL string          `json:"whatsappUrl,omitempty"`
	StatusURL   string          `json:"statusUrl,omitempty"`
}
