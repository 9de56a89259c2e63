package model

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	OrderID *uuid.UUID        `json:"orderId,omitempty"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON          = "INVALID_JSON"
	ErrCodeValidation           = "VALIDATION_FAILED"
	ErrCodeProductNotFound      = "PRODUCT_NOT_FOUND"
	ErrCodeInvalidQuantity      = "INVALID_QUANTITY"
	ErrCodeEmptyCart            = "EMPTY_CART"
	ErrCodeOrderNotFound        = "ORDER_NOT_FOUND"
	ErrCodeInvalidStatus        = "INVALID_STATUS"
	ErrCodeOrderTerminal        = "ORDER_TERMINAL"
	ErrCodePersistence          = "PERSISTENCE_FAILED"
	ErrCodeGateway              = "PAYMENT_GATEWAY_FAILED"
	ErrCodeSubscription         = "SUBSCRIPTION_FAILED"
	ErrCodePaymentNotConfigured = "PAYMENT_NOT_CONFIGURED"
	ErrCodeUnauthorised         = "UNAUTHORIZED"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeInternalError        = "INTERNAL_ERROR"
)

// Domain errors for business logic
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrProductNotFound = NewDomainError(ErrCodeProductNotFound, "One or more menu items not found")
	ErrInvalidQuantity = NewDomainError(ErrCodeInvalidQuantity, "Quantity must be greater than zero")
	ErrEmptyCart       = NewDomainError(ErrCodeEmptyCart, "Cart is empty")
	ErrOrderNotFound   = NewDomainError(ErrCodeOrderNotFound, "Order not found")
	ErrInvalidStatus   = NewDomainError(ErrCodeInvalidStatus, "Unknown order status")
	ErrOrderTerminal   = NewDomainError(ErrCodeOrderTerminal, "Order is delivered or cancelled and can no longer change status")
)

// ValidationError reports every customer or cart field that failed validation.
// Keys are field names, values are user-facing messages.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError creates an empty validation error.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records a failure for a field. The first message for a field wins.
func (e *ValidationError) Add(field, message string) {
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = message
	}
}

// HasErrors reports whether any field failed.
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// PersistenceError wraps a failed write to the order store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ExternalGatewayError is returned when the payment provider could not start a
// session. The order has already been persisted and is identified by OrderID.
type ExternalGatewayError struct {
	OrderID uuid.UUID
	Err     error
}

func (e *ExternalGatewayError) Error() string {
	return fmt.Sprintf("payment gateway failed for order %s: %v", e.OrderID, e.Err)
}

func (e *ExternalGatewayError) Unwrap() error {
	return e.Err
}

// SubscriptionError terminates a live subscription after a failed read.
type SubscriptionError struct {
	Target string
	Err    error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription to %s failed: %v", e.Target, e.Err)
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}
