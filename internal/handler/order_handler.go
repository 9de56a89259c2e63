package handler

import (
	"encoding/json"
	"net/http"

	"b-resto/internal/cart"
	"b-resto/internal/model"
	"b-resto/internal/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// IdempotencyHeader carries the client's checkout attempt key.
const IdempotencyHeader = "Idempotency-Key"

// CustomerRequest is the checkout form.
type CustomerRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
}

// CheckoutRequest is the body of POST /api/orders.
type CheckoutRequest struct {
	Items          []cart.Item         `json:"items"`
	Customer       CustomerRequest     `json:"customer"`
	PaymentMethod  model.PaymentMethod `json:"paymentMethod"`
	Location       *model.Location     `json:"location"`
	IdempotencyKey string              `json:"idempotencyKey"`
}

// OrderHandler handles customer order requests.
type OrderHandler struct {
	service service.OrderService
	taxRate decimal.Decimal
	logger  zerolog.Logger
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(service service.OrderService, taxRate decimal.Decimal, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		taxRate: taxRate,
		logger:  logger.With().Str("handler", "order").Logger(),
	}
}

// Create handles POST /api/orders requests.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, h.logger)
		return
	}

	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	basket := cart.New(h.taxRate)
	for _, item := range req.Items {
		basket.AddItem(item)
	}

	key := r.Header.Get(IdempotencyHeader)
	if key == "" {
		key = req.IdempotencyKey
	}

	result, err := h.service.SubmitOrder(r.Context(), &service.Submission{
		Cart: basket,
		Customer: service.Customer{
			Name:       req.Customer.Name,
			Email:      req.Customer.Email,
			Phone:      req.Customer.Phone,
			Address:    req.Customer.Address,
			City:       req.Customer.City,
			PostalCode: req.Customer.PostalCode,
		},
		PaymentMethod:  req.PaymentMethod,
		Location:       req.Location,
		IdempotencyKey: key,
	})
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	status := http.StatusCreated
	if result.OrderID == nil || result.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

// GetByID handles GET /api/orders/{id} requests.
func (h *OrderHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, h.logger)
		return
	}

	orderID, ok := parseOrderID(w, r.URL.Path, "/api/orders/", h.logger)
	if !ok {
		return
	}

	order, err := h.service.GetByID(r.Context(), orderID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to retrieve order", h.logger)
		return
	}

	if order == nil {
		writeError(w, http.StatusNotFound, model.ErrCodeOrderNotFound, "order not found", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

func parseOrderID(w http.ResponseWriter, path, prefix string, logger zerolog.Logger) (uuid.UUID, bool) {
	raw, _ := pathParam(path, prefix)
	if raw == "" {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidation, "order ID is required", logger)
		return uuid.Nil, false
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidation, "invalid order ID format", logger)
		return uuid.Nil, false
	}
	return id, true
}
