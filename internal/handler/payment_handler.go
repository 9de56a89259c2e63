package handler

import (
	"errors"
	"net/http"

	"b-resto/internal/model"
	"b-resto/internal/payment"
	"b-resto/internal/service"

	"github.com/rs/zerolog"
)

// PaymentHandler receives gateway notifications.
type PaymentHandler struct {
	service service.PaymentService
	logger  zerolog.Logger
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(service service.PaymentService, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		logger:  logger.With().Str("handler", "payment").Logger(),
	}
}

// Notify handles POST /api/payments/ipn requests.
func (h *PaymentHandler) Notify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, h.logger)
		return
	}

	n, err := payment.ParseNotification(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "unreadable notification", h.logger)
		return
	}

	order, err := h.service.HandleNotification(r.Context(), n)
	switch {
	case err == nil:
	case errors.Is(err, payment.ErrNotConfigured):
		writeError(w, http.StatusInternalServerError, model.ErrCodePaymentNotConfigured, "payment gateway is not configured", h.logger)
		return
	case errors.Is(err, payment.ErrSignatureMismatch):
		writeError(w, http.StatusForbidden, model.ErrCodeForbidden, "invalid notification signature", h.logger)
		return
	case errors.Is(err, model.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, model.ErrCodeOrderNotFound, "order not found", h.logger)
		return
	default:
		h.logger.Error().Err(err).Msg("failed to handle payment notification")
		writeError(w, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to record payment", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":        "ok",
		"orderId":       order.ID.String(),
		"paymentStatus": string(order.PaymentStatus),
	})
}
