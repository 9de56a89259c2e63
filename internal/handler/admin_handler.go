package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"b-resto/internal/model"
	"b-resto/internal/service"

	"github.com/rs/zerolog"
)

// StatusRequest is the body of PATCH /api/admin/orders/{id}/status.
type StatusRequest struct {
	Status model.OrderStatus `json:"status"`
}

// AdminHandler handles the staff order board.
type AdminHandler struct {
	service service.BoardService
	logger  zerolog.Logger
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(service service.BoardService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		logger:  logger.With().Str("handler", "admin").Logger(),
	}
}

// List handles GET /api/admin/orders?date=YYYY-MM-DD&limit=N&status=S.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, h.logger)
		return
	}

	filter, ok := boardFilter(w, r, h.service, h.logger)
	if !ok {
		return
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := model.OrderStatus(raw)
		if !status.Valid() {
			writeServiceError(w, model.ErrInvalidStatus, h.logger)
			return
		}
		filter.Status = &status
	}

	orders, err := h.service.List(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, orders)
}

// UpdateStatus handles PATCH /api/admin/orders/{id}/status requests.
func (h *AdminHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w, h.logger)
		return
	}

	orderID, ok := parseOrderID(w, r.URL.Path, "/api/admin/orders/", h.logger)
	if !ok {
		return
	}

	var req StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), orderID, req.Status)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// boardFilter reads the date and limit query parameters.
func boardFilter(w http.ResponseWriter, r *http.Request, board service.BoardService, logger zerolog.Logger) (model.OrderFilter, bool) {
	query := r.URL.Query()

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, model.ErrCodeValidation, "invalid limit parameter", logger)
			return model.OrderFilter{}, false
		}
		limit = v
	}

	filter, err := board.Filter(query.Get("date"), limit)
	if err != nil {
		writeServiceError(w, err, logger)
		return model.OrderFilter{}, false
	}
	return filter, true
}
