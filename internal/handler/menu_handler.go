package handler

import (
	"errors"
	"net/http"
	"strconv"

	"b-resto/internal/model"
	"b-resto/internal/service"

	"github.com/rs/zerolog"
)

// MenuHandler handles storefront menu requests.
type MenuHandler struct {
	service service.MenuService
	logger  zerolog.Logger
}

// NewMenuHandler creates a new menu handler.
func NewMenuHandler(service service.MenuService, logger zerolog.Logger) *MenuHandler {
	return &MenuHandler{
		service: service,
		logger:  logger.With().Str("handler", "menu").Logger(),
	}
}

// GetAll handles GET /api/menu requests with pagination.
func (h *MenuHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, h.logger)
		return
	}

	limit, ok := h.intQuery(w, r, "limit")
	if !ok {
		return
	}
	offset, ok := h.intQuery(w, r, "offset")
	if !ok {
		return
	}

	items, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

// GetByID handles GET /api/menu/{id} requests.
func (h *MenuHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, h.logger)
		return
	}

	id, _ := pathParam(r.URL.Path, "/api/menu/")
	if id == "" {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidation, "menu item ID is required", h.logger)
		return
	}

	item, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrProductNotFound) {
			writeError(w, http.StatusNotFound, model.ErrCodeProductNotFound, "menu item not found", h.logger)
			return
		}
		writeServiceError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (h *MenuHandler) intQuery(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		writeError(w, http.StatusBadRequest, model.ErrCodeValidation, "invalid "+name+" parameter", h.logger)
		return 0, false
	}
	return v, true
}
