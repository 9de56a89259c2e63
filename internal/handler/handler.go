package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"b-resto/internal/model"

	"github.com/rs/zerolog"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes an error response with the given status code, code and message.
func writeError(w http.ResponseWriter, status int, code, message string, logger zerolog.Logger) {
	writeErrorResponse(w, status, model.ErrorResponse{Error: code, Message: message}, logger)
}

func writeErrorResponse(w http.ResponseWriter, status int, resp model.ErrorResponse, logger zerolog.Logger) {
	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Str("error", resp.Error).Str("message", resp.Message).Int("status", status).Msg("handler error")
	writeJSON(w, status, resp)
}

// writeServiceError maps a service error to its HTTP status and body.
func writeServiceError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	var (
		verr *model.ValidationError
		gerr *model.ExternalGatewayError
		perr *model.PersistenceError
		derr *model.DomainError
	)

	switch {
	case errors.As(err, &verr):
		writeErrorResponse(w, http.StatusBadRequest, model.ErrorResponse{
			Error:   model.ErrCodeValidation,
			Message: "one or more fields are invalid",
			Fields:  verr.Fields,
		}, logger)
	case errors.As(err, &gerr):
		id := gerr.OrderID
		writeErrorResponse(w, http.StatusBadGateway, model.ErrorResponse{
			Error:   model.ErrCodeGateway,
			Message: "the order was saved but the payment could not be started",
			OrderID: &id,
		}, logger)
	case errors.As(err, &perr):
		writeError(w, http.StatusInternalServerError, model.ErrCodePersistence, "failed to save order", logger)
	case errors.As(err, &derr):
		writeError(w, domainStatus(derr.Code), derr.Code, derr.Message, logger)
	default:
		logger.Error().Err(err).Msg("unexpected service error")
		writeError(w, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error", logger)
	}
}

func domainStatus(code string) int {
	switch code {
	case model.ErrCodeOrderNotFound, model.ErrCodeProductNotFound:
		return http.StatusNotFound
	case model.ErrCodeOrderTerminal:
		return http.StatusConflict
	case model.ErrCodeInvalidStatus, model.ErrCodeInvalidQuantity, model.ErrCodeEmptyCart:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func methodNotAllowed(w http.ResponseWriter, logger zerolog.Logger) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", logger)
}

// pathParam returns the path segment following prefix, up to the next slash,
// and whatever remains after it.
func pathParam(path, prefix string) (param, rest string) {
	tail := strings.TrimPrefix(path, prefix)
	if tail == path {
		return "", ""
	}
	if i := strings.IndexByte(tail, '/'); i >= 0 {
		return tail[:i], tail[i+1:]
	}
	return tail, ""
}
