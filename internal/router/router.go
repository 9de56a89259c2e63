package router

import (
	"net/http"
	"strings"

	"b-resto/internal/handler"
	"b-resto/internal/middleware"

	"github.com/rs/zerolog"
)

// New creates a new HTTP router with all routes and middleware configured.
func New(
	menuHandler *handler.MenuHandler,
	orderHandler *handler.OrderHandler,
	adminHandler *handler.AdminHandler,
	liveHandler *handler.LiveHandler,
	paymentHandler *handler.PaymentHandler,
	apiKey string,
	serviceName string,
	logger zerolog.Logger,
) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint (no authentication required)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	menuRouteHandler := func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/menu" && r.URL.Path != "/api/menu/" {
			menuHandler.GetByID(w, r)
			return
		}
		menuHandler.GetAll(w, r)
	}
	mux.HandleFunc("/api/menu", menuRouteHandler)
	mux.HandleFunc("/api/menu/", menuRouteHandler)

	orderRouteHandler := func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/orders" || r.URL.Path == "/api/orders/" {
			orderHandler.Create(w, r)
			return
		}

		if strings.HasSuffix(r.URL.Path, "/live") {
			liveHandler.Order(w, r)
			return
		}
		orderHandler.GetByID(w, r)
	}
	mux.HandleFunc("/api/orders", orderRouteHandler)
	mux.HandleFunc("/api/orders/", orderRouteHandler)

	adminRouteHandler := func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/admin/orders" || r.URL.Path == "/api/admin/orders/":
			adminHandler.List(w, r)
		case r.URL.Path == "/api/admin/orders/live":
			liveHandler.Board(w, r)
		case strings.HasSuffix(r.URL.Path, "/status"):
			adminHandler.UpdateStatus(w, r)
		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}
	mux.HandleFunc("/api/admin/orders", adminRouteHandler)
	mux.HandleFunc("/api/admin/orders/", adminRouteHandler)

	mux.HandleFunc("/api/payments/ipn", paymentHandler.Notify)

	// Apply middleware in order: Recovery -> Logging -> Tracing -> CORS -> APIKeyAuth
	var h http.Handler = mux
	h = middleware.APIKeyAuth(apiKey, logger)(h)
	h = middleware.CORS(h)
	h = middleware.Tracing(serviceName)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.Recovery(logger)(h)

	return h
}
