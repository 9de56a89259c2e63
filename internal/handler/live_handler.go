package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"b-resto/internal/model"
	"b-resto/internal/realtime"
	"b-resto/internal/service"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxClientFrame = 512
)

// LiveSource opens live order subscriptions.
type LiveSource interface {
	SubscribeOrder(ctx context.Context, id uuid.UUID) (*realtime.Subscription[*model.Order], error)
	SubscribeOrders(ctx context.Context, filter model.OrderFilter) (*realtime.Subscription[[]model.Order], error)
}

type orderSnapshot struct {
	Type  string       `json:"type"`
	Order *model.Order `json:"order"`
}

type boardSnapshot struct {
	Type   string        `json:"type"`
	Orders []model.Order `json:"orders"`
}

type streamError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// LiveHandler streams order snapshots over WebSocket.
type LiveHandler struct {
	source     LiveSource
	board      service.BoardService
	pingPeriod time.Duration
	pongWait   time.Duration
	logger     zerolog.Logger
}

// NewLiveHandler creates a new live handler.
func NewLiveHandler(source LiveSource, board service.BoardService, logger zerolog.Logger) *LiveHandler {
	return &LiveHandler{
		source:     source,
		board:      board,
		pingPeriod: pingPeriod,
		pongWait:   pongWait,
		logger:     logger.With().Str("handler", "live").Logger(),
	}
}

// Order handles GET /api/orders/{id}/live.
func (h *LiveHandler) Order(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, h.logger)
		return
	}

	orderID, ok := parseOrderID(w, r.URL.Path, "/api/orders/", h.logger)
	if !ok {
		return
	}

	sub, err := h.source.SubscribeOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, model.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, model.ErrCodeOrderNotFound, "order not found", h.logger)
			return
		}
		h.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("failed to open order subscription")
		writeError(w, http.StatusInternalServerError, model.ErrCodeSubscription, "failed to open subscription", h.logger)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	logger := h.logger.With().Str("order_id", orderID.String()).Logger()
	logger.Debug().Msg("live order stream opened")
	stream(conn, sub, func(o *model.Order) interface{} {
		return orderSnapshot{Type: "snapshot", Order: o}
	}, h.pingPeriod, h.pongWait, logger)
}

// Board handles GET /api/admin/orders/live?date=YYYY-MM-DD&limit=N.
func (h *LiveHandler) Board(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, h.logger)
		return
	}

	filter, ok := boardFilter(w, r, h.board, h.logger)
	if !ok {
		return
	}

	sub, err := h.source.SubscribeOrders(r.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to open board subscription")
		writeError(w, http.StatusInternalServerError, model.ErrCodeSubscription, "failed to open subscription", h.logger)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	h.logger.Debug().Int("limit", filter.Limit).Msg("live board stream opened")
	stream(conn, sub, func(orders []model.Order) interface{} {
		if orders == nil {
			orders = []model.Order{}
		}
		return boardSnapshot{Type: "snapshot", Orders: orders}
	}, h.pingPeriod, h.pongWait, h.logger)
}

// stream writes every snapshot to conn until the client goes away or the
// subscription ends. A failed subscription is reported before closing.
func stream[T any](
	conn *websocket.Conn,
	sub *realtime.Subscription[T],
	message func(T) interface{},
	pingEvery, pongWait time.Duration,
	logger zerolog.Logger,
) {
	defer sub.Close()
	defer conn.Close()

	gone := make(chan struct{})
	go readUntilClosed(conn, pongWait, gone)

	ticker := time.NewTicker(pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			logger.Debug().Msg("live client disconnected")
			return

		case snapshot, ok := <-sub.Updates():
			if !ok {
				if err := sub.Err(); err != nil {
					logger.Warn().Err(err).Msg("live subscription failed")
					_ = writeFrame(conn, streamError{Type: "error", Error: err.Error()})
				}
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
			if err := writeFrame(conn, message(snapshot)); err != nil {
				logger.Debug().Err(err).Msg("live write failed")
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Debug().Err(err).Msg("live ping failed")
				return
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// readUntilClosed consumes client frames so pongs and close frames are
// processed. gone is closed when the connection stops being readable.
func readUntilClosed(conn *websocket.Conn, pongWait time.Duration, gone chan<- struct{}) {
	defer close(gone)

	conn.SetReadLimit(maxClientFrame)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
