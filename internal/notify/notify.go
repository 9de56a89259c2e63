// Package notify tells the kitchen about new orders.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"b-resto/internal/model"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Notifier announces placed orders to downstream consumers.
type Notifier interface {
	OrderPlaced(ctx context.Context, order *model.Order) error
}

// OrderPlacedMessage is the body published for every new order.
type OrderPlacedMessage struct {
	OrderID       uuid.UUID           `json:"orderId"`
	CustomerName  string              `json:"customerName"`
	Total         decimal.Decimal     `json:"total"`
	PaymentMethod model.PaymentMethod `json:"paymentMethod"`
	ItemCount     int                 `json:"itemCount"`
	CreatedAt     time.Time           `json:"createdAt"`
}

// NewOrderPlacedMessage summarises an order for the kitchen queue.
func NewOrderPlacedMessage(order *model.Order) OrderPlacedMessage {
	count := 0
	for _, item := range order.Items {
		count += item.Quantity
	}
	return OrderPlacedMessage{
		OrderID:       order.ID,
		CustomerName:  order.CustomerName,
		Total:         order.Total,
		PaymentMethod: order.PaymentMethod,
		ItemCount:     count,
		CreatedAt:     order.CreatedAt,
	}
}

type amqpNotifier struct {
	pool    *ChannelPool
	queue   string
	timeout time.Duration
	logger  zerolog.Logger
}

// NewAMQPNotifier publishes persistent JSON messages to queue through pool.
func NewAMQPNotifier(pool *ChannelPool, queue string, logger zerolog.Logger) Notifier {
	return &amqpNotifier{
		pool:    pool,
		queue:   queue,
		timeout: 5 * time.Second,
		logger:  logger.With().Str("component", "order-notifier").Logger(),
	}
}

func (n *amqpNotifier) OrderPlaced(ctx context.Context, order *model.Order) error {
	body, err := json.Marshal(NewOrderPlacedMessage(order))
	if err != nil {
		return fmt.Errorf("failed to encode order message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	ch, err := n.pool.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to get AMQP channel: %w", err)
	}
	defer n.pool.Put(ch)

	err = ch.PublishWithContext(ctx,
		"",      // default exchange
		n.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    order.ID.String(),
			Timestamp:    order.CreatedAt,
			Body:         body,
		})
	if err != nil {
		return fmt.Errorf("failed to publish order %s: %w", order.ID, err)
	}

	n.logger.Info().Str("order_id", order.ID.String()).Msg("order announced")
	return nil
}

type nopNotifier struct {
	logger zerolog.Logger
}

// NewNopNotifier returns a Notifier that only logs, used when no broker is configured.
func NewNopNotifier(logger zerolog.Logger) Notifier {
	return &nopNotifier{logger: logger.With().Str("component", "order-notifier").Logger()}
}

func (n *nopNotifier) OrderPlaced(_ context.Context, order *model.Order) error {
	n.logger.Debug().Str("order_id", order.ID.String()).Msg("order notification skipped, no broker configured")
	return nil
}
