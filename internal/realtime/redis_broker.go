package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// RedisBroker shares change events between API instances over Redis pub/sub.
type RedisBroker struct {
	client  *redis.Client
	channel string
	logger  zerolog.Logger
}

// NewRedisBroker connects to redisURL and verifies the connection.
func NewRedisBroker(ctx context.Context, redisURL, channel string, logger zerolog.Logger) (*RedisBroker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisBrokerFromClient(client, channel, logger), nil
}

// NewRedisBrokerFromClient wraps an existing client.
func NewRedisBrokerFromClient(client *redis.Client, channel string, logger zerolog.Logger) *RedisBroker {
	logger = logger.With().Str("component", "redis-broker").Str("channel", channel).Logger()
	logger.Info().Msg("Redis change broker initialised")

	return &RedisBroker{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

// Publish sends the event to every instance subscribed to the channel.
func (b *RedisBroker) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode change event: %w", err)
	}

	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		b.logger.Error().Err(err).Str("order_id", event.OrderID.String()).Msg("failed to publish change event")
		return fmt.Errorf("failed to publish change event: %w", err)
	}

	b.logger.Debug().
		Str("order_id", event.OrderID.String()).
		Str("kind", string(event.Kind)).
		Msg("change event published")
	return nil
}

// Subscribe listens on the channel until ctx is done or the release function is called.
func (b *RedisBroker) Subscribe(ctx context.Context) (<-chan Event, func(), error) {
	subCtx, cancel := context.WithCancel(ctx)

	pubsub := b.client.Subscribe(subCtx, b.channel)

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(subCtx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	events := make(chan Event, 64)

	go func() {
		defer func() {
			_ = pubsub.Close()
			close(events)
		}()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.logger.Warn().Err(err).Msg("ignoring malformed change event")
					continue
				}

				select {
				case events <- event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return events, cancel, nil
}

// Close closes the Redis connection.
func (b *RedisBroker) Close() error {
	return b.client.Close()
}
