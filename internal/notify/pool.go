package notify

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// ChannelPool shares a fixed set of AMQP channels over one connection.
type ChannelPool struct {
	conn     *amqp.Connection
	channels chan *amqp.Channel
	queue    string
	logger   zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// NewChannelPool dials url and opens size channels, each declaring queue.
func NewChannelPool(url, queue string, size int, logger zerolog.Logger) (*ChannelPool, error) {
	if size < 1 {
		size = 1
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP broker: %w", err)
	}

	pool := &ChannelPool{
		conn:     conn,
		channels: make(chan *amqp.Channel, size),
		queue:    queue,
		logger:   logger.With().Str("component", "amqp-pool").Str("queue", queue).Logger(),
	}

	for i := 0; i < size; i++ {
		ch, err := pool.openChannel()
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to open channel %d: %w", i, err)
		}
		pool.channels <- ch
	}

	pool.logger.Info().Int("size", size).Msg("AMQP channel pool ready")
	return pool, nil
}

func (p *ChannelPool) openChannel() (*amqp.Channel, error) {
	ch, err := p.conn.Channel()
	if err != nil {
		return nil, err
	}

	if _, err := ch.QueueDeclare(
		p.queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return ch, nil
}

// Get takes a channel from the pool, waiting until one is free or ctx ends.
// Closed channels are replaced.
func (p *ChannelPool) Get(ctx context.Context) (*amqp.Channel, error) {
	select {
	case ch, ok := <-p.channels:
		if !ok {
			return nil, fmt.Errorf("channel pool closed")
		}
		if ch.IsClosed() {
			fresh, err := p.openChannel()
			if err != nil {
				// Keep the slot so the pool does not shrink.
				p.Put(ch)
				return nil, fmt.Errorf("failed to reopen channel: %w", err)
			}
			return fresh, nil
		}
		return ch, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Put returns a channel taken with Get.
func (p *ChannelPool) Put(ch *amqp.Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		_ = ch.Close()
		return
	}
	select {
	case p.channels <- ch:
	default:
		_ = ch.Close()
	}
}

// Close closes every pooled channel and the connection.
func (p *ChannelPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	close(p.channels)
	for ch := range p.channels {
		_ = ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.logger.Info().Msg("AMQP channel pool closed")
}
