// Package realtime pushes order changes to live subscribers.
//
// Writers publish a small Event after every committed change. The Hub turns
// events into fresh snapshots read from the order store, so subscribers always
// see full documents in commit order and never partial diffs.
package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrBrokerClosed is returned after Close.
var ErrBrokerClosed = errors.New("broker closed")

// EventKind names the write that produced an event.
type EventKind string

const (
	EventCreated EventKind = "created"
	EventStatus  EventKind = "status"
	EventPayment EventKind = "payment"
)

// Event announces that an order changed.
type Event struct {
	OrderID uuid.UUID `json:"orderId"`
	Kind    EventKind `json:"kind"`
	Version int64     `json:"version"`
	At      time.Time `json:"at"`
}

// Publisher is the write side of a broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Broker fans change events out to every subscriber.
type Broker interface {
	Publisher

	// Subscribe returns a channel of events and a function releasing it.
	Subscribe(ctx context.Context) (<-chan Event, func(), error)

	// Close releases the broker.
	Close() error
}

// LocalBroker is an in-process broker for a single API instance.
type LocalBroker struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Event
	nextID uint64
	buffer int
	closed bool
}

// NewLocalBroker creates an in-process broker. Each subscriber gets a buffer of
// the given size; when it is full further events for that subscriber are
// dropped, which is safe because any pending event already triggers a re-read.
func NewLocalBroker(buffer int) *LocalBroker {
	if buffer < 1 {
		buffer = 1
	}
	return &LocalBroker{
		subs:   make(map[uint64]chan Event),
		buffer: buffer,
	}
}

// Publish delivers the event to all current subscribers without blocking.
func (b *LocalBroker) Publish(_ context.Context, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBrokerClosed
	}
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe registers a new subscriber.
func (b *LocalBroker) Subscribe(ctx context.Context) (<-chan Event, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, nil, ErrBrokerClosed
	}

	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.buffer)
	b.subs[id] = ch

	var once sync.Once
	release := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		})
	}

	go func() {
		<-ctx.Done()
		release()
	}()

	return ch, release, nil
}

// Close unsubscribes everyone.
func (b *LocalBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	return nil
}
