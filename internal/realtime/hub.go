package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"b-resto/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Store is the read side re-queried after every change.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Order, error)
	List(ctx context.Context, filter model.OrderFilter) ([]model.Order, error)
}

type watcher interface {
	wants(Event) bool
	wake()
	fail(error)
}

// Hub turns broker events into snapshots for live subscriptions.
type Hub struct {
	broker Broker
	store  Store
	logger zerolog.Logger

	mu     sync.RWMutex
	subs   map[uint64]watcher
	nextID uint64
}

// NewHub creates a hub. Call Start before subscribing.
func NewHub(broker Broker, store Store, logger zerolog.Logger) *Hub {
	return &Hub{
		broker: broker,
		store:  store,
		logger: logger.With().Str("component", "subscription-hub").Logger(),
		subs:   make(map[uint64]watcher),
	}
}

// Start subscribes to the broker and dispatches events until ctx is done.
// If the broker feed ends first, every open subscription fails.
func (h *Hub) Start(ctx context.Context) error {
	events, release, err := h.broker.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to change events: %w", err)
	}

	go func() {
		defer release()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					if ctx.Err() == nil {
						h.logger.Error().Msg("change feed closed, failing open subscriptions")
						h.failAll(errors.New("change feed closed"))
					}
					return
				}
				h.dispatch(event)
			}
		}
	}()

	h.logger.Info().Msg("subscription hub started")
	return nil
}

// Len returns the number of open subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// SubscribeOrder watches a single order. The current snapshot is emitted
// immediately and again after every change to that order.
func (h *Hub) SubscribeOrder(ctx context.Context, id uuid.UUID) (*Subscription[*model.Order], error) {
	fetch := func(ctx context.Context) (*model.Order, error) {
		order, err := h.store.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if order == nil {
			return nil, model.ErrOrderNotFound
		}
		return order, nil
	}

	return subscribe(ctx, h, "order "+id.String(),
		func(e Event) bool { return e.OrderID == id },
		fetch,
		func(a, b *model.Order) bool { return a.Version == b.Version },
	)
}

// SubscribeOrders watches the set of orders selected by filter, re-reading
// the whole set after any change.
func (h *Hub) SubscribeOrders(ctx context.Context, filter model.OrderFilter) (*Subscription[[]model.Order], error) {
	fetch := func(ctx context.Context) ([]model.Order, error) {
		return h.store.List(ctx, filter)
	}

	return subscribe(ctx, h, "order board",
		func(Event) bool { return true },
		fetch,
		sameOrderSet,
	)
}

func (h *Hub) add(w watcher) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.subs[id] = w
	return id
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

func (h *Hub) dispatch(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, w := range h.subs {
		if w.wants(event) {
			w.wake()
		}
	}
}

func (h *Hub) failAll(err error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, w := range h.subs {
		w.fail(err)
	}
}

// Subscription delivers snapshots of type T until closed or failed.
type Subscription[T any] struct {
	id      uint64
	hub     *Hub
	target  string
	updates chan T
	signal  chan struct{}
	match   func(Event) bool
	fetch   func(context.Context) (T, error)
	same    func(a, b T) bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

func subscribe[T any](
	ctx context.Context,
	h *Hub,
	target string,
	match func(Event) bool,
	fetch func(context.Context) (T, error),
	same func(a, b T) bool,
) (*Subscription[T], error) {
	subCtx, cancel := context.WithCancel(ctx)
	s := &Subscription[T]{
		hub:     h,
		target:  target,
		updates: make(chan T),
		signal:  make(chan struct{}, 1),
		match:   match,
		fetch:   fetch,
		same:    same,
		ctx:     subCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	// Register before the first read so no change is missed in between.
	s.id = h.add(s)

	initial, err := fetch(subCtx)
	if err != nil {
		h.remove(s.id)
		cancel()
		return nil, err
	}

	go s.run(initial)

	h.logger.Debug().Str("target", target).Msg("subscription opened")
	return s, nil
}

// Updates emits snapshots in commit order. It is closed when the
// subscription ends; check Err afterwards.
func (s *Subscription[T]) Updates() <-chan T {
	return s.updates
}

// Err returns the failure that ended the subscription, or nil after Close.
func (s *Subscription[T]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops further emissions and waits for the subscription to end.
func (s *Subscription[T]) Close() {
	s.cancel()
	<-s.done
}

func (s *Subscription[T]) wants(e Event) bool {
	return s.match(e)
}

func (s *Subscription[T]) wake() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription[T]) fail(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = &model.SubscriptionError{Target: s.target, Err: err}
	}
	s.mu.Unlock()
	s.cancel()
}

func (s *Subscription[T]) run(initial T) {
	defer close(s.done)
	defer close(s.updates)
	defer s.hub.remove(s.id)

	last := initial
	if !s.emit(initial) {
		return
	}

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.signal:
		}

		snapshot, err := s.fetch(s.ctx)
		if err != nil {
			if s.ctx.Err() == nil {
				s.hub.logger.Warn().Err(err).Str("target", s.target).Msg("subscription read failed")
				s.fail(err)
			}
			return
		}

		if s.same(last, snapshot) {
			continue
		}
		if !s.emit(snapshot) {
			return
		}
		last = snapshot
	}
}

func (s *Subscription[T]) emit(v T) bool {
	select {
	case s.updates <- v:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func sameOrderSet(a, b []model.Order) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Version != b[i].Version {
			return false
		}
	}
	return true
}
