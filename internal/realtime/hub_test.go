package realtime

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"b-resto/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryStore is an in-memory order store that publishes like the services do.
type memoryStore struct {
	mu      sync.Mutex
	orders  map[uuid.UUID]model.Order
	failGet error
	broker  Publisher
}

func newMemoryStore(broker Publisher) *memoryStore {
	return &memoryStore{orders: make(map[uuid.UUID]model.Order), broker: broker}
}

func (s *memoryStore) GetByID(_ context.Context, id uuid.UUID) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet != nil {
		return nil, s.failGet
	}
	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (s *memoryStore) List(_ context.Context, _ model.OrderFilter) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryStore) put(t *testing.T, o model.Order, kind EventKind) {
	t.Helper()
	s.mu.Lock()
	if prev, ok := s.orders[o.ID]; ok {
		o.Version = prev.Version + 1
	} else {
		o.Version = 1
	}
	s.orders[o.ID] = o
	s.mu.Unlock()
	require.NoError(t, s.broker.Publish(context.Background(), Event{OrderID: o.ID, Kind: kind, Version: o.Version}))
}

func (s *memoryStore) setStatus(t *testing.T, id uuid.UUID, status model.OrderStatus) {
	t.Helper()
	s.mu.Lock()
	o := s.orders[id]
	s.mu.Unlock()
	o.Status = status
	s.put(t, o, EventStatus)
}

func (s *memoryStore) fail(err error) {
	s.mu.Lock()
	s.failGet = err
	s.mu.Unlock()
}

func sampleOrder(createdAt time.Time) model.Order {
	return model.Order{
		ID:            uuid.New(),
		Status:        model.StatusPending,
		PaymentStatus: model.PaymentUnpaid,
		CustomerName:  "Awa Diop",
		PaymentMethod: model.PaymentCash,
		CreatedAt:     createdAt,
	}
}

func next[T any](t *testing.T, sub *Subscription[T]) T {
	t.Helper()
	select {
	case v, ok := <-sub.Updates():
		require.True(t, ok, "subscription ended: %v", sub.Err())
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		var zero T
		return zero
	}
}

func assertQuiet[T any](t *testing.T, sub *Subscription[T]) {
	t.Helper()
	select {
	case v, ok := <-sub.Updates():
		if ok {
			t.Fatalf("unexpected snapshot: %+v", v)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func startHub(t *testing.T) (*Hub, *memoryStore, context.Context) {
	t.Helper()
	broker := NewLocalBroker(16)
	t.Cleanup(func() { _ = broker.Close() })

	store := newMemoryStore(broker)
	hub := NewHub(broker, store, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, hub.Start(ctx))
	return hub, store, ctx
}

func TestHub_SubscribeOrder_SnapshotThenOneUpdatePerChange(t *testing.T) {
	hub, store, ctx := startHub(t)

	order := sampleOrder(time.Now())
	store.put(t, order, EventCreated)

	sub, err := hub.SubscribeOrder(ctx, order.ID)
	require.NoError(t, err)
	defer sub.Close()

	first := next(t, sub)
	assert.Equal(t, model.StatusPending, first.Status)

	store.setStatus(t, order.ID, model.StatusPreparing)
	second := next(t, sub)
	assert.Equal(t, model.StatusPreparing, second.Status)
	assert.Greater(t, second.Version, first.Version)

	assertQuiet(t, sub)
}

func TestHub_SubscribeOrder_IgnoresOtherOrders(t *testing.T) {
	hub, store, ctx := startHub(t)

	watched := sampleOrder(time.Now())
	other := sampleOrder(time.Now())
	store.put(t, watched, EventCreated)
	store.put(t, other, EventCreated)

	sub, err := hub.SubscribeOrder(ctx, watched.ID)
	require.NoError(t, err)
	defer sub.Close()
	next(t, sub)

	store.setStatus(t, other.ID, model.StatusReady)
	assertQuiet(t, sub)
}

func TestHub_SubscribeOrder_NotFound(t *testing.T) {
	hub, _, ctx := startHub(t)

	sub, err := hub.SubscribeOrder(ctx, uuid.New())
	assert.Nil(t, sub)
	assert.ErrorIs(t, err, model.ErrOrderNotFound)
	assert.Equal(t, 0, hub.Len())
}

func TestHub_SubscribeOrder_DuplicateEventSuppressed(t *testing.T) {
	hub, store, ctx := startHub(t)

	order := sampleOrder(time.Now())
	store.put(t, order, EventCreated)

	sub, err := hub.SubscribeOrder(ctx, order.ID)
	require.NoError(t, err)
	defer sub.Close()
	next(t, sub)

	// An event without a new version re-reads the same snapshot.
	require.NoError(t, store.broker.Publish(ctx, Event{OrderID: order.ID, Kind: EventStatus, Version: 1}))
	assertQuiet(t, sub)
}

func TestHub_SubscribeOrder_ReadFailureEndsSubscription(t *testing.T) {
	hub, store, ctx := startHub(t)

	order := sampleOrder(time.Now())
	store.put(t, order, EventCreated)

	sub, err := hub.SubscribeOrder(ctx, order.ID)
	require.NoError(t, err)
	next(t, sub)

	store.fail(errors.New("connection reset"))
	require.NoError(t, store.broker.Publish(ctx, Event{OrderID: order.ID, Kind: EventStatus, Version: 2}))

	select {
	case _, ok := <-sub.Updates():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not end")
	}

	var serr *model.SubscriptionError
	require.True(t, errors.As(sub.Err(), &serr))
	assert.Contains(t, serr.Error(), "connection reset")
	sub.Close()
}

func TestHub_SubscribeOrders_TracksSet(t *testing.T) {
	hub, store, ctx := startHub(t)

	now := time.Now()
	older := sampleOrder(now.Add(-time.Minute))
	store.put(t, older, EventCreated)

	sub, err := hub.SubscribeOrders(ctx, model.OrderFilter{Limit: 50})
	require.NoError(t, err)
	defer sub.Close()

	initial := next(t, sub)
	require.Len(t, initial, 1)

	newer := sampleOrder(now)
	store.put(t, newer, EventCreated)
	afterCreate := next(t, sub)
	require.Len(t, afterCreate, 2)
	assert.Equal(t, newer.ID, afterCreate[0].ID)

	store.setStatus(t, older.ID, model.StatusReady)
	afterStatus := next(t, sub)
	require.Len(t, afterStatus, 2)
	assert.Equal(t, model.StatusReady, afterStatus[1].Status)

	assertQuiet(t, sub)
}

func TestHub_CloseStopsEmissions(t *testing.T) {
	hub, store, ctx := startHub(t)

	order := sampleOrder(time.Now())
	store.put(t, order, EventCreated)

	sub, err := hub.SubscribeOrder(ctx, order.ID)
	require.NoError(t, err)
	next(t, sub)

	sub.Close()
	assert.NoError(t, sub.Err())
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 10*time.Millisecond)

	store.setStatus(t, order.ID, model.StatusReady)
	_, ok := <-sub.Updates()
	assert.False(t, ok)
}

func TestHub_BrokerClosedFailsSubscriptions(t *testing.T) {
	broker := NewLocalBroker(4)
	store := newMemoryStore(broker)
	hub := NewHub(broker, store, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hub.Start(ctx))

	order := sampleOrder(time.Now())
	store.put(t, order, EventCreated)

	sub, err := hub.SubscribeOrder(ctx, order.ID)
	require.NoError(t, err)
	next(t, sub)

	require.NoError(t, broker.Close())

	select {
	case _, ok := <-sub.Updates():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not end")
	}
	var serr *model.SubscriptionError
	assert.True(t, errors.As(sub.Err(), &serr))
}
