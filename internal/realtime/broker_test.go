package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case e, ok := <-events:
		require.True(t, ok, "event channel closed")
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestLocalBroker_PublishSubscribe(t *testing.T) {
	broker := NewLocalBroker(8)
	defer broker.Close()

	ctx := context.Background()
	first, releaseFirst, err := broker.Subscribe(ctx)
	require.NoError(t, err)
	defer releaseFirst()
	second, releaseSecond, err := broker.Subscribe(ctx)
	require.NoError(t, err)
	defer releaseSecond()

	event := Event{OrderID: uuid.New(), Kind: EventStatus, Version: 3, At: time.Now()}
	require.NoError(t, broker.Publish(ctx, event))

	assert.Equal(t, event.OrderID, receive(t, first).OrderID)
	assert.Equal(t, event.Version, receive(t, second).Version)
}

func TestLocalBroker_ReleaseClosesChannel(t *testing.T) {
	broker := NewLocalBroker(1)
	defer broker.Close()

	events, release, err := broker.Subscribe(context.Background())
	require.NoError(t, err)

	release()
	release()

	_, ok := <-events
	assert.False(t, ok)
	assert.NoError(t, broker.Publish(context.Background(), Event{OrderID: uuid.New()}))
}

func TestLocalBroker_ContextCancelReleases(t *testing.T) {
	broker := NewLocalBroker(1)
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	events, _, err := broker.Subscribe(ctx)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not released on cancel")
	}
}

func TestLocalBroker_FullBufferDoesNotBlock(t *testing.T) {
	broker := NewLocalBroker(1)
	defer broker.Close()

	events, release, err := broker.Subscribe(context.Background())
	require.NoError(t, err)
	defer release()

	for i := 0; i < 5; i++ {
		require.NoError(t, broker.Publish(context.Background(), Event{OrderID: uuid.New(), Version: int64(i)}))
	}

	assert.Equal(t, int64(0), receive(t, events).Version)
	assert.Len(t, events, 0)
}

func TestLocalBroker_Closed(t *testing.T) {
	broker := NewLocalBroker(1)
	events, _, err := broker.Subscribe(context.Background())
	require.NoError(t, err)

	require.NoError(t, broker.Close())
	require.NoError(t, broker.Close())

	_, ok := <-events
	assert.False(t, ok)

	assert.ErrorIs(t, broker.Publish(context.Background(), Event{}), ErrBrokerClosed)
	_, _, err = broker.Subscribe(context.Background())
	assert.ErrorIs(t, err, ErrBrokerClosed)
}

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func TestRedisBroker_PublishSubscribe(t *testing.T) {
	_, client := setupMiniredis(t)
	broker := NewRedisBrokerFromClient(client, "test:orders", zerolog.Nop())
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, release, err := broker.Subscribe(ctx)
	require.NoError(t, err)
	defer release()

	event := Event{
		OrderID: uuid.New(),
		Kind:    EventPayment,
		Version: 7,
		At:      time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, broker.Publish(ctx, event))

	got := receive(t, events)
	assert.Equal(t, event.OrderID, got.OrderID)
	assert.Equal(t, EventPayment, got.Kind)
	assert.Equal(t, int64(7), got.Version)
	assert.True(t, event.At.Equal(got.At))
}

func TestRedisBroker_IgnoresMalformedPayload(t *testing.T) {
	mr, client := setupMiniredis(t)
	broker := NewRedisBrokerFromClient(client, "test:orders", zerolog.Nop())
	defer broker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, release, err := broker.Subscribe(ctx)
	require.NoError(t, err)
	defer release()

	mr.Publish("test:orders", "not json")
	valid := Event{OrderID: uuid.New(), Kind: EventCreated, Version: 1}
	require.NoError(t, broker.Publish(ctx, valid))

	assert.Equal(t, valid.OrderID, receive(t, events).OrderID)
}

func TestRedisBroker_ReleaseClosesChannel(t *testing.T) {
	_, client := setupMiniredis(t)
	broker := NewRedisBrokerFromClient(client, "test:orders", zerolog.Nop())
	defer broker.Close()

	events, release, err := broker.Subscribe(context.Background())
	require.NoError(t, err)
	release()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after release")
	}
}

func TestNewRedisBroker_InvalidURL(t *testing.T) {
	_, err := NewRedisBroker(context.Background(), "://nope", "test", zerolog.Nop())
	assert.Error(t, err)
}

func TestNewRedisBroker_Connects(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	broker, err := NewRedisBroker(context.Background(), "redis://"+mr.Addr(), "test", zerolog.Nop())
	require.NoError(t, err)
	assert.NoError(t, broker.Close())
}
