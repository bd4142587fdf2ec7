// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package events

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEventBus_Publish(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	event := Event{
		Type:    EventProjectOpened,
		Payload: map[string]interface{}{"path": "/home/alice/web"},
	}

	err := bus.Publish(context.Background(), event)
	assert.NoError(t, err)
}

func TestMemoryEventBus_Publish_AssignsID(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	var receivedEvent Event
	_, err := bus.Subscribe("*", func(ctx context.Context, e Event) error {
		receivedEvent = e
		return nil
	})
	require.NoError(t, err)

	err = bus.Publish(context.Background(), Event{Type: EventProjectOpened})
	require.NoError(t, err)

	assert.NotEmpty(t, receivedEvent.ID)
	assert.False(t, receivedEvent.Timestamp.IsZero())
}

func TestMemoryEventBus_Subscribe(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	received := make(chan Event, 1)

	_, err := bus.Subscribe(EventProjectRunning, func(ctx context.Context, e Event) error {
		received <- e
		return nil
	})
	require.NoError(t, err)

	event := Event{Type: EventProjectRunning, Payload: map[string]interface{}{"port": 6970}}
	err = bus.Publish(context.Background(), event)
	require.NoError(t, err)

	select {
	case e := <-received:
		assert.Equal(t, EventProjectRunning, e.Type)
		assert.Equal(t, 6970, e.Payload["port"])
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestMemoryEventBus_Subscribe_PatternMatching(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	var count atomic.Int32
	_, err := bus.Subscribe("project.*", func(ctx context.Context, e Event) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), Event{Type: EventProjectOpened}))
	require.NoError(t, bus.Publish(context.Background(), Event{Type: EventProjectClosed}))
	require.NoError(t, bus.Publish(context.Background(), Event{Type: EventTerminalCreated}))

	assert.Equal(t, int32(2), count.Load())
}

func TestMemoryEventBus_SubscribeAsync(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	received := make(chan Event, 10)
	_, err := bus.SubscribeAsync("*", func(ctx context.Context, e Event) error {
		received <- e
		return nil
	}, 10)
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), Event{Type: EventProjectOpened}))

	select {
	case e := <-received:
		assert.Equal(t, EventProjectOpened, e.Type)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for async event")
	}
}

func TestMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	var count atomic.Int32
	id, err := bus.Subscribe("*", func(ctx context.Context, e Event) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), Event{Type: EventProjectOpened}))
	require.NoError(t, bus.Unsubscribe(id))
	require.NoError(t, bus.Publish(context.Background(), Event{Type: EventProjectOpened}))

	assert.Equal(t, int32(1), count.Load())
}

func TestMemoryEventBus_Unsubscribe_NotFound(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	err := bus.Unsubscribe(SubscriptionID("nonexistent"))
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
}

func TestMemoryEventBus_History(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(context.Background(), Event{
			Type:    EventProjectOpened,
			Project: fmt.Sprintf("proj%d", i),
		}))
	}

	history, err := bus.History(EventFilter{Types: []string{EventProjectOpened}})
	require.NoError(t, err)
	assert.Len(t, history, 5)

	history, err = bus.History(EventFilter{Project: "proj2"})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "proj2", history[0].Project)
}

func TestMemoryEventBus_HandlerPanicRecovered(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	_, err := bus.Subscribe("*", func(ctx context.Context, e Event) error {
		panic("handler panic")
	})
	require.NoError(t, err)

	// A panicking handler must not take down the publisher
	assert.NoError(t, bus.Publish(context.Background(), Event{Type: EventProjectOpened}))
}

func TestMemoryEventBus_ClosedBus(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	require.NoError(t, bus.Close())

	err := bus.Publish(context.Background(), Event{Type: EventProjectOpened})
	assert.ErrorIs(t, err, ErrBusClosed)

	_, err = bus.Subscribe("*", func(ctx context.Context, e Event) error { return nil })
	assert.ErrorIs(t, err, ErrBusClosed)

	// Double close is fine
	assert.NoError(t, bus.Close())
}

func TestMemoryEventBus_ConcurrentPublish(t *testing.T) {
	bus := NewMemoryEventBus(MemoryBusConfig{})
	defer bus.Close()

	var count atomic.Int32
	_, err := bus.Subscribe("*", func(ctx context.Context, e Event) error {
		count.Add(1)
		return nil
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				bus.Publish(context.Background(), Event{Type: EventProjectOpened})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(200), count.Load())
}
