package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBusDeliversToAllSubscribers(t *testing.T) {
	bus := NewMemoryBus()

	first, cancelFirst := bus.Subscribe()
	second, cancelSecond := bus.Subscribe()
	defer cancelFirst()
	defer cancelSecond()

	event := Event{Name: DoseUpdated, UserID: "u1", Fields: map[string]string{"date": "2026-08-31"}}
	require.NoError(t, bus.Publish(context.Background(), event))

	for _, ch := range []<-chan Event{first, second} {
		select {
		case got := <-ch:
			assert.Equal(t, DoseUpdated, got.Name)
			assert.Equal(t, "u1", got.UserID)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestMemoryBusCancelStopsDelivery(t *testing.T) {
	bus := NewMemoryBus()

	ch, cancel := bus.Subscribe()
	cancel()

	// Channel is closed after cancel.
	_, open := <-ch
	assert.False(t, open)

	// Cancel is idempotent and publishing afterwards does not panic.
	cancel()
	require.NoError(t, bus.Publish(context.Background(), Event{Name: DoseUpdated}))
}

func TestMemoryBusDoesNotBlockOnSlowSubscriber(t *testing.T) {
	bus := NewMemoryBus()

	_, cancel := bus.Subscribe()
	defer cancel()

	// Fill well past the subscriber buffer; Publish must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			_ = bus.Publish(context.Background(), Event{Name: DoseUpdated})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on slow subscriber")
	}
}
