package events

import (
	"context"
	"sync"
)

// Event names published on the dose bus.
const (
	DoseUpdated        = "dose.updated"
	MedicationChanged  = "medication.changed"
	NotificationsReset = "notifications.cleared"
)

// Event is a cross-surface "data changed" signal. Open views subscribe and
// re-fetch instead of trusting their own stale state.
type Event struct {
	Name   string            `json:"name"`
	UserID string            `json:"user_id"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Bus is the publish/subscribe primitive the engine broadcasts on. A single
// process uses the in-memory implementation; multi-instance deployments use
// the Redis one.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	// Subscribe returns a channel of events and a cancel function that
	// releases the subscription. The channel is closed on cancel.
	Subscribe() (<-chan Event, func())
}

// MemoryBus is an in-process Bus backed by a subscriber map.
type MemoryBus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[int]chan Event)}
}

// Publish fans the event out to every subscriber. Slow subscribers drop
// events instead of blocking the publisher.
func (b *MemoryBus) Publish(_ context.Context, event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, 16)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}
