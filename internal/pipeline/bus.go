package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/nightlybuilder/internal/logfields"
)

// EventStore defines the interface for persisting events.
// This is a subset of eventstore.Store.
type EventStore interface {
	Append(ctx context.Context, runID, eventType string, payload []byte, metadata map[string]string) error
}

// Handler processes an Event; return error to signal failure.
type Handler func(Event) error

// Bus is a simple synchronous pub/sub event bus.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Handler
	eventStore  EventStore // optional event store for persistence
}

func NewBus() *Bus { return &Bus{subscribers: map[string][]Handler{}} }

// NewBusWithEventStore creates a bus that persists events to the store.
func NewBusWithEventStore(store EventStore) *Bus {
	return &Bus{
		subscribers: map[string][]Handler{},
		eventStore:  store,
	}
}

// Subscribe registers a handler for a given event name.
func (b *Bus) Subscribe(event string, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.subscribers[event] = append(b.subscribers[event], h)
	b.mu.Unlock()
}

// Publish persists e when a store is configured, then delivers it to all
// handlers synchronously. A persistence failure is logged and does not stop
// delivery; the first handler error is returned.
func (b *Bus) Publish(ctx context.Context, e Event) error {
	if b == nil {
		return nil
	}
	if b.eventStore != nil {
		if pe, ok := e.(persistable); ok {
			if err := b.eventStore.Append(ctx, pe.RunID(), e.Name(), pe.Payload(), pe.Metadata()); err != nil {
				slog.Warn("Failed to persist event",
					slog.String("event", e.Name()),
					logfields.RunID(pe.RunID()),
					logfields.Error(err))
			}
		}
	}

	b.mu.RLock()
	hs := append([]Handler(nil), b.subscribers[e.Name()]...)
	b.mu.RUnlock()
	for _, h := range hs {
		if err := h(e); err != nil {
			return err
		}
	}
	return nil
}

type persistable interface {
	RunID() string
	Payload() []byte
	Metadata() map[string]string
}
