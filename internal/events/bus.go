package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Handler receives published events. Handlers run on the publisher's
// goroutine and must not block.
type Handler func(*Event)

// Subscription identifies a registered handler.
type Subscription uint64

// Bus fans events out to subscribers by type.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType]map[Subscription]Handler
	next     Subscription
	log      zerolog.Logger
}

// NewBus creates an empty event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType]map[Subscription]Handler),
		log:      log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers handler for the given types. With no types it receives
// every event the engine emits.
func (b *Bus) Subscribe(handler Handler, types ...EventType) Subscription {
	if len(types) == 0 {
		types = AllTypes()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.next++
	id := b.next
	for _, t := range types {
		if b.handlers[t] == nil {
			b.handlers[t] = make(map[Subscription]Handler)
		}
		b.handlers[t][id] = handler
	}
	return id
}

// Unsubscribe removes a handler from every type it was registered for.
func (b *Bus) Unsubscribe(id Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for t, hs := range b.handlers {
		delete(hs, id)
		if len(hs) == 0 {
			delete(b.handlers, t)
		}
	}
}

// Subscribers returns the number of handlers registered for a type.
func (b *Bus) Subscribers(t EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[t])
}

// Emit publishes an event to every handler subscribed to its type.
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	b.mu.RLock()
	targets := make([]Handler, 0, len(b.handlers[eventType]))
	for _, h := range b.handlers[eventType] {
		targets = append(targets, h)
	}
	b.mu.RUnlock()

	for _, h := range targets {
		h(event)
	}

	b.log.Debug().
		Str("event_type", string(eventType)).
		Int("subscribers", len(targets)).
		Msg("Event published")
}
