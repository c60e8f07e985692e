package service

import (
	"sync"

	"virtnet/internal/domain"
)

// EventType defines the type of event
type EventType string

const (
	EventExpanded      EventType = "expanded"
	EventCollapsed     EventType = "collapsed"
	EventPopulated     EventType = "populated"
	EventRestored      EventType = "restored"
	EventReset         EventType = "reset"
	EventAdapterFailed EventType = "adapter_failed"
)

// Mutated reports whether the event changed the mirror contents
func (t EventType) Mutated() bool {
	switch t {
	case EventExpanded, EventCollapsed, EventPopulated:
		return true
	}
	return false
}

// Event represents an event that occurred in the system
type Event struct {
	Type EventType `json:"type"`
	Seed string    `json:"seed,omitempty"`
	Kind string    `json:"kind,omitempty"`
	// Elements are the elements added or removed by the operation.
	Elements []domain.Element `json:"elements,omitempty"`
	// Dropped counts edges discarded because an endpoint was missing.
	Dropped int   `json:"dropped,omitempty"`
	Err     error `json:"-"`

	// Snapshot is the state right after the operation, taken under the
	// same lock as the mutation.
	Snapshot *domain.Snapshot `json:"-"`
}

// Handler receives published events
type Handler func(Event)

// EventBus delivers events to subscribers synchronously, in subscription
// order. Publishers hold the write lock of the network service while
// publishing, so handlers observe mutations in the order they happened.
type EventBus struct {
	mu          sync.RWMutex
	subscribers []Handler
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make([]Handler, 0),
	}
}

// Subscribe adds a handler to receive events
func (eb *EventBus) Subscribe(h Handler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers = append(eb.subscribers, h)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	subs := eb.subscribers
	eb.mu.RUnlock()

	for _, h := range subs {
		h(event)
	}
}
