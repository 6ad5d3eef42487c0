// Package events provides in-process pub/sub decoupling the booking flow and
// notifier from the components that produce state changes.
package events

import (
	"sync"
	"time"
)

// Event types published by the service.
const (
	TypeBookingCreated   = "booking.created"
	TypeBookingCancelled = "booking.cancelled"
	TypeSettingsUpdated  = "settings.updated"
)

// SettingsChange is the payload of a settings.updated event. An empty Date
// means every day of the studio is affected.
type SettingsChange struct {
	StudioID string
	Date     string
}

// Event is a lightweight domain event.
type Event struct {
	Type      string
	StudioID  string
	Payload   any
	CreatedAt time.Time
}

// Handler reacts to an event.
type Handler func(event Event)

// Bus is an in-process publish/subscribe dispatcher. Handlers run
// synchronously on the publishing goroutine; subscribers decide their own
// concurrency model.
type Bus struct {
	subscribers map[string][]Handler
	mu          sync.RWMutex
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[string][]Handler)}
}

// Subscribe registers a handler for a given event type.
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type, stamping CreatedAt if the
// producer left it zero.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		handler(event)
	}
}
