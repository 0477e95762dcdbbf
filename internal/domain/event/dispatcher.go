package event

import (
	"errors"
	"sync"
)

// EventHandler handles domain events.
// Handlers may be called from several workers at once.
type EventHandler interface {
	// Handle processes the event
	Handle(event DomainEvent) error
	// HandledEvents returns the event names this handler handles
	HandledEvents() []string
}

// EventDispatcher dispatches domain events to registered handlers
type EventDispatcher interface {
	// Dispatch sends an event to all registered handlers
	Dispatch(event DomainEvent) error
	// Subscribe registers a handler for events
	Subscribe(handler EventHandler)
}

// InMemoryDispatcher delivers events synchronously on the caller's goroutine
type InMemoryDispatcher struct {
	handlers map[string][]EventHandler
	mu       sync.RWMutex
}

// NewInMemoryDispatcher creates a new InMemoryDispatcher
func NewInMemoryDispatcher() *InMemoryDispatcher {
	return &InMemoryDispatcher{
		handlers: make(map[string][]EventHandler),
	}
}

// Dispatch sends an event to all registered handlers.
// Every handler runs even if an earlier one fails; errors are joined.
func (d *InMemoryDispatcher) Dispatch(event DomainEvent) error {
	d.mu.RLock()
	handlers := make([]EventHandler, 0, len(d.handlers[event.EventName()])+len(d.handlers["*"]))
	handlers = append(handlers, d.handlers[event.EventName()]...)
	handlers = append(handlers, d.handlers["*"]...)
	d.mu.RUnlock()

	var errs []error
	for _, handler := range handlers {
		if err := handler.Handle(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Subscribe registers a handler for events
func (d *InMemoryDispatcher) Subscribe(handler EventHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, eventName := range handler.HandledEvents() {
		d.handlers[eventName] = append(d.handlers[eventName], handler)
	}
}

// NullDispatcher is a no-op dispatcher for when events are not needed
type NullDispatcher struct{}

// Dispatch does nothing
func (NullDispatcher) Dispatch(event DomainEvent) error { return nil }

// Subscribe does nothing
func (NullDispatcher) Subscribe(handler EventHandler) {}
