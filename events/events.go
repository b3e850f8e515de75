// Package events carries quick-view signals to collaborators: in-process
// subscribers and, optionally, a signed webhook endpoint.
package events

import (
	"sync"
	"time"
)

// Event types.
const (
	// ContentLoaded fires after the modal content region has been filled,
	// so galleries and variant pickers can initialise against it.
	ContentLoaded = "quick-view-content-loaded"

	// CartUpdated means the session's cart changed; open modals close.
	CartUpdated = "cart-updated"
)

// Event is the payload delivered to subscribers and webhook endpoints.
type Event struct {
	Type       string `json:"type"`
	Session    string `json:"session,omitempty"`
	ProductURL string `json:"product_url,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// New stamps an event with the current time.
func New(typ, session, productURL string) Event {
	return Event{
		Type:       typ,
		Session:    session,
		ProductURL: productURL,
		Timestamp:  time.Now().UnixMilli(),
	}
}

// Publisher is the narrow interface the controller depends on.
type Publisher interface {
	Publish(Event)
}

// Handler receives published events. Handlers run synchronously on the
// publishing goroutine and must not block.
type Handler func(Event)

// Bus fans events out to subscribers. The zero value is ready to use.
type Bus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]Handler
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[int]Handler)}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers == nil {
		b.handlers = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.handlers[id] = h

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

// Publish delivers e to every subscriber.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}
