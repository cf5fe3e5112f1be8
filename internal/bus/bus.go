// Package bus is the in-process notification channel between the
// conversation core and the independently initialized UI modules. Fan-out
// is synchronous and per-topic delivery follows subscription order, so a
// login handler that resets the quota runs before a later subscriber
// reads the fresh counter.
package bus

import "sync"

// Topic names consumed and emitted by the core.
const (
	TopicUserLoggedIn  = "user-logged-in"
	TopicUserLoggedOut = "user-logged-out"
	TopicThemeChanged  = "theme-changed"
)

// Event carries the topic plus an optional payload (profile, theme name).
type Event struct {
	Topic   string
	Payload string
}

type Handler func(Event)

// Bus is a minimal synchronous publish/subscribe hub. Handlers must not
// block; there is no queue.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func New() *Bus {
	return &Bus{handlers: make(map[string][]Handler)}
}

// Subscribe registers a handler for a topic. There is no unsubscribe:
// subscribers live for the process lifetime, matching the UI modules that
// register once at startup.
func (b *Bus) Subscribe(topic string, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], h)
}

// Publish delivers the event to every subscriber of its topic, in
// subscription order, on the caller's goroutine.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers[evt.Topic]))
	copy(handlers, b.handlers[evt.Topic])
	b.mu.RUnlock()

	for _, h := range handlers {
		h(evt)
	}
}
