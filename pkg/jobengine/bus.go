package jobengine

import (
	"sync"

	"go.uber.org/zap"
)

// Listener receives transition events. Listeners run synchronously on the
// publishing goroutine and should hand off heavy work themselves.
type Listener func(Event)

// Bus fans transition events out to registered listeners.
//
// Delivery is synchronous and in subscription order. A listener that
// panics is logged and skipped; it never breaks delivery to the rest.
// There is no replay: listeners only see events published after they
// subscribe.
type Bus struct {
	mu        sync.Mutex
	log       *zap.Logger
	nextID    int
	listeners []busEntry
}

type busEntry struct {
	id int
	fn Listener
}

// NewBus creates an empty bus.
func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{log: log}
}

// Subscribe registers a listener and returns its unsubscribe function.
// Unsubscribing twice is harmless.
func (b *Bus) Subscribe(fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, busEntry{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, e := range b.listeners {
			if e.id == id {
				b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers the event to every listener. Empty events are dropped.
func (b *Bus) Publish(ev Event) {
	if ev.Empty() {
		return
	}

	b.mu.Lock()
	entries := make([]busEntry, len(b.listeners))
	copy(entries, b.listeners)
	b.mu.Unlock()

	for _, e := range entries {
		b.deliver(e, ev)
	}
}

func (b *Bus) deliver(e busEntry, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("job event listener panicked",
				zap.Int("listener_id", e.id),
				zap.Any("panic", r))
		}
	}()
	e.fn(ev)
}
