package dispatch

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Well-known event kinds on the push channel.
const (
	KindQuickCheckUpdate = "quick_check_update"
	KindStatusUpdate     = "status_update"
	KindAuthenticated    = "authenticated"
	KindAuthError        = "auth_error"
	KindHeartbeat        = "heartbeat"
	KindPong             = "pong"
)

// Event is a single inbound push message.
type Event struct {
	Kind       string
	Data       json.RawMessage
	ReceivedAt time.Time
}

// Bus fans inbound events out to subscribers by kind.
type Bus struct {
	logger *slog.Logger

	mu   sync.RWMutex
	next int
	subs map[string][]busSub
}

type busSub struct {
	id int
	fn func(Event)
}

// NewBus creates an event bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		logger: logger,
		subs:   make(map[string][]busSub),
	}
}

// On registers a callback for an event kind and returns its unsubscribe
// function. Multiple subscribers per kind dispatch in subscription order.
func (b *Bus) On(kind string, fn func(Event)) func() {
	b.mu.Lock()
	b.next++
	id := b.next
	b.subs[kind] = append(b.subs[kind], busSub{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[kind]
		for i, s := range subs {
			if s.id == id {
				b.subs[kind] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers an event to every subscriber of its kind. Each callback
// is isolated: a panic is recovered and logged, never propagated.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	subs := make([]busSub, len(b.subs[ev.Kind]))
	copy(subs, b.subs[ev.Kind])
	b.mu.RUnlock()

	for _, s := range subs {
		b.invoke(ev, s.fn)
	}
}

func (b *Bus) invoke(ev Event, fn func(Event)) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event subscriber panicked",
				"kind", ev.Kind,
				"panic", r,
			)
		}
	}()
	fn(ev)
}
