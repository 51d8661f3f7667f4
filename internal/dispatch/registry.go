package dispatch

import (
	"log/slog"
	"sync"
)

// Registry is a last-value pub-sub registry. Subscribing replays the most
// recent value immediately, then delivers every subsequent Set.
type Registry[T any] struct {
	logger *slog.Logger

	mu   sync.Mutex
	next int
	subs []regSub[T]
	last T
	seen bool
}

type regSub[T any] struct {
	id int
	fn func(T)
}

// NewRegistry creates an empty registry.
func NewRegistry[T any](logger *slog.Logger) *Registry[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry[T]{logger: logger}
}

// Subscribe registers a callback and returns its unsubscribe function.
// If a value has been Set, the callback is invoked with it immediately.
func (r *Registry[T]) Subscribe(fn func(T)) func() {
	r.mu.Lock()
	r.next++
	id := r.next
	r.subs = append(r.subs, regSub[T]{id: id, fn: fn})
	replay, seen := r.last, r.seen
	r.mu.Unlock()

	if seen {
		r.invoke(replay, fn)
	}

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		for i, s := range r.subs {
			if s.id == id {
				r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
				return
			}
		}
	}
}

// Set stores the value and delivers it to all subscribers in order.
func (r *Registry[T]) Set(v T) {
	r.mu.Lock()
	r.last = v
	r.seen = true
	subs := make([]regSub[T], len(r.subs))
	copy(subs, r.subs)
	r.mu.Unlock()

	for _, s := range subs {
		r.invoke(v, s.fn)
	}
}

// Last returns the most recent value and whether one has been Set.
func (r *Registry[T]) Last() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last, r.seen
}

func (r *Registry[T]) invoke(v T, fn func(T)) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("status subscriber panicked", "panic", rec)
		}
	}()
	fn(v)
}
