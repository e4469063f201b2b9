// Package bus implements a synchronous, in-process publish/subscribe channel.
//
// Delivery model: Publish calls every subscriber registered at the moment of
// the call, in subscription order, on the publishing goroutine. There is no
// buffering and no replay; events published with no subscribers are dropped.
// A subscriber that panics is recovered and logged so later subscribers still
// receive the event.
package bus

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Envelope is the tagged message carried by the domain buses.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type subscriber[E any] struct {
	fn     func(E)
	active atomic.Bool
}

// Bus is a named channel carrying events of type E.
type Bus[E any] struct {
	name   string
	logger *slog.Logger

	mu   sync.Mutex
	subs []*subscriber[E]
}

// New creates a bus. A nil logger falls back to slog.Default().
func New[E any](name string, logger *slog.Logger) *Bus[E] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus[E]{name: name, logger: logger}
}

// Name returns the channel name.
func (b *Bus[E]) Name() string { return b.name }

// Len returns the number of active subscribers.
func (b *Bus[E]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Subscribe registers fn and returns a disposer. Calling the disposer more
// than once is a no-op. Once disposed, fn is skipped even by a Publish that
// is already iterating.
func (b *Bus[E]) Subscribe(fn func(E)) func() {
	s := &subscriber[E]{fn: fn}
	s.active.Store(true)

	b.mu.Lock()
	b.subs = append(b.subs, s)
	b.mu.Unlock()

	return func() {
		if !s.active.CompareAndSwap(true, false) {
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, cur := range b.subs {
			if cur == s {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers event to every current subscriber. Subscribers may
// publish, subscribe or unsubscribe from inside their callback.
func (b *Bus[E]) Publish(event E) {
	b.mu.Lock()
	snapshot := make([]*subscriber[E], len(b.subs))
	copy(snapshot, b.subs)
	b.mu.Unlock()

	for _, s := range snapshot {
		if !s.active.Load() {
			continue
		}
		b.deliver(s, event)
	}
}

func (b *Bus[E]) deliver(s *subscriber[E], event E) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bus: subscriber panicked",
				slog.String("channel", b.name),
				slog.String("panic", fmt.Sprint(r)))
		}
	}()
	s.fn(event)
}
