package httpapi

import (
	"sync"

	"tessera/internal/engine"
)

// eventRing is a fixed-capacity ring of recent tick events, oldest evicted
// first.
type eventRing struct {
	mu   sync.Mutex
	buf  []engine.TickEvent
	next int
	full bool
}

func newEventRing(capacity int) *eventRing {
	if capacity <= 0 {
		capacity = 100
	}
	return &eventRing{buf: make([]engine.TickEvent, capacity)}
}

func (r *eventRing) append(ev engine.TickEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = ev
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

// snapshot returns up to limit events in chronological order; limit <= 0
// returns everything retained.
func (r *eventRing) snapshot(limit int) []engine.TickEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []engine.TickEvent
	if r.full {
		out = make([]engine.TickEvent, 0, len(r.buf))
		out = append(out, r.buf[r.next:]...)
		out = append(out, r.buf[:r.next]...)
	} else {
		out = make([]engine.TickEvent, r.next)
		copy(out, r.buf[:r.next])
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
