// Package circuit provides a consecutive-failure breaker for the tick loop.
package circuit

import (
	"sync"

	"tessera/internal/logger"
)

// Breaker counts consecutive failures and trips once the streak reaches the
// threshold. Unlike a classic half-open breaker it never re-closes on its
// own: a tripped tick loop escalates to shutdown.
type Breaker struct {
	mu        sync.Mutex
	name      string
	threshold int
	streak    int
	tripped   bool
	onTrip    func(name string, streak int)
}

// NewBreaker builds a breaker. threshold <= 0 disables tripping.
func NewBreaker(name string, threshold int) *Breaker {
	return &Breaker{name: name, threshold: threshold}
}

// SetTripHandler registers a callback invoked (in its own goroutine) when
// the breaker trips.
func (b *Breaker) SetTripHandler(handler func(name string, streak int)) {
	b.mu.Lock()
	b.onTrip = handler
	b.mu.Unlock()
}

// RecordSuccess resets the failure streak.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	b.streak = 0
	b.mu.Unlock()
}

// RecordFailure increments the streak and reports whether the breaker
// tripped on this call.
func (b *Breaker) RecordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.streak++
	if b.tripped || b.threshold <= 0 || b.streak < b.threshold {
		return false
	}
	b.tripped = true
	logger.Errorf("Breaker %s tripped after %d consecutive failures", b.name, b.streak)
	if b.onTrip != nil {
		go b.onTrip(b.name, b.streak)
	}
	return true
}

// Tripped reports whether the breaker has tripped.
func (b *Breaker) Tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripped
}

// Streak returns the current consecutive-failure count.
func (b *Breaker) Streak() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.streak
}
