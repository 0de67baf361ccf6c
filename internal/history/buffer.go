// Package history holds the rolling window of market observations. The
// buffer is capacity-bounded: once full, each append evicts the oldest entry.
package history

import (
	"sync"
	"time"

	"github.com/marketpulse/btctracker/internal/domain"
)

// Buffer is a fixed-capacity, insertion-ordered sequence of observations,
// oldest first. It is safe for concurrent use; the poll loop writes while the
// control surface reads.
type Buffer struct {
	mu         sync.RWMutex
	entries    []domain.Observation
	capacity   int
	lastUpdate time.Time
}

// NewBuffer creates an empty Buffer with the given capacity. A capacity of
// zero or less is a configuration error.
func NewBuffer(capacity int) (*Buffer, error) {
	if capacity <= 0 {
		return nil, domain.ErrBadCapacity
	}
	return &Buffer{
		entries:  make([]domain.Observation, 0, capacity),
		capacity: capacity,
	}, nil
}

// Append adds an observation to the end of the buffer, evicting from the
// front while the capacity bound is exceeded, and records the observation's
// capture time as the last update.
func (b *Buffer) Append(obs domain.Observation) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, obs)
	if excess := len(b.entries) - b.capacity; excess > 0 {
		b.entries = append(b.entries[:0], b.entries[excess:]...)
	}
	b.lastUpdate = obs.Timestamp
}

// Latest returns a copy of the last n observations in order, oldest first.
// If the buffer holds fewer than n entries, all of them are returned. The
// returned slice is safe to mutate.
func (b *Buffer) Latest(n int) []domain.Observation {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || len(b.entries) == 0 {
		return nil
	}
	if n > len(b.entries) {
		n = len(b.entries)
	}
	out := make([]domain.Observation, n)
	copy(out, b.entries[len(b.entries)-n:])
	return out
}

// Len returns the current number of buffered observations.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Capacity returns the fixed capacity bound.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// LastUpdate returns the capture time of the most recently appended
// observation, or the zero time if the buffer has never been written to or
// was cleared.
func (b *Buffer) LastUpdate() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastUpdate
}

// Clear resets the buffer to empty and forgets the last update marker.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = b.entries[:0]
	b.lastUpdate = time.Time{}
}
