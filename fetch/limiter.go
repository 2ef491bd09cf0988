package fetch

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Limiter is the admission gate bounding in-flight fetches across the whole
// run. Acquire blocks until a slot frees up; admission is first-come
// first-served with no reordering.
type Limiter struct {
	sem      *semaphore.Weighted
	capacity int
}

// NewLimiter creates a gate with the given capacity (minimum 1).
func NewLimiter(capacity int) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	return &Limiter{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: capacity,
	}
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.sem.Acquire(ctx, 1)
}

// Release returns a slot to the gate.
func (l *Limiter) Release() {
	l.sem.Release(1)
}

// Capacity reports the configured slot count.
func (l *Limiter) Capacity() int {
	return l.capacity
}
