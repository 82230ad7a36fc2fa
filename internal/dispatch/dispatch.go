// Package dispatch gates access to the shared AI compute resource: a fixed
// pool of concurrency slots plus a global minimum interval between the
// starts of any two dispatches. Bursty parallel callers are smoothed into a
// steady request rate without losing useful parallelism.
package dispatch

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	// DefaultCapacity is the number of calls that may be in flight at once
	DefaultCapacity = 5

	// DefaultMinInterval is the floor between the starts of two dispatches
	DefaultMinInterval = 2500 * time.Millisecond
)

// Dispatcher is the counting-slot and interval gate. Every call path that
// hits the external compute resource must Acquire a slot, do its work, and
// Release in a defer regardless of outcome.
type Dispatcher struct {
	sem      *semaphore.Weighted
	gate     *rate.Limiter
	capacity int
}

// New creates a dispatcher with the given slot capacity and minimum
// interval between dispatch starts. Zero values select the defaults.
func New(capacity int, minInterval time.Duration) *Dispatcher {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Dispatcher{
		sem:      semaphore.NewWeighted(int64(capacity)),
		gate:     rate.NewLimiter(rate.Every(minInterval), 1),
		capacity: capacity,
	}
}

// Acquire blocks until a concurrency slot is free (waiters are served FIFO)
// and the interval gate allows another dispatch to start. The interval gate
// is waited on only after the slot is held, so queued callers do not each
// burn a slot while pacing.
func (d *Dispatcher) Acquire(ctx context.Context) error {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	if err := d.gate.Wait(ctx); err != nil {
		d.sem.Release(1)
		return err
	}
	return nil
}

// Release returns a previously acquired slot to the pool
func (d *Dispatcher) Release() {
	d.sem.Release(1)
}

// TryAcquire attempts a non-blocking slot grab, still pacing through the
// interval gate on success. Used by opportunistic callers that prefer to
// skip work over queueing.
func (d *Dispatcher) TryAcquire(ctx context.Context) bool {
	if !d.sem.TryAcquire(1) {
		return false
	}
	if err := d.gate.Wait(ctx); err != nil {
		d.sem.Release(1)
		return false
	}
	return true
}

// Capacity returns the configured slot count
func (d *Dispatcher) Capacity() int {
	return d.capacity
}
