package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcherNeverExceedsCapacity(t *testing.T) {
	const capacity = 3
	d := New(capacity, time.Millisecond)

	var inFlight, maxSeen int64
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, d.Acquire(context.Background()))
			defer d.Release()

			cur := atomic.AddInt64(&inFlight, 1)
			for {
				prev := atomic.LoadInt64(&maxSeen)
				if cur <= prev || atomic.CompareAndSwapInt64(&maxSeen, prev, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&inFlight, -1)
		}()
	}

	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt64(&maxSeen), int64(capacity),
		"concurrently held slots must never exceed capacity")
}

func TestDispatcherReleaseUnblocksWaiter(t *testing.T) {
	d := New(1, time.Millisecond)

	require.NoError(t, d.Acquire(context.Background()))

	acquired := make(chan struct{})
	go func() {
		if err := d.Acquire(context.Background()); err == nil {
			close(acquired)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("waiter acquired while slot was held")
	case <-time.After(50 * time.Millisecond):
	}

	d.Release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter was not unblocked by release")
	}
	d.Release()
}

func TestDispatcherFIFOOrdering(t *testing.T) {
	d := New(1, time.Millisecond)
	require.NoError(t, d.Acquire(context.Background()))

	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup

	// Queue waiters one at a time so their arrival order is deterministic
	for i := 0; i < 4; i++ {
		wg.Add(1)
		started := make(chan struct{})
		go func(n int) {
			defer wg.Done()
			close(started)
			require.NoError(t, d.Acquire(context.Background()))
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			d.Release()
		}(i)
		<-started
		time.Sleep(20 * time.Millisecond)
	}

	d.Release()
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3}, order,
		"release must unblock the longest-waiting acquirer first")
}

func TestDispatcherPacesDispatchStarts(t *testing.T) {
	const interval = 40 * time.Millisecond
	d := New(5, interval)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, d.Acquire(context.Background()))
	}
	elapsed := time.Since(start)

	// First dispatch is immediate; the next two wait on the interval gate.
	assert.GreaterOrEqual(t, elapsed, 2*interval-5*time.Millisecond)
	for i := 0; i < 3; i++ {
		d.Release()
	}
}

func TestDispatcherAcquireHonorsContext(t *testing.T) {
	d := New(1, time.Millisecond)
	require.NoError(t, d.Acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := d.Acquire(ctx)
	require.Error(t, err)

	// The failed acquire must not leak the held slot
	d.Release()
	require.NoError(t, d.Acquire(context.Background()))
	d.Release()
}

func TestTryAcquire(t *testing.T) {
	d := New(1, time.Millisecond)

	assert.True(t, d.TryAcquire(context.Background()))
	assert.False(t, d.TryAcquire(context.Background()), "no slot free")
	d.Release()
	assert.True(t, d.TryAcquire(context.Background()))
	d.Release()
}
