// Package retry provides the generic retry/backoff primitive used to wrap
// every network and external-process call in the system.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"
)

// Options configures a retried operation
type Options struct {
	MaxAttempts int           // Total invocations, including the first (default: 3)
	BaseDelay   time.Duration // Delay before the first retry (default: 1s)
	MaxDelay    time.Duration // Cap on the computed backoff (default: 30s)
	Label       string        // Operation name used in logs and the final error
}

// DefaultOptions returns the default retry options
func DefaultOptions(label string) Options {
	return Options{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Label:       label,
	}
}

func (o *Options) applyDefaults() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 1 * time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.Label == "" {
		o.Label = "operation"
	}
}

// Do invokes fn up to opts.MaxAttempts times. After each failure it sleeps
// baseDelay * 2^(attempt-1) plus random jitter, then retries. Errors are
// never swallowed: the final error is returned wrapped with the label and
// attempt count. Context cancellation during a backoff sleep aborts the
// remaining attempts.
func Do(ctx context.Context, opts Options, fn func(context.Context) error) error {
	opts.applyDefaults()

	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				fmt.Printf("%s succeeded after %d attempts\n", opts.Label, attempt)
			}
			return nil
		}
		lastErr = err

		if attempt == opts.MaxAttempts {
			break
		}

		delay := backoffDelay(opts.BaseDelay, opts.MaxDelay, attempt)
		fmt.Fprintf(os.Stderr, "%s failed (attempt %d/%d), retrying in %v: %s\n",
			opts.Label, attempt, opts.MaxAttempts, delay.Round(time.Millisecond), Truncate(err.Error(), 200))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s canceled during backoff after %d attempts: %w", opts.Label, attempt, ctx.Err())
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", opts.Label, opts.MaxAttempts, lastErr)
}

// backoffDelay computes the exponential delay for the given 1-based attempt,
// with up to 25% random jitter added to avoid thundering herds.
func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			delay = max
			break
		}
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/4 + 1))
	delay += jitter
	if delay > max {
		delay = max
	}
	return delay
}

// Truncate shortens s to at most n bytes for log output
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... (truncated)"
}
