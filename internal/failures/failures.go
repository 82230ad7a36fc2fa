// Package failures tracks consecutive build failures per item. Items at or
// above the threshold are excluded from selection until their entry is
// cleared; threshold exhaustion degrades to "nothing eligible this cycle"
// rather than an error.
package failures

import (
	"context"
	"errors"
	"fmt"
	"time"

	"autoforge/internal/retry"
	"autoforge/internal/storage"
	"autoforge/internal/types"
)

// DefaultThreshold is the consecutive-failure count at which an item stops
// being selected for new build attempts
const DefaultThreshold = 3

// Tracker persists per-item failure counts. Concurrent writers from the
// discover and build cycles are acceptable because each write targets a
// different key.
type Tracker struct {
	store     storage.Storage
	threshold int
}

// New creates a failure tracker. A non-positive threshold selects the default.
func New(store storage.Storage, threshold int) (*Tracker, error) {
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Tracker{store: store, threshold: threshold}, nil
}

// Threshold returns the configured exclusion threshold
func (t *Tracker) Threshold() int {
	return t.threshold
}

// RecordFailure increments the consecutive-failure count for an item and
// returns the new count. The error text is truncated before storing.
func (t *Tracker) RecordFailure(ctx context.Context, itemID, errText string) (int, error) {
	entry, err := t.store.GetFailure(ctx, itemID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return 0, fmt.Errorf("failed to read failure entry for %s: %w", itemID, err)
	}
	if entry == nil {
		entry = &types.FailureEntry{ItemID: itemID}
	}

	entry.Count++
	entry.LastError = retry.Truncate(errText, 500)
	entry.LastFailureAt = time.Now()

	if err := t.store.UpsertFailure(ctx, entry); err != nil {
		return 0, err
	}

	if entry.Count >= t.threshold {
		fmt.Printf("Item %s reached %d consecutive failures, excluded from selection\n", itemID, entry.Count)
	}
	return entry.Count, nil
}

// Clear removes the failure entry for an item. Clearing an id with no entry
// is a no-op, not an error.
func (t *Tracker) Clear(ctx context.Context, itemID string) error {
	return t.store.DeleteFailure(ctx, itemID)
}

// Load returns all failure entries keyed by item id
func (t *Tracker) Load(ctx context.Context) (map[string]*types.FailureEntry, error) {
	return t.store.ListFailures(ctx)
}

// Eligible reports whether an item with the given id may be selected for a
// new build attempt. An item with count >= threshold is excluded; one with
// no entry or a count below the threshold is eligible.
func (t *Tracker) Eligible(ctx context.Context, itemID string) (bool, error) {
	entry, err := t.store.GetFailure(ctx, itemID)
	if errors.Is(err, storage.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return entry.Count < t.threshold, nil
}
