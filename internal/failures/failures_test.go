package failures

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoforge/internal/storage"
)

func newTracker(t *testing.T, threshold int) *Tracker {
	t.Helper()
	store, err := storage.NewStorage(context.Background(), &storage.Config{
		Path: filepath.Join(t.TempDir(), "autoforge.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	tracker, err := New(store, threshold)
	require.NoError(t, err)
	return tracker
}

func TestNewRequiresStorage(t *testing.T) {
	_, err := New(nil, 3)
	assert.Error(t, err)
}

func TestRecordFailureIncrements(t *testing.T) {
	ctx := context.Background()
	tracker := newTracker(t, 3)

	count, err := tracker.RecordFailure(ctx, "item-1", "network timeout")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = tracker.RecordFailure(ctx, "item-1", "generation failed")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	entries, err := tracker.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "generation failed", entries["item-1"].LastError)
}

func TestEligibilityAtThresholdBoundary(t *testing.T) {
	ctx := context.Background()
	tracker := newTracker(t, 3)

	// No entry: eligible
	ok, err := tracker.Eligible(ctx, "item-1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Below threshold: still eligible
	tracker.RecordFailure(ctx, "item-1", "fail 1")
	tracker.RecordFailure(ctx, "item-1", "fail 2")
	ok, err = tracker.Eligible(ctx, "item-1")
	require.NoError(t, err)
	assert.True(t, ok, "count below threshold is eligible")

	// Exactly at threshold: excluded
	tracker.RecordFailure(ctx, "item-1", "fail 3")
	ok, err = tracker.Eligible(ctx, "item-1")
	require.NoError(t, err)
	assert.False(t, ok, "count at threshold is excluded")
}

func TestClearRestoresEligibility(t *testing.T) {
	ctx := context.Background()
	tracker := newTracker(t, 2)

	tracker.RecordFailure(ctx, "item-1", "fail")
	tracker.RecordFailure(ctx, "item-1", "fail")

	ok, _ := tracker.Eligible(ctx, "item-1")
	require.False(t, ok)

	require.NoError(t, tracker.Clear(ctx, "item-1"))
	ok, err := tracker.Eligible(ctx, "item-1")
	require.NoError(t, err)
	assert.True(t, ok)

	// Counting restarts from zero after a clear
	count, err := tracker.RecordFailure(ctx, "item-1", "fail again")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestClearMissingEntryIsNoOp(t *testing.T) {
	tracker := newTracker(t, 3)
	assert.NoError(t, tracker.Clear(context.Background(), "never-failed"))
}

func TestErrorTextTruncated(t *testing.T) {
	ctx := context.Background()
	tracker := newTracker(t, 3)

	_, err := tracker.RecordFailure(ctx, "item-1", strings.Repeat("x", 2000))
	require.NoError(t, err)

	entries, err := tracker.Load(ctx)
	require.NoError(t, err)
	assert.Less(t, len(entries["item-1"].LastError), 600)
}

func TestDefaultThreshold(t *testing.T) {
	tracker := newTracker(t, 0)
	assert.Equal(t, DefaultThreshold, tracker.Threshold())
}
