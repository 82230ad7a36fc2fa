package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoforge/internal/types"
)

func newTestStore(t *testing.T) Storage {
	t.Helper()
	store, err := NewStorage(context.Background(), &Config{
		Path: filepath.Join(t.TempDir(), "autoforge.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testItem(id, title string) *types.CandidateItem {
	return &types.CandidateItem{
		ID:     id,
		Title:  title,
		Source: "test",
		Status: types.StatusDiscovered,
	}
}

func TestItemRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	item := testItem("item-1", "Budget Tracker")
	item.Description = "Track daily spending"
	require.NoError(t, store.CreateItem(ctx, item))

	got, err := store.GetItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, "Budget Tracker", got.Title)
	assert.Equal(t, "Track daily spending", got.Description)
	assert.Equal(t, types.StatusDiscovered, got.Status)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestGetItemNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetItem(context.Background(), "nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestUpdateItemStatusAndScore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.CreateItem(ctx, testItem("item-1", "Budget Tracker")))
	require.NoError(t, store.UpdateItemScore(ctx, "item-1", 8.5, "pass"))
	require.NoError(t, store.UpdateItemStatus(ctx, "item-1", types.StatusApproved))

	got, err := store.GetItem(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, 8.5, got.Score)
	assert.Equal(t, "pass", got.Verdict)
	assert.Equal(t, types.StatusApproved, got.Status)

	err = store.UpdateItemStatus(ctx, "missing", types.StatusApproved)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListItemsByStatusOrdersByScore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	for i, tc := range []struct {
		id    string
		score float64
	}{{"low", 2}, {"high", 9}, {"mid", 5}} {
		item := testItem(tc.id, tc.id)
		item.Status = types.StatusApproved
		require.NoError(t, store.CreateItem(ctx, item))
		require.NoError(t, store.UpdateItemScore(ctx, tc.id, tc.score, "pass"))
		_ = i
	}
	skipped := testItem("skipped", "skipped")
	skipped.Status = types.StatusSkipped
	require.NoError(t, store.CreateItem(ctx, skipped))

	items, err := store.ListItemsByStatus(ctx, types.StatusApproved)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "high", items[0].ID, "highest score first")
	assert.Equal(t, "mid", items[1].ID)
}

func TestBuiltRecordRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rec := &types.BuiltRecord{
		ItemID:       "item-1",
		Title:        "Budget Tracker",
		Slug:         "budget-tracker",
		OutputPath:   "apps/budget-tracker",
		QualityScore: 0.8,
	}
	require.NoError(t, store.SaveBuiltRecord(ctx, rec))

	got, err := store.GetBuiltRecord(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, "budget-tracker", got.Slug)
	assert.False(t, got.Deployed)

	byPath, err := store.GetBuiltRecordByPath(ctx, "apps/budget-tracker")
	require.NoError(t, err)
	assert.Equal(t, "item-1", byPath.ItemID)

	require.NoError(t, store.MarkDeployed(ctx, "item-1", "https://example.test/budget-tracker"))
	got, err = store.GetBuiltRecord(ctx, "item-1")
	require.NoError(t, err)
	assert.True(t, got.Deployed)
	assert.Equal(t, "https://example.test/budget-tracker", got.DeployURL)

	count, err := store.CountBuilt(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFailureEntriesSurviveReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "autoforge.db")

	store, err := NewStorage(ctx, &Config{Path: path})
	require.NoError(t, err)

	entry := &types.FailureEntry{
		ItemID:        "item-1",
		Count:         2,
		LastError:     "generation timed out",
		LastFailureAt: time.Now(),
	}
	require.NoError(t, store.UpsertFailure(ctx, entry))
	require.NoError(t, store.Close())

	// Reopen: entries must survive a process restart
	store, err = NewStorage(ctx, &Config{Path: path})
	require.NoError(t, err)
	defer store.Close()

	got, err := store.GetFailure(ctx, "item-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Count)
	assert.Equal(t, "generation timed out", got.LastError)
}

func TestDeleteFailureMissingIsNoOp(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.DeleteFailure(context.Background(), "never-existed"))
}

func TestListFailures(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.UpsertFailure(ctx, &types.FailureEntry{ItemID: "a", Count: 1}))
	require.NoError(t, store.UpsertFailure(ctx, &types.FailureEntry{ItemID: "b", Count: 3}))

	entries, err := store.ListFailures(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 3, entries["b"].Count)
}

func TestConfigRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	val, err := store.GetConfig(ctx, "paused")
	require.NoError(t, err)
	assert.Empty(t, val, "missing key reads as empty")

	require.NoError(t, store.SetConfig(ctx, "paused", "true"))
	require.NoError(t, store.SetConfig(ctx, "paused", "false"))
	val, err = store.GetConfig(ctx, "paused")
	require.NoError(t, err)
	assert.Equal(t, "false", val)
}

func TestStatusDocWholeDocumentReplace(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.GetStatus(ctx)
	assert.True(t, errors.Is(err, ErrNotFound))

	doc := &types.StatusDoc{
		StartedAt:   time.Now().Add(-time.Hour),
		QueueDepth:  3,
		TotalBuilt:  7,
		Discovering: true,
	}
	require.NoError(t, store.SaveStatus(ctx, doc))

	doc.QueueDepth = 1
	doc.Discovering = false
	require.NoError(t, store.SaveStatus(ctx, doc))

	got, err := store.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, got.QueueDepth)
	assert.Equal(t, 7, got.TotalBuilt)
	assert.False(t, got.Discovering)
}
