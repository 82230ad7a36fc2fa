package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"simple", "Budget Tracker", "budget-tracker"},
		{"punctuation collapsed", "budget-tracker!!", "budget-tracker"},
		{"mixed runs", "My   Cool__App (v2)", "my-cool-app-v2"},
		{"leading trailing", "  --Hello--  ", "hello"},
		{"empty", "!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.title))
		})
	}
}

func TestIdenticalNormalizedTitlesAreDuplicates(t *testing.T) {
	ix := New(DefaultConfig())

	a := NewRecord("a", "Budget Tracker", "queued")
	b := NewRecord("b", "budget-tracker!!", "queued")

	decision := ix.Check(a, []Record{b})
	require.True(t, decision.Duplicate)
	assert.Equal(t, "exact slug match", decision.Reason)
	assert.Equal(t, "b", decision.MatchedID)
}

func TestSlugContainment(t *testing.T) {
	ix := New(DefaultConfig())

	short := NewRecord("s", "Recipe Finder", "queued")
	long := NewRecord("l", "Ultimate Recipe Finder Deluxe", "built")

	// Containment works in both directions
	assert.True(t, ix.Check(short, []Record{long}).Duplicate)
	d := ix.Check(long, []Record{short})
	require.True(t, d.Duplicate)
	assert.Equal(t, "slug containment", d.Reason)

	// Short slugs below the minimum length never match by containment
	tiny := NewRecord("t", "Ab", "queued")
	host := NewRecord("h", "Abstract Art Gallery", "queued")
	assert.False(t, ix.Check(tiny, []Record{host}).Duplicate)
}

func TestTitleSimilarity(t *testing.T) {
	ix := New(DefaultConfig())

	a := NewRecord("a", "Daily Expense Budget Planner", "queued")
	b := NewRecord("b", "Budget Planner Expense Log", "queued")

	d := ix.Check(a, []Record{b})
	require.True(t, d.Duplicate)
	assert.Equal(t, "title similarity", d.Reason)

	unrelated := NewRecord("c", "Chess Puzzle Trainer", "queued")
	assert.False(t, ix.Check(unrelated, []Record{a}).Duplicate)
}

func TestJaccardSymmetry(t *testing.T) {
	a := Keywords("Daily Expense Budget Planner")
	b := Keywords("Budget Planner Expense Log")
	assert.Equal(t, Jaccard(a, b), Jaccard(b, a))
}

func TestJaccardEmptySetsAreIdentical(t *testing.T) {
	assert.Equal(t, 1.0, Jaccard(map[string]struct{}{}, map[string]struct{}{}))
	assert.Equal(t, 0.0, Jaccard(Keywords("chess trainer"), map[string]struct{}{}))
}

func TestKeywordsDropStopWordsAndShortTokens(t *testing.T) {
	kw := Keywords("A Simple Budget Tracker for the Web!")
	assert.Contains(t, kw, "budget")
	assert.Contains(t, kw, "tracker")
	assert.NotContains(t, kw, "a")
	assert.NotContains(t, kw, "the")
	assert.NotContains(t, kw, "simple")
}

func TestFilterBatchRejectsWithinBatchSiblings(t *testing.T) {
	ix := New(DefaultConfig())

	batch := []Record{
		NewRecord("1", "Budget Tracker", "batch"),
		NewRecord("2", "budget-tracker!!", "batch"),
		NewRecord("3", "Chess Puzzle Trainer", "batch"),
	}

	unique, rejected := ix.FilterBatch(batch, nil)
	require.Len(t, unique, 2)
	require.Len(t, rejected, 1)
	assert.Equal(t, "2", rejected[0].Record.ID, "later sibling must be rejected against the running accepted set")
	assert.Equal(t, "1", rejected[0].Decision.MatchedID)
}

func TestFilterBatchChecksExistingFirst(t *testing.T) {
	ix := New(DefaultConfig())

	existing := []Record{NewRecord("built-1", "Budget Tracker", "built")}
	batch := []Record{NewRecord("new-1", "Budget Tracker", "batch")}

	unique, rejected := ix.FilterBatch(batch, existing)
	assert.Empty(t, unique)
	require.Len(t, rejected, 1)
	assert.Equal(t, "built-1", rejected[0].Decision.MatchedID)
}

func TestConfigurableThresholds(t *testing.T) {
	strict := New(Config{SimilarityThreshold: 0.99, MinContainmentLen: 50})

	a := NewRecord("a", "Daily Expense Budget Planner", "queued")
	b := NewRecord("b", "Budget Planner Expense Log", "queued")
	assert.False(t, strict.Check(a, []Record{b}).Duplicate,
		"raised threshold must disable the similarity match")
}
