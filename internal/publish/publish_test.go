package publish

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoforge/internal/types"
)

func testRecord(root string) *types.BuiltRecord {
	return &types.BuiltRecord{
		ItemID:     "item-1",
		Title:      "Budget Tracker",
		Slug:       "budget-tracker",
		OutputPath: filepath.Join(root, "budget-tracker"),
		BuiltAt:    time.Now(),
	}
}

func TestNewDirPublisherRequiresRoot(t *testing.T) {
	_, err := NewDirPublisher("", "")
	assert.Error(t, err)
}

func TestPushWritesArtifactsAndMarker(t *testing.T) {
	root := t.TempDir()
	p, err := NewDirPublisher(root, "https://apps.example")
	require.NoError(t, err)

	rec := testRecord(root)
	url, err := p.Push(context.Background(), rec, []types.Artifact{
		{Path: "index.html", Content: "<!DOCTYPE html>"},
		{Path: "assets/app.js", Content: "console.log('hi')"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://apps.example/budget-tracker/", url)

	data, err := os.ReadFile(filepath.Join(root, "budget-tracker", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<!DOCTYPE html>", string(data))

	_, err = os.Stat(filepath.Join(root, "budget-tracker", "assets", "app.js"))
	assert.NoError(t, err, "nested artifact paths are created")

	assert.True(t, p.HasMarker(rec.OutputPath), "marker written after artifacts")
}

func TestPushRejectsPathsEscapingAppDirectory(t *testing.T) {
	root := t.TempDir()
	p, err := NewDirPublisher(root, "")
	require.NoError(t, err)
	rec := testRecord(root)

	for _, bad := range []string{
		"../../escaped.txt",
		"assets/../../../escaped.txt",
		"/etc/escaped.txt",
	} {
		_, err = p.Push(context.Background(), rec, []types.Artifact{
			{Path: bad, Content: "nope"},
		})
		assert.Error(t, err, "path %q must be rejected", bad)
	}

	// Nothing may have landed above the publish root
	_, err = os.Stat(filepath.Join(filepath.Dir(root), "escaped.txt"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "escaped.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestPushWithoutBaseURLReturnsEmptyURL(t *testing.T) {
	root := t.TempDir()
	p, err := NewDirPublisher(root, "")
	require.NoError(t, err)

	url, err := p.Push(context.Background(), testRecord(root), []types.Artifact{
		{Path: "index.html", Content: "x"},
	})
	require.NoError(t, err)
	assert.Empty(t, url, "no base URL means no reported URL, not an error")
}

func TestResumeWritesMarkerWithoutArtifacts(t *testing.T) {
	root := t.TempDir()
	p, err := NewDirPublisher(root, "https://apps.example")
	require.NoError(t, err)

	rec := testRecord(root)
	require.NoError(t, os.MkdirAll(rec.OutputPath, 0755))
	require.False(t, p.HasMarker(rec.OutputPath))

	url, err := p.Resume(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "https://apps.example/budget-tracker/", url)
	assert.True(t, p.HasMarker(rec.OutputPath))
}

func TestResumeFailsWhenOutputMissing(t *testing.T) {
	root := t.TempDir()
	p, err := NewDirPublisher(root, "")
	require.NoError(t, err)

	_, err = p.Resume(context.Background(), testRecord(root))
	assert.Error(t, err, "nothing to resume without the artifact directory")
}

func TestHasMarkerFalseForUnknownPath(t *testing.T) {
	p, err := NewDirPublisher(t.TempDir(), "")
	require.NoError(t, err)
	assert.False(t, p.HasMarker(filepath.Join("nope", "nothing")))
}
