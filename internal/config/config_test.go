package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadPartialFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
build:
  score_threshold: 7.5
discovery:
  feed_urls:
    - https://news.example/rss
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7.5, cfg.Build.ScoreThreshold)
	assert.Equal(t, []string{"https://news.example/rss"}, cfg.Discovery.FeedURLs)
	// Untouched sections keep their defaults
	assert.Equal(t, 5, cfg.AI.MaxConcurrent)
	assert.Equal(t, 3, cfg.Build.FailureThreshold)
	assert.Equal(t, 0.6, cfg.Dedup.SimilarityThreshold)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("build: [not a map"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestMinInterval(t *testing.T) {
	assert.Equal(t, 2500*time.Millisecond, Default().AI.MinInterval())
}
