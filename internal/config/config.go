// Package config loads the autoforge configuration file. Every field has a
// default; a missing file means "all defaults", and a partial file only
// overrides what it names.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for the config file
const DefaultPath = ".autoforge/config.yaml"

// Config is the full file schema
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	AI        AIConfig        `yaml:"ai"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Build     BuildConfig     `yaml:"build"`
	Dedup     DedupConfig     `yaml:"dedup"`
	Publish   PublishConfig   `yaml:"publish"`
	Log       LogConfig       `yaml:"log"`
}

// DatabaseConfig locates the SQLite database
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AIConfig tunes the shared API client and its dispatcher
type AIConfig struct {
	Model         string `yaml:"model"`
	ScoringModel  string `yaml:"scoring_model"`
	MaxConcurrent int    `yaml:"max_concurrent"`
	MinIntervalMS int    `yaml:"min_interval_ms"`
}

// MinInterval returns the dispatch pacing floor as a duration
func (c AIConfig) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalMS) * time.Millisecond
}

// DiscoveryConfig selects and tunes the idea sources
type DiscoveryConfig struct {
	FeedURLs        []string `yaml:"feed_urls"`
	TrendsURL       string   `yaml:"trends_url"`
	TrendsSelector  string   `yaml:"trends_selector"`
	IdeaCount       int      `yaml:"idea_count"`
	IntervalMinutes int      `yaml:"interval_minutes"`
}

// BuildConfig tunes build scheduling and selection
type BuildConfig struct {
	IntervalMinutes  int     `yaml:"interval_minutes"`
	DeadlineMinutes  int     `yaml:"deadline_minutes"`
	ScoreThreshold   float64 `yaml:"score_threshold"`
	FailureThreshold int     `yaml:"failure_threshold"`
}

// DedupConfig carries the similarity thresholds. These are empirically
// chosen; they are configuration, not derived constants.
type DedupConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MinContainmentLen   int     `yaml:"min_containment_len"`
}

// PublishConfig locates the deploy target
type PublishConfig struct {
	Root    string `yaml:"root"`
	BaseURL string `yaml:"base_url"`
}

// LogConfig tunes log rotation
type LogConfig struct {
	Path     string `yaml:"path"`
	MaxBytes int64  `yaml:"max_bytes"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: ".autoforge/autoforge.db"},
		AI: AIConfig{
			MaxConcurrent: 5,
			MinIntervalMS: 2500,
		},
		Discovery: DiscoveryConfig{
			IdeaCount:       5,
			IntervalMinutes: 30,
		},
		Build: BuildConfig{
			IntervalMinutes:  5,
			DeadlineMinutes:  20,
			ScoreThreshold:   6.0,
			FailureThreshold: 3,
		},
		Dedup: DedupConfig{
			SimilarityThreshold: 0.6,
			MinContainmentLen:   5,
		},
		Publish: PublishConfig{Root: ".autoforge/apps"},
		Log: LogConfig{
			Path:     ".autoforge/autoforge.log",
			MaxBytes: 10 * 1024 * 1024,
		},
	}
}

// Load reads the config file at path, layering it over the defaults. A
// missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}
