// Package storage defines the persistence interface for candidate items,
// built records, failure entries and the status document, backed by SQLite.
package storage

import (
	"context"

	"autoforge/internal/types"
)

// Storage defines the interface for the persistent store. All shared state
// other than the dispatcher's counters is read and written through these
// whole-row operations; write concurrency is kept low by the single-flight
// build lock.
type Storage interface {
	// Candidate items
	CreateItem(ctx context.Context, item *types.CandidateItem) error
	GetItem(ctx context.Context, id string) (*types.CandidateItem, error)
	UpdateItemStatus(ctx context.Context, id string, status types.ItemStatus) error
	UpdateItemScore(ctx context.Context, id string, score float64, verdict string) error
	ListItemsByStatus(ctx context.Context, statuses ...types.ItemStatus) ([]*types.CandidateItem, error)

	// Built records
	SaveBuiltRecord(ctx context.Context, rec *types.BuiltRecord) error
	GetBuiltRecord(ctx context.Context, itemID string) (*types.BuiltRecord, error)
	GetBuiltRecordByPath(ctx context.Context, outputPath string) (*types.BuiltRecord, error)
	ListBuiltRecords(ctx context.Context) ([]*types.BuiltRecord, error)
	MarkDeployed(ctx context.Context, itemID, deployURL string) error
	CountBuilt(ctx context.Context) (int, error)

	// Failure entries (one row per item; success deletes the row)
	GetFailure(ctx context.Context, itemID string) (*types.FailureEntry, error)
	UpsertFailure(ctx context.Context, entry *types.FailureEntry) error
	DeleteFailure(ctx context.Context, itemID string) error
	ListFailures(ctx context.Context) (map[string]*types.FailureEntry, error)

	// Config (small key/value pairs: paused flag, schema version)
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error

	// Status document (single row, whole-document replace)
	SaveStatus(ctx context.Context, doc *types.StatusDoc) error
	GetStatus(ctx context.Context) (*types.StatusDoc, error)

	// Lifecycle
	Close() error
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path.
	// Default: ".autoforge/autoforge.db"
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Path: ".autoforge/autoforge.db",
	}
}

// NewStorage creates a new SQLite storage backend
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Path == "" {
		cfg.Path = ".autoforge/autoforge.db"
	}
	return newSQLite(cfg.Path)
}
