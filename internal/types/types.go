package types

import (
	"fmt"
	"time"
)

// ItemStatus represents the lifecycle state of a candidate item
type ItemStatus string

const (
	StatusDiscovered ItemStatus = "discovered" // Found by a source, not yet scored
	StatusApproved   ItemStatus = "approved"   // Scored above threshold, eligible for build
	StatusBuilding   ItemStatus = "building"   // Currently owned by a build attempt
	StatusBuilt      ItemStatus = "built"      // Build completed, BuiltRecord written
	StatusFailed     ItemStatus = "failed"     // Last build attempt failed
	StatusSkipped    ItemStatus = "skipped"    // Rejected (duplicate or below score threshold)
)

// IsValid checks if the status is a known value
func (s ItemStatus) IsValid() bool {
	switch s {
	case StatusDiscovered, StatusApproved, StatusBuilding, StatusBuilt, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// CandidateItem is a discovered unit of potential work flowing through the
// pipeline. Items are never deleted, only transitioned between statuses.
type CandidateItem struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Source      string     `json:"source"` // Which source discovered it (e.g., "feeds", "trends", "ideas")
	Score       float64    `json:"score"`
	Verdict     string     `json:"verdict,omitempty"` // Opaque pass/fail signal from the scorer
	Status      ItemStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Validate checks that required fields are set
func (i *CandidateItem) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("item ID is required")
	}
	if i.Title == "" {
		return fmt.Errorf("item title is required")
	}
	if !i.Status.IsValid() {
		return fmt.Errorf("invalid item status: %q", i.Status)
	}
	return nil
}

// Artifact is a single generated file (path relative to the app root plus
// its full content). The pipeline does not interpret content beyond the
// length and pattern heuristics applied by the quality gate.
type Artifact struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// BuildAttempt is ephemeral state scoped to one execution of the build
// pipeline for one item. It is owned exclusively by the orchestrator
// invocation that created it and is discarded (or converted into a
// BuiltRecord) when the attempt ends.
type BuildAttempt struct {
	Item         *CandidateItem
	StartedAt    time.Time
	Design       *Artifact  // Shared design artifact; generation stages must not start before it exists
	Artifacts    []Artifact // Merged output of all generation stages
	QualityScore float64
	Resumed      bool // True when deploying pre-existing artifacts for an unfinished build
}

// BuiltRecord is the terminal record of a completed build. Immutable once
// written except for the late-bound deploy URL.
type BuiltRecord struct {
	ItemID       string    `json:"item_id"`
	Title        string    `json:"title"`
	Slug         string    `json:"slug"`
	OutputPath   string    `json:"output_path"`
	QualityScore float64   `json:"quality_score"`
	DeployURL    string    `json:"deploy_url,omitempty"`
	Deployed     bool      `json:"deployed"` // True once the deploy marker is written
	BuiltAt      time.Time `json:"built_at"`
}

// FailureEntry tracks consecutive build failures for one item. Created on
// first failure, incremented on each subsequent one, deleted on success.
type FailureEntry struct {
	ItemID        string    `json:"item_id"`
	Count         int       `json:"count"`
	LastError     string    `json:"last_error,omitempty"`
	LastFailureAt time.Time `json:"last_failure_at"`
}

// StatusDoc is the small health/status document updated each health-check
// tick. Consumed by external monitoring (and the status command); the core
// never acts on it.
type StatusDoc struct {
	StartedAt             time.Time `json:"started_at"`
	UptimeSeconds         int64     `json:"uptime_seconds"`
	QueueDepth            int       `json:"queue_depth"`
	TotalBuilt            int       `json:"total_built"`
	ConsecutiveLoopErrors int       `json:"consecutive_loop_errors"`
	Discovering           bool      `json:"discovering"`
	Building              bool      `json:"building"`
	Paused                bool      `json:"paused"`
	UpdatedAt             time.Time `json:"updated_at"`
}
