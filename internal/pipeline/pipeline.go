// Package pipeline is the stage pipeline and orchestrator: it moves items
// from discovered through scoring, build, quality gate and deploy, with a
// single-flight build worker, a hard per-build deadline, duplicate guards
// and per-item failure accounting.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"autoforge/internal/dedup"
	"autoforge/internal/failures"
	"autoforge/internal/gates"
	"autoforge/internal/source"
	"autoforge/internal/storage"
	"autoforge/internal/types"
)

var (
	// ErrBuildInProgress is returned when a build cycle is requested while
	// another one is running. The request has no side effects.
	ErrBuildInProgress = errors.New("build in progress")

	// ErrQueueEmpty is returned when no eligible item exists to build.
	// It is a normal cycle outcome, not a failure.
	ErrQueueEmpty = errors.New("queue empty")
)

// ScoreResult is a scorer's opinion of a candidate item. Verdict is an
// opaque pass/fail signal; the orchestrator additionally enforces a numeric
// floor as a consistency check.
type ScoreResult struct {
	Score   float64
	Verdict string
}

// Scorer rates candidate items
type Scorer interface {
	Score(ctx context.Context, item *types.CandidateItem) (*ScoreResult, error)
}

// Generator produces app artifacts through the build sub-stages. The design
// artifact from DesignSpec is the shared input of the generation sub-stages;
// those must never be called before it exists.
type Generator interface {
	DesignSpec(ctx context.Context, item *types.CandidateItem) (types.Artifact, error)
	GeneratePages(ctx context.Context, item *types.CandidateItem, design types.Artifact) ([]types.Artifact, error)
	GenerateStyles(ctx context.Context, item *types.CandidateItem, design types.Artifact) ([]types.Artifact, error)
	GenerateFile(ctx context.Context, item *types.CandidateItem, design types.Artifact, path, nudge string) (types.Artifact, error)
	RepairFile(ctx context.Context, item *types.CandidateItem, design, current types.Artifact) (types.Artifact, error)
}

// Publisher deploys a finished artifact set. An empty URL is not fatal when
// the push itself succeeded.
type Publisher interface {
	Push(ctx context.Context, rec *types.BuiltRecord, artifacts []types.Artifact) (string, error)
	Resume(ctx context.Context, rec *types.BuiltRecord) (string, error)
	HasMarker(outputPath string) bool
	OutputPath(slug string) string
}

// ItemSource discovers candidate ideas. Implemented by source.Multi.
type ItemSource interface {
	Discover(ctx context.Context) ([]source.Discovered, error)
}

const (
	// DefaultScoreThreshold is the numeric floor an item must clear, in
	// addition to a passing verdict, to become eligible for build
	DefaultScoreThreshold = 6.0

	// DefaultBuildDeadline is the wall-clock budget for one complete build,
	// from selection to deploy
	DefaultBuildDeadline = 20 * time.Minute

	// DefaultRepairMinRatio is the minimum size of a repaired artifact
	// relative to the original for the repair to be accepted
	DefaultRepairMinRatio = 0.5
)

// Config holds orchestrator configuration and collaborators
type Config struct {
	ScoreThreshold float64       // Numeric approval floor (default 6.0)
	BuildDeadline  time.Duration // Hard per-build wall-clock limit (default 20m)
	RepairMinRatio float64       // Repair acceptance size ratio (default 0.5)
	Dedup          dedup.Config  // Similarity thresholds

	Store     storage.Storage
	Scorer    Scorer
	Generator Generator
	Publisher Publisher
	Source    ItemSource
	Tracker   *failures.Tracker
	Gate      *gates.Runner
}

// Orchestrator owns the pipeline state machine. All mutable coordination
// state (the build queue, the running flags) lives on the instance; there
// are no package-level globals.
type Orchestrator struct {
	cfg   *Config
	index *dedup.Index

	// buildQueue is unbuffered and consumed by exactly one worker, so a
	// send succeeds only while the worker is idle. That makes the
	// at-most-one-build guarantee structural rather than convention.
	buildQueue chan string

	discovering atomic.Bool
	building    atomic.Bool
}

// New creates an orchestrator. Store, Scorer, Generator, Publisher and
// Tracker are required; zero-valued tuning fields select defaults.
func New(cfg *Config) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if cfg.Scorer == nil {
		return nil, fmt.Errorf("scorer is required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("publisher is required")
	}
	if cfg.Tracker == nil {
		return nil, fmt.Errorf("failure tracker is required")
	}
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = DefaultScoreThreshold
	}
	if cfg.BuildDeadline <= 0 {
		cfg.BuildDeadline = DefaultBuildDeadline
	}
	if cfg.RepairMinRatio <= 0 {
		cfg.RepairMinRatio = DefaultRepairMinRatio
	}
	if cfg.Gate == nil {
		cfg.Gate = gates.NewRunner(nil)
	}

	return &Orchestrator{
		cfg:        cfg,
		index:      dedup.New(cfg.Dedup),
		buildQueue: make(chan string),
	}, nil
}

// Start launches the single build worker. It returns immediately; the
// worker runs until ctx is cancelled.
func (o *Orchestrator) Start(ctx context.Context) {
	go o.buildWorker(ctx)
}

// buildWorker is the sole consumer of the build queue
func (o *Orchestrator) buildWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case reason := <-o.buildQueue:
			err := o.RunBuildCycle(ctx)
			switch {
			case err == nil:
			case errors.Is(err, ErrQueueEmpty):
				fmt.Printf("Build cycle (%s): nothing eligible\n", reason)
			default:
				fmt.Fprintf(os.Stderr, "Warning: build cycle (%s) failed: %v\n", reason, err)
			}
		}
	}
}

// TriggerBuild requests an asynchronous build cycle. It never blocks: when
// the worker is busy the request is dropped and ErrBuildInProgress is
// returned, with no side effects. A later cycle will pick the item up.
func (o *Orchestrator) TriggerBuild(reason string) error {
	select {
	case o.buildQueue <- reason:
		return nil
	default:
		return ErrBuildInProgress
	}
}

// Discovering reports whether a discovery cycle is currently running
func (o *Orchestrator) Discovering() bool {
	return o.discovering.Load()
}

// Building reports whether a build cycle is currently running
func (o *Orchestrator) Building() bool {
	return o.building.Load()
}

// QueueDepth returns the number of items a build cycle could actually
// select: queued items past the failure threshold are not counted, so the
// status document agrees with selection.
func (o *Orchestrator) QueueDepth(ctx context.Context) (int, error) {
	items, err := o.cfg.Store.ListItemsByStatus(ctx, types.StatusApproved, types.StatusFailed)
	if err != nil {
		return 0, err
	}
	depth := 0
	for _, item := range items {
		eligible, err := o.cfg.Tracker.Eligible(ctx, item.ID)
		if err != nil {
			return 0, err
		}
		if eligible {
			depth++
		}
	}
	return depth, nil
}
