// Package scheduler runs the perpetual loop: a short tick that fires the
// discover, build, health and log-rotation cycles on independent timers.
// Cycles run detached; the loop never waits for one, and a failing or
// panicking cycle only backs the loop off, never stops it.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"autoforge/internal/health"
	"autoforge/internal/pipeline"
	"autoforge/internal/storage"
)

const (
	// DefaultTickInterval is how often the loop checks which cycles are due
	DefaultTickInterval = 5 * time.Second

	// DefaultDiscoverInterval is the gap between discovery cycles
	DefaultDiscoverInterval = 30 * time.Minute

	// DefaultBuildInterval is the gap between scheduled build triggers.
	// Approvals trigger builds immediately; this is the catch-up path for
	// items left queued while a build was in flight.
	DefaultBuildInterval = 5 * time.Minute

	// DefaultHealthInterval is the gap between status document updates
	DefaultHealthInterval = 30 * time.Second

	// DefaultRotateInterval is the gap between log rotation checks
	DefaultRotateInterval = 1 * time.Hour

	// DefaultMaxLogBytes is the size at which the log file is rotated
	DefaultMaxLogBytes = 10 * 1024 * 1024

	// maxLoopBackoff caps the exponential backoff after loop-level errors
	maxLoopBackoff = 10 * time.Minute

	// pausedKey is the config key for the pause flag
	pausedKey = "paused"
)

// Engine is the orchestrator surface the scheduler drives
type Engine interface {
	Start(ctx context.Context)
	DiscoverAndScore(ctx context.Context) error
	TriggerBuild(reason string) error
	Discovering() bool
	Building() bool
	QueueDepth(ctx context.Context) (int, error)
}

// Compile-time check that the orchestrator satisfies the engine surface
var _ Engine = (*pipeline.Orchestrator)(nil)

// Config holds scheduler configuration
type Config struct {
	TickInterval     time.Duration
	DiscoverInterval time.Duration
	BuildInterval    time.Duration
	HealthInterval   time.Duration
	RotateInterval   time.Duration
	LogPath          string // Empty disables rotation
	MaxLogBytes      int64

	Store  storage.Storage
	Engine Engine
	Health *health.Reporter
}

// DefaultConfig returns a config with default intervals
func DefaultConfig() *Config {
	return &Config{
		TickInterval:     DefaultTickInterval,
		DiscoverInterval: DefaultDiscoverInterval,
		BuildInterval:    DefaultBuildInterval,
		HealthInterval:   DefaultHealthInterval,
		RotateInterval:   DefaultRotateInterval,
		MaxLogBytes:      DefaultMaxLogBytes,
	}
}

// Scheduler owns the loop state: per-cycle last-fired times and the
// loop-level error backoff
type Scheduler struct {
	cfg    *Config
	id     string
	store  storage.Storage
	engine Engine
	health *health.Reporter

	mu           sync.Mutex
	lastDiscover time.Time
	lastBuild    time.Time
	lastHealth   time.Time
	lastRotate   time.Time
	loopErrors   int
	holdUntil    time.Time
}

// New creates a scheduler. Store, Engine and Health are required.
func New(cfg *Config) (*Scheduler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if cfg.Health == nil {
		return nil, fmt.Errorf("health reporter is required")
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.DiscoverInterval <= 0 {
		cfg.DiscoverInterval = DefaultDiscoverInterval
	}
	if cfg.BuildInterval <= 0 {
		cfg.BuildInterval = DefaultBuildInterval
	}
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = DefaultHealthInterval
	}
	if cfg.RotateInterval <= 0 {
		cfg.RotateInterval = DefaultRotateInterval
	}
	if cfg.MaxLogBytes <= 0 {
		cfg.MaxLogBytes = DefaultMaxLogBytes
	}

	return &Scheduler{
		cfg:    cfg,
		id:     uuid.New().String()[:8],
		store:  cfg.Store,
		engine: cfg.Engine,
		health: cfg.Health,
	}, nil
}

// Run starts the build worker and loops until ctx is cancelled. Item- and
// loop-level failures never return; only cancellation does.
func (s *Scheduler) Run(ctx context.Context) error {
	fmt.Printf("Scheduler %s starting (tick %s, discover %s, build %s)\n",
		s.id, s.cfg.TickInterval, s.cfg.DiscoverInterval, s.cfg.BuildInterval)

	s.engine.Start(ctx)

	// First status write happens immediately so monitoring sees the
	// process as soon as it is up
	if err := s.health.Report(ctx, 0, s.paused(ctx)); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: initial status write failed: %v\n", err)
	}
	s.mu.Lock()
	s.lastHealth = time.Now()
	s.mu.Unlock()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Printf("Scheduler %s stopping\n", s.id)
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick fires every cycle that is due. Work cycles honor the pause flag and
// the error backoff hold; the health cycle always runs.
func (s *Scheduler) tick(ctx context.Context) {
	now := time.Now()
	paused := s.paused(ctx)

	s.mu.Lock()
	held := now.Before(s.holdUntil)
	discoverDue := now.Sub(s.lastDiscover) >= s.cfg.DiscoverInterval
	buildDue := now.Sub(s.lastBuild) >= s.cfg.BuildInterval
	healthDue := now.Sub(s.lastHealth) >= s.cfg.HealthInterval
	rotateDue := s.cfg.LogPath != "" && now.Sub(s.lastRotate) >= s.cfg.RotateInterval

	if !paused && !held {
		if discoverDue {
			s.lastDiscover = now
		}
		if buildDue {
			s.lastBuild = now
		}
	}
	if healthDue {
		s.lastHealth = now
	}
	if rotateDue {
		s.lastRotate = now
	}
	loopErrors := s.loopErrors
	s.mu.Unlock()

	if !paused && !held {
		if discoverDue {
			s.launch(ctx, "discover", s.engine.DiscoverAndScore, true)
		}
		if buildDue {
			// Non-blocking; a busy worker means the item waits for the
			// next due build
			_ = s.engine.TriggerBuild("schedule")
		}
	}

	if healthDue {
		s.launch(ctx, "health", func(ctx context.Context) error {
			s.mu.Lock()
			n := s.loopErrors
			s.mu.Unlock()
			return s.health.Report(ctx, n, paused)
		}, false)
	}
	if rotateDue {
		s.launch(ctx, "rotate", func(context.Context) error {
			return RotateLog(s.cfg.LogPath, s.cfg.MaxLogBytes)
		}, false)
	}

	if held && loopErrors > 0 {
		fmt.Printf("Scheduler %s holding work cycles after %d consecutive errors\n", s.id, loopErrors)
	}
}

// launch runs one cycle detached; the loop never waits for it. A panic or
// error from a counted cycle feeds the loop backoff; maintenance cycles
// (health, rotation) only warn, so their outcomes cannot mask a failing
// work cycle.
func (s *Scheduler) launch(ctx context.Context, name string, fn func(context.Context) error, counted bool) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				if counted {
					s.noteError(name, fmt.Errorf("panic: %v", r))
				} else {
					fmt.Fprintf(os.Stderr, "Warning: %s cycle panicked: %v\n", name, r)
				}
			}
		}()
		err := fn(ctx)
		if !counted {
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: %s cycle failed: %v\n", name, err)
			}
			return
		}
		if err != nil {
			s.noteError(name, err)
			return
		}
		s.noteSuccess()
	}()
}

// noteError counts a loop-level failure and extends the hold exponentially
func (s *Scheduler) noteError(cycle string, err error) {
	s.mu.Lock()
	s.loopErrors++
	backoff := s.cfg.TickInterval * (1 << (s.loopErrors - 1))
	if backoff > maxLoopBackoff {
		backoff = maxLoopBackoff
	}
	s.holdUntil = time.Now().Add(backoff)
	n := s.loopErrors
	s.mu.Unlock()

	fmt.Fprintf(os.Stderr, "Warning: %s cycle failed (consecutive errors %d, backing off %s): %v\n",
		cycle, n, backoff, err)
}

// noteSuccess resets the loop backoff
func (s *Scheduler) noteSuccess() {
	s.mu.Lock()
	s.loopErrors = 0
	s.holdUntil = time.Time{}
	s.mu.Unlock()
}

// ConsecutiveErrors returns the current loop-level error count
func (s *Scheduler) ConsecutiveErrors() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loopErrors
}

// paused reads the pause flag; a read failure counts as not paused
func (s *Scheduler) paused(ctx context.Context) bool {
	return IsPaused(ctx, s.store)
}

// IsPaused reads the persisted pause flag
func IsPaused(ctx context.Context, store storage.Storage) bool {
	val, err := store.GetConfig(ctx, pausedKey)
	if err != nil {
		return false
	}
	paused, _ := strconv.ParseBool(val)
	return paused
}

// SetPaused persists the pause flag consulted by the loop on each tick
func SetPaused(ctx context.Context, store storage.Storage, paused bool) error {
	return store.SetConfig(ctx, pausedKey, strconv.FormatBool(paused))
}

// RotateLog truncates an oversized log file, keeping the previous contents
// in a single .old sibling
func RotateLog(path string, maxBytes int64) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Size() <= maxBytes {
		return nil
	}

	old := path + ".old"
	if err := os.Rename(path, old); err != nil {
		return fmt.Errorf("failed to rotate log: %w", err)
	}
	if err := os.WriteFile(path, nil, 0644); err != nil {
		return fmt.Errorf("failed to recreate log: %w", err)
	}
	fmt.Printf("Rotated log %s (%d bytes) to %s\n", path, info.Size(), old)
	return nil
}
