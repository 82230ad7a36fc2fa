package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoforge/internal/health"
	"autoforge/internal/storage"
)

type stubEngine struct {
	mu            sync.Mutex
	discoverCalls int
	buildCalls    int
	discoverErr   error
}

func (e *stubEngine) Start(ctx context.Context) {}

func (e *stubEngine) DiscoverAndScore(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.discoverCalls++
	return e.discoverErr
}

func (e *stubEngine) TriggerBuild(reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buildCalls++
	return nil
}

func (e *stubEngine) Discovering() bool { return false }
func (e *stubEngine) Building() bool    { return false }
func (e *stubEngine) QueueDepth(ctx context.Context) (int, error) {
	return 0, nil
}

func (e *stubEngine) counts() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.discoverCalls, e.buildCalls
}

func newTestScheduler(t *testing.T, mutate func(cfg *Config)) (*Scheduler, *stubEngine, storage.Storage) {
	t.Helper()
	store, err := storage.NewStorage(context.Background(), &storage.Config{
		Path: filepath.Join(t.TempDir(), "sched.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine := &stubEngine{}
	reporter, err := health.New(store, engine)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.TickInterval = 10 * time.Millisecond
	cfg.DiscoverInterval = time.Millisecond
	cfg.BuildInterval = time.Millisecond
	cfg.HealthInterval = time.Millisecond
	cfg.Store = store
	cfg.Engine = engine
	cfg.Health = reporter
	if mutate != nil {
		mutate(cfg)
	}

	s, err := New(cfg)
	require.NoError(t, err)
	return s, engine, store
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(&Config{})
	assert.Error(t, err)
}

func TestTickFiresDueCycles(t *testing.T) {
	s, engine, store := newTestScheduler(t, nil)
	ctx := context.Background()

	s.tick(ctx)

	require.Eventually(t, func() bool {
		discovers, builds := engine.counts()
		return discovers == 1 && builds == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		_, err := store.GetStatus(ctx)
		return err == nil
	}, 2*time.Second, 5*time.Millisecond, "health cycle writes the status doc")
}

func TestTickDoesNotRefireBeforeIntervalElapses(t *testing.T) {
	s, engine, _ := newTestScheduler(t, func(cfg *Config) {
		cfg.DiscoverInterval = time.Hour
		cfg.BuildInterval = time.Hour
	})
	ctx := context.Background()

	s.tick(ctx)
	s.tick(ctx)

	require.Eventually(t, func() bool {
		discovers, builds := engine.counts()
		return discovers == 1 && builds == 1
	}, 2*time.Second, 5*time.Millisecond)

	time.Sleep(20 * time.Millisecond)
	discovers, builds := engine.counts()
	assert.Equal(t, 1, discovers)
	assert.Equal(t, 1, builds)
}

func TestPausedSkipsWorkCyclesButNotHealth(t *testing.T) {
	s, engine, store := newTestScheduler(t, nil)
	ctx := context.Background()

	require.NoError(t, SetPaused(ctx, store, true))
	s.tick(ctx)

	require.Eventually(t, func() bool {
		doc, err := store.GetStatus(ctx)
		return err == nil && doc.Paused
	}, 2*time.Second, 5*time.Millisecond)

	discovers, builds := engine.counts()
	assert.Zero(t, discovers, "paused loop fires no discovery")
	assert.Zero(t, builds, "paused loop fires no builds")

	require.NoError(t, SetPaused(ctx, store, false))
	s.tick(ctx)
	require.Eventually(t, func() bool {
		discovers, _ := engine.counts()
		return discovers == 1
	}, 2*time.Second, 5*time.Millisecond, "resume restores work cycles")
}

func TestLoopErrorBacksOffWorkCycles(t *testing.T) {
	s, engine, _ := newTestScheduler(t, func(cfg *Config) {
		cfg.TickInterval = time.Hour // Backoff base; keeps the hold window wide
	})
	engine.discoverErr = errors.New("source exploded")
	ctx := context.Background()

	s.tick(ctx)
	require.Eventually(t, func() bool {
		return s.ConsecutiveErrors() == 1
	}, 2*time.Second, 5*time.Millisecond)

	// Next tick falls inside the hold window: no new work is fired
	s.tick(ctx)
	time.Sleep(20 * time.Millisecond)
	discovers, _ := engine.counts()
	assert.Equal(t, 1, discovers, "work cycles held during backoff")
}

func TestBackoffClearsOnSuccess(t *testing.T) {
	s, _, _ := newTestScheduler(t, nil)

	s.noteError("discover", errors.New("boom"))
	s.noteError("discover", errors.New("boom"))
	assert.Equal(t, 2, s.ConsecutiveErrors())

	s.noteSuccess()
	assert.Zero(t, s.ConsecutiveErrors())
	s.mu.Lock()
	held := s.holdUntil
	s.mu.Unlock()
	assert.True(t, held.IsZero())
}

func TestIsPausedDefaultsFalse(t *testing.T) {
	_, _, store := newTestScheduler(t, nil)
	assert.False(t, IsPaused(context.Background(), store))
}

func TestRotateLog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "autoforge.log")

	require.NoError(t, RotateLog(path, 100), "missing file is a no-op")

	require.NoError(t, os.WriteFile(path, []byte("short"), 0644))
	require.NoError(t, RotateLog(path, 100))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "short", string(data), "small file untouched")

	big := make([]byte, 200)
	require.NoError(t, os.WriteFile(path, big, 0644))
	require.NoError(t, RotateLog(path, 100))

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data, "oversized file truncated")

	old, err := os.ReadFile(path + ".old")
	require.NoError(t, err)
	assert.Len(t, old, 200, "previous contents kept in .old")
}
