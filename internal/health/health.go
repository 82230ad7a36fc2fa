// Package health maintains the status document external monitoring reads:
// uptime, queue depth, totals and the running flags. The core never acts on
// this document itself.
package health

import (
	"context"
	"fmt"
	"time"

	"autoforge/internal/storage"
	"autoforge/internal/types"
)

// Engine exposes the orchestrator state the reporter snapshots
type Engine interface {
	Discovering() bool
	Building() bool
	QueueDepth(ctx context.Context) (int, error)
}

// Reporter writes the status document on each health tick
type Reporter struct {
	store     storage.Storage
	engine    Engine
	startedAt time.Time
}

// New creates a reporter anchored at the current time
func New(store storage.Storage, engine Engine) (*Reporter, error) {
	if store == nil {
		return nil, fmt.Errorf("storage is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	return &Reporter{
		store:     store,
		engine:    engine,
		startedAt: time.Now(),
	}, nil
}

// StartedAt returns the reporter's anchor time
func (r *Reporter) StartedAt() time.Time {
	return r.startedAt
}

// Report snapshots the current state into the status document, replacing
// the previous one whole.
func (r *Reporter) Report(ctx context.Context, consecutiveLoopErrors int, paused bool) error {
	depth, err := r.engine.QueueDepth(ctx)
	if err != nil {
		return fmt.Errorf("failed to read queue depth: %w", err)
	}
	total, err := r.store.CountBuilt(ctx)
	if err != nil {
		return fmt.Errorf("failed to count built records: %w", err)
	}

	doc := &types.StatusDoc{
		StartedAt:             r.startedAt,
		UptimeSeconds:         int64(time.Since(r.startedAt).Seconds()),
		QueueDepth:            depth,
		TotalBuilt:            total,
		ConsecutiveLoopErrors: consecutiveLoopErrors,
		Discovering:           r.engine.Discovering(),
		Building:              r.engine.Building(),
		Paused:                paused,
		UpdatedAt:             time.Now(),
	}
	return r.store.SaveStatus(ctx, doc)
}
