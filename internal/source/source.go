// Package source discovers candidate app ideas from multiple places: RSS
// feeds, a scraped trends page, and the AI model itself. Sources may fail
// individually; discovery only fails when every source does, and a cycle
// that finds zero items is not an error.
package source

import (
	"context"
	"fmt"
	"os"
)

// Idea is a raw discovered app idea before admission and scoring
type Idea struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// Discovered pairs an idea with the source that found it
type Discovered struct {
	Idea
	Source string
}

// Source yields candidate ideas from one origin
type Source interface {
	// Name identifies the source in logs and item records
	Name() string

	// Discover returns the source's current candidate ideas. Returning an
	// empty list is valid and not an error.
	Discover(ctx context.Context) ([]Idea, error)
}

// Multi fans discovery out across sources, tolerating per-source failure
type Multi struct {
	sources []Source
}

// NewMulti creates a multi-source aggregator
func NewMulti(sources ...Source) *Multi {
	return &Multi{sources: sources}
}

// Discover runs every source in order and combines the results. A failing
// source is logged and skipped; an error is returned only when all sources
// fail and nothing was discovered.
func (m *Multi) Discover(ctx context.Context) ([]Discovered, error) {
	var all []Discovered
	failed := 0

	for _, src := range m.sources {
		ideas, err := src.Discover(ctx)
		if err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "Warning: source %s failed: %v\n", src.Name(), err)
			continue
		}
		fmt.Printf("Source %s discovered %d candidate(s)\n", src.Name(), len(ideas))
		for _, idea := range ideas {
			if idea.Title == "" {
				continue
			}
			all = append(all, Discovered{Idea: idea, Source: src.Name()})
		}
	}

	if len(all) == 0 && failed > 0 && failed == len(m.sources) {
		return nil, fmt.Errorf("all %d sources failed", failed)
	}
	return all, nil
}
