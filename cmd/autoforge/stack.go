package main

import (
	"time"

	"autoforge/internal/ai"
	"autoforge/internal/dedup"
	"autoforge/internal/dispatch"
	"autoforge/internal/failures"
	"autoforge/internal/pipeline"
	"autoforge/internal/publish"
	"autoforge/internal/source"
	"autoforge/internal/storage"
)

// buildEngine wires the full pipeline from the loaded config. The AI client
// serves as scorer, generator and idea proposer; every one of its calls is
// paced by the shared dispatcher.
func buildEngine(store storage.Storage) (*pipeline.Orchestrator, error) {
	dispatcher := dispatch.New(cfg.AI.MaxConcurrent, cfg.AI.MinInterval())

	client, err := ai.NewClient(&ai.Config{
		Model:        cfg.AI.Model,
		ScoringModel: cfg.AI.ScoringModel,
		Dispatcher:   dispatcher,
	})
	if err != nil {
		return nil, err
	}

	publisher, err := publish.NewDirPublisher(cfg.Publish.Root, cfg.Publish.BaseURL)
	if err != nil {
		return nil, err
	}

	tracker, err := failures.New(store, cfg.Build.FailureThreshold)
	if err != nil {
		return nil, err
	}

	return pipeline.New(&pipeline.Config{
		ScoreThreshold: cfg.Build.ScoreThreshold,
		BuildDeadline:  time.Duration(cfg.Build.DeadlineMinutes) * time.Minute,
		Dedup: dedup.Config{
			SimilarityThreshold: cfg.Dedup.SimilarityThreshold,
			MinContainmentLen:   cfg.Dedup.MinContainmentLen,
		},
		Store:     store,
		Scorer:    client,
		Generator: client,
		Publisher: publisher,
		Source:    buildSources(client),
		Tracker:   tracker,
	})
}

// buildSources assembles the configured discovery sources. A nil proposer
// leaves out the AI idea source.
func buildSources(proposer source.IdeaProposer) *source.Multi {
	var srcs []source.Source
	if len(cfg.Discovery.FeedURLs) > 0 {
		srcs = append(srcs, source.NewFeedSource(cfg.Discovery.FeedURLs, 0))
	}
	if cfg.Discovery.TrendsURL != "" {
		srcs = append(srcs, source.NewTrendSource(cfg.Discovery.TrendsURL, cfg.Discovery.TrendsSelector, 0))
	}
	if proposer != nil {
		srcs = append(srcs, source.NewIdeaSource(proposer, cfg.Discovery.IdeaCount))
	}
	return source.NewMulti(srcs...)
}
