package source

import (
	"context"
)

// IdeaProposer is implemented by the AI client: it invents fresh app ideas
// when the external sources run dry or are not configured.
type IdeaProposer interface {
	ProposeIdeas(ctx context.Context, count int) ([]Idea, error)
}

// IdeaSource wraps an IdeaProposer as a discovery source
type IdeaSource struct {
	proposer IdeaProposer
	count    int
}

// NewIdeaSource creates an AI-backed idea source. count is how many ideas
// to request per cycle (default 5).
func NewIdeaSource(proposer IdeaProposer, count int) *IdeaSource {
	if count <= 0 {
		count = 5
	}
	return &IdeaSource{proposer: proposer, count: count}
}

// Name implements Source
func (s *IdeaSource) Name() string {
	return "ideas"
}

// Discover implements Source
func (s *IdeaSource) Discover(ctx context.Context) ([]Idea, error) {
	return s.proposer.ProposeIdeas(ctx, s.count)
}
