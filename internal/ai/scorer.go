package ai

import (
	"context"
	"fmt"

	"autoforge/internal/pipeline"
	"autoforge/internal/types"
)

// Compile-time check that Client implements the pipeline's Scorer contract
var _ pipeline.Scorer = (*Client)(nil)

const scorePrompt = `You rate app ideas for an automated web app factory.

Idea: %q
Notes: %s

Rate how desirable and feasible this is as a small static web app
(plain HTML/CSS/JS, no backend). Respond with JSON only:
{"score": 0.0-10.0, "verdict": "pass" or "fail", "reasoning": "one sentence"}`

// scoreResponse is the wire shape of a scoring reply
type scoreResponse struct {
	Score     float64 `json:"score"`
	Verdict   string  `json:"verdict"`
	Reasoning string  `json:"reasoning"`
}

// Score rates a candidate item. The verdict is an opaque pass/fail signal;
// the orchestrator additionally enforces its own numeric floor as a
// consistency check.
func (c *Client) Score(ctx context.Context, item *types.CandidateItem) (*pipeline.ScoreResult, error) {
	prompt := fmt.Sprintf(scorePrompt, item.Title, item.Description)

	text, err := c.complete(ctx, fmt.Sprintf("score %s", item.ID), c.scoringModel, prompt, 512)
	if err != nil {
		return nil, err
	}

	var resp scoreResponse
	if err := parseInto(text, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse score for %s: %w", item.ID, err)
	}

	if resp.Score < 0 {
		resp.Score = 0
	}
	if resp.Score > 10 {
		resp.Score = 10
	}

	return &pipeline.ScoreResult{
		Score:   resp.Score,
		Verdict: resp.Verdict,
	}, nil
}
