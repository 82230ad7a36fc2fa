package gates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoforge/internal/types"
)

func completeArtifacts() []types.Artifact {
	return []types.Artifact{
		FallbackMarkup("Budget Tracker"),
		FallbackStyles(),
		FallbackScript("Budget Tracker"),
	}
}

func TestEvaluateCompleteSetPasses(t *testing.T) {
	r := NewRunner(nil)

	report := r.Evaluate(completeArtifacts())
	assert.True(t, report.Passed(r.PassThreshold()), "fallback set must clear the gate: %s", report.Summary())
	assert.Empty(t, report.Missing)
}

func TestEvaluateEmptySetScoresZeroish(t *testing.T) {
	r := NewRunner(nil)

	report := r.Evaluate(nil)
	assert.False(t, report.Passed(r.PassThreshold()))
	assert.ElementsMatch(t, []string{"markup", "styles", "script"}, report.Missing)
}

func TestEvaluateScoreIsBounded(t *testing.T) {
	r := NewRunner(nil)

	for _, artifacts := range [][]types.Artifact{
		nil,
		completeArtifacts(),
		{{Path: "index.html", Content: "x"}},
	} {
		report := r.Evaluate(artifacts)
		assert.GreaterOrEqual(t, report.Score, 0.0)
		assert.LessOrEqual(t, report.Score, 1.0)
	}
}

func TestEvaluateDetectsMissingCategory(t *testing.T) {
	r := NewRunner(nil)

	artifacts := []types.Artifact{
		FallbackMarkup("Notes"),
		FallbackScript("Notes"),
	}
	report := r.Evaluate(artifacts)
	assert.Contains(t, report.Missing, "styles")
	assert.NotContains(t, report.Missing, "markup")
}

func TestRemediateInjectsOnlyMissingUnits(t *testing.T) {
	r := NewRunner(nil)

	artifacts := []types.Artifact{FallbackMarkup("Notes")}
	report := r.Evaluate(artifacts)
	require.ElementsMatch(t, []string{"styles", "script"}, report.Missing)

	remediated := r.Remediate("Notes", artifacts, report)
	assert.Len(t, remediated, 3)

	// Remediation must improve the recomputed score
	after := r.Evaluate(remediated)
	assert.Greater(t, after.Score, report.Score)
	assert.Empty(t, after.Missing)
}

func TestShortArtifactsFlagged(t *testing.T) {
	r := NewRunner(&Config{MinArtifactBytes: 50})

	artifacts := append(completeArtifacts(), types.Artifact{Path: "extra.js", Content: "//"})
	report := r.Evaluate(artifacts)

	var found bool
	for _, c := range report.Checks {
		if c.Name == "no-short-artifacts" {
			found = true
			assert.False(t, c.Passed)
		}
	}
	require.True(t, found)
}
