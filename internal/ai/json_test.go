package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONDirect(t *testing.T) {
	raw, err := ExtractJSON(`{"score": 7.5, "verdict": "pass"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"score": 7.5, "verdict": "pass"}`, raw)
}

func TestExtractJSONFenced(t *testing.T) {
	raw, err := ExtractJSON("Here is the result:\n```json\n{\"score\": 3}\n```\nDone.")
	require.NoError(t, err)
	assert.JSONEq(t, `{"score": 3}`, raw)
}

func TestExtractJSONMixedContent(t *testing.T) {
	raw, err := ExtractJSON(`Sure! The design is {"name": "app", "files": []} as requested.`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name": "app", "files": []}`, raw)
}

func TestExtractJSONArray(t *testing.T) {
	raw, err := ExtractJSON("```\n[{\"path\": \"index.html\", \"content\": \"x\"}]\n```")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"path": "index.html", "content": "x"}]`, raw)
}

func TestExtractJSONNoJSON(t *testing.T) {
	_, err := ExtractJSON("I could not produce a design this time.")
	assert.Error(t, err)
}

func TestParseInto(t *testing.T) {
	var v struct {
		Score float64 `json:"score"`
	}
	require.NoError(t, parseInto("```json\n{\"score\": 9.1}\n```", &v))
	assert.Equal(t, 9.1, v.Score)
}
