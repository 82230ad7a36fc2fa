package ai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON pulls a JSON value out of a model response that may be
// wrapped in markdown code fences or surrounded by prose. Strategies are
// tried in order: direct parse, fence removal, then bracket extraction.
func ExtractJSON(text string) (string, error) {
	candidate := strings.TrimSpace(text)
	if json.Valid([]byte(candidate)) {
		return candidate, nil
	}

	// Strip ```json ... ``` fences
	if idx := strings.Index(candidate, "```"); idx >= 0 {
		rest := candidate[idx+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			fenced := strings.TrimSpace(rest[:end])
			if json.Valid([]byte(fenced)) {
				return fenced, nil
			}
			candidate = fenced
		}
	}

	// Extract the outermost JSON object or array from mixed content
	for _, pair := range [][2]byte{{'{', '}'}, {'[', ']'}} {
		start := strings.IndexByte(candidate, pair[0])
		end := strings.LastIndexByte(candidate, pair[1])
		if start >= 0 && end > start {
			extracted := candidate[start : end+1]
			if json.Valid([]byte(extracted)) {
				return extracted, nil
			}
		}
	}

	return "", fmt.Errorf("no valid JSON found in response")
}

// parseInto extracts JSON from a response and unmarshals it
func parseInto(text string, v interface{}) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("failed to unmarshal response JSON: %w", err)
	}
	return nil
}
