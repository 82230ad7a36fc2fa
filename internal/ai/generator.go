package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"autoforge/internal/pipeline"
	"autoforge/internal/source"
	"autoforge/internal/types"
)

// Compile-time checks against the contracts the client fulfills
var (
	_ pipeline.Generator  = (*Client)(nil)
	_ source.IdeaProposer = (*Client)(nil)
)

const designPrompt = `You design small static web apps for an automated factory.

App idea: %q
Notes: %s

Produce a compact design document. Respond with JSON only:
{
  "name": "app name",
  "summary": "what the app does in 2-3 sentences",
  "files": [
    {"path": "index.html", "purpose": "..."},
    {"path": "style.css", "purpose": "..."},
    {"path": "app.js", "purpose": "..."}
  ]
}
List every file the app needs. Paths are relative, flat, lowercase.`

const pagesPrompt = `You implement static web apps from a design document.

Design document:
%s

Write the complete content of every HTML page the design lists.
Use relative links for stylesheets and scripts exactly as named in the design.
Respond with a JSON array only:
[{"path": "index.html", "content": "<!DOCTYPE html>..."}]`

const stylesPrompt = `You implement static web apps from a design document.

Design document:
%s

Write the complete content of every stylesheet and script the design lists
(.css and .js files; do not write HTML pages).
Respond with a JSON array only:
[{"path": "style.css", "content": "..."}]`

const filePrompt = `You implement one file of a static web app from a design document.

Design document:
%s

Write the complete content of %q. %s
Respond with JSON only: {"path": %q, "content": "..."}`

// DesignSpec runs the interface/schema design sub-stage. Its result is the
// shared input of the generation sub-stages, which must not start before it
// exists.
func (c *Client) DesignSpec(ctx context.Context, item *types.CandidateItem) (types.Artifact, error) {
	prompt := fmt.Sprintf(designPrompt, item.Title, item.Description)

	text, err := c.complete(ctx, fmt.Sprintf("design %s", item.ID), c.model, prompt, 2048)
	if err != nil {
		return types.Artifact{}, err
	}

	raw, err := ExtractJSON(text)
	if err != nil {
		return types.Artifact{}, fmt.Errorf("failed to parse design for %s: %w", item.ID, err)
	}

	return types.Artifact{Path: "design.json", Content: raw}, nil
}

// GeneratePages generates all HTML pages as one batch
func (c *Client) GeneratePages(ctx context.Context, item *types.CandidateItem, design types.Artifact) ([]types.Artifact, error) {
	return c.generateBatch(ctx, fmt.Sprintf("pages %s", item.ID), fmt.Sprintf(pagesPrompt, design.Content))
}

// GenerateStyles generates all stylesheets and scripts as one batch
func (c *Client) GenerateStyles(ctx context.Context, item *types.CandidateItem, design types.Artifact) ([]types.Artifact, error) {
	return c.generateBatch(ctx, fmt.Sprintf("styles %s", item.ID), fmt.Sprintf(stylesPrompt, design.Content))
}

func (c *Client) generateBatch(ctx context.Context, label, prompt string) ([]types.Artifact, error) {
	text, err := c.complete(ctx, label, c.model, prompt, 8192)
	if err != nil {
		return nil, err
	}

	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", label, err)
	}

	var artifacts []types.Artifact
	if err := json.Unmarshal([]byte(raw), &artifacts); err != nil {
		return nil, fmt.Errorf("%s: failed to unmarshal artifacts: %w", label, err)
	}
	return artifacts, nil
}

// GenerateFile generates a single artifact. Used by the per-file fallback
// when batch generation fails or falls short; nudge carries extra guidance
// on the second try for a file that failed once already.
func (c *Client) GenerateFile(ctx context.Context, item *types.CandidateItem, design types.Artifact, path, nudge string) (types.Artifact, error) {
	prompt := fmt.Sprintf(filePrompt, design.Content, path, nudge, path)

	text, err := c.complete(ctx, fmt.Sprintf("file %s %s", item.ID, path), c.model, prompt, 8192)
	if err != nil {
		return types.Artifact{}, err
	}

	var artifact types.Artifact
	if err := parseInto(text, &artifact); err != nil {
		return types.Artifact{}, fmt.Errorf("failed to parse artifact %s: %w", path, err)
	}
	if artifact.Path == "" {
		artifact.Path = path
	}
	return artifact, nil
}

// RepairFile rewrites one artifact to reconcile it against the design
// document, given its current (suspect) content.
func (c *Client) RepairFile(ctx context.Context, item *types.CandidateItem, design types.Artifact, current types.Artifact) (types.Artifact, error) {
	prompt := fmt.Sprintf(`You repair one file of a static web app so it matches its design document.

Design document:
%s

Current content of %q:
%s

Rewrite the file so it fully integrates with the files and element ids the
design names, keeping everything that already works.
Respond with JSON only: {"path": %q, "content": "..."}`,
		design.Content, current.Path, current.Content, current.Path)

	text, err := c.complete(ctx, fmt.Sprintf("repair %s %s", item.ID, current.Path), c.model, prompt, 8192)
	if err != nil {
		return types.Artifact{}, err
	}

	var artifact types.Artifact
	if err := parseInto(text, &artifact); err != nil {
		return types.Artifact{}, fmt.Errorf("failed to parse repaired %s: %w", current.Path, err)
	}
	if artifact.Path == "" {
		artifact.Path = current.Path
	}
	return artifact, nil
}

// ProposeIdeas asks the model for fresh app ideas. Used by the idea source
// alongside the feed and trend sources.
func (c *Client) ProposeIdeas(ctx context.Context, count int) ([]source.Idea, error) {
	prompt := fmt.Sprintf(`Propose %d ideas for small, useful static web apps
(plain HTML/CSS/JS, no backend, buildable in one sitting).
Respond with a JSON array only:
[{"title": "...", "description": "one sentence"}]`, count)

	text, err := c.complete(ctx, "propose ideas", c.model, prompt, 2048)
	if err != nil {
		return nil, err
	}

	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ideas: %w", err)
	}

	var ideas []source.Idea
	if err := json.Unmarshal([]byte(raw), &ideas); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ideas: %w", err)
	}
	return ideas, nil
}
