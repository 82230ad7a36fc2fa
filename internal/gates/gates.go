// Package gates scores a build's generated artifacts against a fixed
// structural rubric before deployment. The gate never inspects artifact
// meaning, only presence counts and pattern matches; a failing score
// triggers one remediation pass that injects minimal but real fallback
// units for the missing category.
package gates

import (
	"fmt"
	"path"
	"strings"

	"autoforge/internal/types"
)

const (
	// DefaultPassThreshold is the rubric score below which remediation runs
	DefaultPassThreshold = 0.7

	// DefaultMinArtifactBytes is the size under which an artifact counts as
	// too short for its rubric checks
	DefaultMinArtifactBytes = 120
)

// Config holds quality gate configuration
type Config struct {
	PassThreshold    float64
	MinArtifactBytes int
}

// DefaultConfig returns the default gate configuration
func DefaultConfig() *Config {
	return &Config{
		PassThreshold:    DefaultPassThreshold,
		MinArtifactBytes: DefaultMinArtifactBytes,
	}
}

// Check is one rubric entry outcome
type Check struct {
	Name   string
	Passed bool
	Detail string
}

// Report is the bounded numeric result of a gate evaluation
type Report struct {
	Score   float64 // 0.0 - 1.0
	Checks  []Check
	Missing []string // Artifact categories absent from the set ("markup", "styles", "script")
}

// Passed reports whether the score clears the given threshold
func (r *Report) Passed(threshold float64) bool {
	return r.Score >= threshold
}

// Summary returns a one-line log form of the report
func (r *Report) Summary() string {
	passed := 0
	for _, c := range r.Checks {
		if c.Passed {
			passed++
		}
	}
	return fmt.Sprintf("quality score %.2f (%d/%d checks passed)", r.Score, passed, len(r.Checks))
}

// Runner evaluates artifact sets against the rubric
type Runner struct {
	cfg *Config
}

// NewRunner creates a gate runner. A nil config selects defaults.
func NewRunner(cfg *Config) *Runner {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.PassThreshold <= 0 {
		cfg.PassThreshold = DefaultPassThreshold
	}
	if cfg.MinArtifactBytes <= 0 {
		cfg.MinArtifactBytes = DefaultMinArtifactBytes
	}
	return &Runner{cfg: cfg}
}

// PassThreshold returns the configured pass threshold
func (r *Runner) PassThreshold() float64 {
	return r.cfg.PassThreshold
}

// Evaluate scores the artifact set. Each rubric check contributes equally;
// the score is the fraction of checks passed.
func (r *Runner) Evaluate(artifacts []types.Artifact) *Report {
	var markup, styles, script []types.Artifact
	for _, a := range artifacts {
		switch strings.ToLower(path.Ext(a.Path)) {
		case ".html", ".htm":
			markup = append(markup, a)
		case ".css":
			styles = append(styles, a)
		case ".js":
			script = append(script, a)
		}
	}

	report := &Report{}
	add := func(name string, passed bool, detail string) {
		report.Checks = append(report.Checks, Check{Name: name, Passed: passed, Detail: detail})
	}

	add("has-markup", len(markup) > 0, fmt.Sprintf("%d markup files", len(markup)))
	add("has-styles", len(styles) > 0, fmt.Sprintf("%d stylesheets", len(styles)))
	add("has-script", len(script) > 0, fmt.Sprintf("%d scripts", len(script)))

	if len(markup) == 0 {
		report.Missing = append(report.Missing, "markup")
	}
	if len(styles) == 0 {
		report.Missing = append(report.Missing, "styles")
	}
	if len(script) == 0 {
		report.Missing = append(report.Missing, "script")
	}

	add("has-entry-page", hasPath(markup, "index.html"), "index.html present")
	add("markup-links-styles", anyContains(markup, "<link"), "stylesheet linked from markup")
	add("markup-loads-script", anyContains(markup, "<script"), "script loaded from markup")
	add("script-wires-events", anyContains(script, "addEventListener") || anyContains(script, "onclick"),
		"script attaches event handlers")
	add("script-touches-dom", anyContains(script, "document."), "script reads or writes the DOM")
	add("styles-nonempty", totalLen(styles) >= r.cfg.MinArtifactBytes, "stylesheet has real rules")
	add("no-short-artifacts", shortCount(artifacts, r.cfg.MinArtifactBytes) == 0,
		fmt.Sprintf("%d artifacts under %d bytes", shortCount(artifacts, r.cfg.MinArtifactBytes), r.cfg.MinArtifactBytes))

	passed := 0
	for _, c := range report.Checks {
		if c.Passed {
			passed++
		}
	}
	report.Score = float64(passed) / float64(len(report.Checks))
	return report
}

// Remediate injects a minimal but real fallback unit for each missing
// artifact category so downstream stages always see a structurally complete
// set. Existing artifacts are never modified. The caller recomputes the
// score afterwards and proceeds regardless of the result.
func (r *Runner) Remediate(title string, artifacts []types.Artifact, report *Report) []types.Artifact {
	out := artifacts
	for _, missing := range report.Missing {
		switch missing {
		case "markup":
			out = append(out, FallbackMarkup(title))
		case "styles":
			out = append(out, FallbackStyles())
		case "script":
			out = append(out, FallbackScript(title))
		}
		fmt.Printf("Quality gate: injected fallback %s unit\n", missing)
	}
	return out
}

// FallbackMarkup returns a minimal working entry page
func FallbackMarkup(title string) types.Artifact {
	return types.Artifact{
		Path: "index.html",
		Content: `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>` + title + `</title>
<link rel="stylesheet" href="style.css">
</head>
<body>
<main id="app"><h1>` + title + `</h1><p id="status">Loading...</p></main>
<script src="app.js"></script>
</body>
</html>
`,
	}
}

// FallbackStyles returns a minimal working stylesheet
func FallbackStyles() types.Artifact {
	return types.Artifact{
		Path: "style.css",
		Content: `:root { --fg: #1a1a2e; --bg: #f5f5f7; --accent: #4361ee; }
* { box-sizing: border-box; margin: 0; }
body { font-family: system-ui, sans-serif; color: var(--fg); background: var(--bg); }
main { max-width: 640px; margin: 3rem auto; padding: 0 1rem; }
h1 { color: var(--accent); margin-bottom: 1rem; }
button { background: var(--accent); color: #fff; border: 0; padding: 0.5rem 1rem; border-radius: 6px; cursor: pointer; }
`,
	}
}

// FallbackScript returns a minimal working script
func FallbackScript(title string) types.Artifact {
	return types.Artifact{
		Path: "app.js",
		Content: `document.addEventListener('DOMContentLoaded', function () {
  var status = document.getElementById('status');
  if (status) {
    status.textContent = '` + strings.ReplaceAll(title, "'", "") + ` is ready.';
  }
});
`,
	}
}

func hasPath(artifacts []types.Artifact, p string) bool {
	for _, a := range artifacts {
		if path.Base(a.Path) == p {
			return true
		}
	}
	return false
}

func anyContains(artifacts []types.Artifact, pattern string) bool {
	for _, a := range artifacts {
		if strings.Contains(a.Content, pattern) {
			return true
		}
	}
	return false
}

func totalLen(artifacts []types.Artifact) int {
	n := 0
	for _, a := range artifacts {
		n += len(a.Content)
	}
	return n
}

func shortCount(artifacts []types.Artifact, min int) int {
	n := 0
	for _, a := range artifacts {
		if len(a.Content) < min {
			n++
		}
	}
	return n
}
