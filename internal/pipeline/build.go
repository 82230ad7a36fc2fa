package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"autoforge/internal/dedup"
	"autoforge/internal/gates"
	"autoforge/internal/storage"
	"autoforge/internal/types"
)

// defaultFilePlan is used when the design artifact does not name its files
var defaultFilePlan = []string{"index.html", "style.css", "app.js"}

// RunBuildCycle runs one complete build: select the best eligible item,
// guard against rebuilding something that already exists, then race the
// staged build against the wall-clock deadline. Most callers go through
// TriggerBuild and the worker; direct invocations share the same
// single-flight guarantee.
func (o *Orchestrator) RunBuildCycle(ctx context.Context) error {
	if !o.building.CompareAndSwap(false, true) {
		return ErrBuildInProgress
	}
	defer o.building.Store(false)

	item, err := o.selectItem(ctx)
	if err != nil {
		return err
	}

	handled, err := o.guardDuplicate(ctx, item)
	if err != nil {
		return err
	}
	if handled {
		return nil
	}

	fmt.Printf("Building %q (%s, score %.1f)\n", item.Title, item.ID, item.Score)

	buildCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		rec *types.BuiltRecord
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		rec, err := o.executeBuild(buildCtx, item)
		done <- outcome{rec: rec, err: err}
	}()

	timer := time.NewTimer(o.cfg.BuildDeadline)
	defer timer.Stop()

	select {
	case out := <-done:
		if out.err != nil {
			return o.recordBuildFailure(ctx, item, out.err)
		}
		return o.recordBuildSuccess(ctx, item, out.rec)
	case <-timer.C:
		// Cancellation stops any deploy the losing goroutine might still
		// attempt; its in-flight API calls are left to finish on their own.
		cancel()
		return o.recordBuildFailure(ctx, item,
			fmt.Errorf("build exceeded %s deadline", o.cfg.BuildDeadline))
	}
}

// selectItem picks the highest-scored eligible item. Items at or above the
// failure threshold are passed over; an exhausted queue is ErrQueueEmpty.
func (o *Orchestrator) selectItem(ctx context.Context) (*types.CandidateItem, error) {
	items, err := o.cfg.Store.ListItemsByStatus(ctx, types.StatusApproved, types.StatusFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible items: %w", err)
	}

	for _, item := range items {
		eligible, err := o.cfg.Tracker.Eligible(ctx, item.ID)
		if err != nil {
			return nil, err
		}
		if eligible {
			return item, nil
		}
	}
	return nil, ErrQueueEmpty
}

// guardDuplicate aborts or short-circuits the build when the item is
// already represented in the built set. A record with a completed deploy
// marker means "already built"; a record without one means the previous
// attempt died between build and deploy, so only the deploy is resumed.
// Returns true when the cycle is finished either way.
func (o *Orchestrator) guardDuplicate(ctx context.Context, item *types.CandidateItem) (bool, error) {
	rec, err := o.matchBuiltRecord(ctx, item)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}

	if rec.Deployed || o.cfg.Publisher.HasMarker(rec.OutputPath) {
		fmt.Printf("Skipping %q: already built as %s\n", item.Title, rec.Slug)
		if err := o.cfg.Store.UpdateItemStatus(ctx, item.ID, types.StatusSkipped); err != nil {
			return false, err
		}
		return true, nil
	}

	fmt.Printf("Resuming interrupted deploy of %q\n", item.Title)
	url, err := o.cfg.Publisher.Resume(ctx, rec)
	if err != nil {
		return false, o.recordBuildFailure(ctx, item, fmt.Errorf("resume deploy failed: %w", err))
	}
	if err := o.cfg.Store.MarkDeployed(ctx, rec.ItemID, url); err != nil {
		return false, err
	}

	if rec.ItemID != item.ID {
		// The record belongs to a similar earlier item; the current item
		// is a duplicate of it, same as the already-built path above
		if err := o.cfg.Store.UpdateItemStatus(ctx, item.ID, types.StatusSkipped); err != nil {
			return false, err
		}
		return true, nil
	}

	if err := o.cfg.Store.UpdateItemStatus(ctx, item.ID, types.StatusBuilt); err != nil {
		return false, err
	}
	if err := o.cfg.Tracker.Clear(ctx, item.ID); err != nil {
		return false, err
	}
	return true, nil
}

// matchBuiltRecord finds an existing built record matching the item by
// identity, by title similarity, or by output path
func (o *Orchestrator) matchBuiltRecord(ctx context.Context, item *types.CandidateItem) (*types.BuiltRecord, error) {
	rec, err := o.cfg.Store.GetBuiltRecord(ctx, item.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if rec != nil {
		return rec, nil
	}

	built, err := o.cfg.Store.ListBuiltRecords(ctx)
	if err != nil {
		return nil, err
	}
	existing := make([]dedup.Record, 0, len(built))
	for _, b := range built {
		existing = append(existing, dedup.NewRecord(b.ItemID, b.Title, "built"))
	}
	decision := o.index.Check(dedup.NewRecord(item.ID, item.Title, "queued"), existing)
	if decision.Duplicate {
		fmt.Printf("Duplicate guard: %q matches built item %s (%s)\n",
			item.Title, decision.MatchedID, decision.Reason)
		return o.cfg.Store.GetBuiltRecord(ctx, decision.MatchedID)
	}

	outputPath := o.cfg.Publisher.OutputPath(dedup.Slugify(item.Title))
	rec, err = o.cfg.Store.GetBuiltRecordByPath(ctx, outputPath)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	return rec, nil
}

// executeBuild runs the staged build for one item: design, parallel
// generation, merge, per-file fallback, repair pass, quality gate, deploy.
// Persistence of the terminal outcome is the caller's job.
func (o *Orchestrator) executeBuild(ctx context.Context, item *types.CandidateItem) (*types.BuiltRecord, error) {
	if err := o.cfg.Store.UpdateItemStatus(ctx, item.ID, types.StatusBuilding); err != nil {
		return nil, err
	}

	attempt := &types.BuildAttempt{Item: item, StartedAt: time.Now()}

	design, err := o.cfg.Generator.DesignSpec(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("design stage failed: %w", err)
	}
	attempt.Design = &design
	plan := designFiles(design)

	// Pages and styles both consume the design; between each other they
	// have no ordering constraint.
	var pages, styles []types.Artifact
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pages, err = o.cfg.Generator.GeneratePages(gctx, item, design)
		return err
	})
	g.Go(func() error {
		var err error
		styles, err = o.cfg.Generator.GenerateStyles(gctx, item, design)
		return err
	})
	if err := g.Wait(); err != nil {
		// Not fatal: the per-file fallback below fills whatever is missing
		fmt.Fprintf(os.Stderr, "Warning: batch generation for %q fell short: %v\n", item.Title, err)
	}

	attempt.Artifacts = mergeArtifacts(pages, styles)
	attempt.Artifacts = o.fillMissing(ctx, item, design, plan, attempt.Artifacts)
	attempt.Artifacts = o.repairPass(ctx, item, design, attempt.Artifacts)

	report := o.cfg.Gate.Evaluate(attempt.Artifacts)
	if !report.Passed(o.cfg.Gate.PassThreshold()) {
		attempt.Artifacts = o.cfg.Gate.Remediate(item.Title, attempt.Artifacts, report)
		report = o.cfg.Gate.Evaluate(attempt.Artifacts)
	}
	attempt.QualityScore = report.Score
	fmt.Printf("%q: %s\n", item.Title, report.Summary())

	slug := dedup.Slugify(item.Title)
	rec := &types.BuiltRecord{
		ItemID:       item.ID,
		Title:        item.Title,
		Slug:         slug,
		OutputPath:   o.cfg.Publisher.OutputPath(slug),
		QualityScore: attempt.QualityScore,
		BuiltAt:      time.Now(),
	}

	url, err := o.cfg.Publisher.Push(ctx, rec, attempt.Artifacts)
	if err != nil {
		return nil, fmt.Errorf("deploy failed: %w", err)
	}
	rec.DeployURL = url
	rec.Deployed = true
	return rec, nil
}

// recordBuildSuccess writes the terminal record and clears the item's
// failure history
func (o *Orchestrator) recordBuildSuccess(ctx context.Context, item *types.CandidateItem, rec *types.BuiltRecord) error {
	if err := o.cfg.Store.SaveBuiltRecord(ctx, rec); err != nil {
		return fmt.Errorf("failed to save built record for %s: %w", item.ID, err)
	}
	if err := o.cfg.Store.UpdateItemStatus(ctx, item.ID, types.StatusBuilt); err != nil {
		return err
	}
	if err := o.cfg.Tracker.Clear(ctx, item.ID); err != nil {
		return err
	}
	if rec.DeployURL != "" {
		fmt.Printf("Built %q -> %s\n", item.Title, rec.DeployURL)
	} else {
		fmt.Printf("Built %q -> %s\n", item.Title, rec.OutputPath)
	}
	return nil
}

// recordBuildFailure increments the item's failure count and leaves it
// eligible for a later cycle, up to the threshold
func (o *Orchestrator) recordBuildFailure(ctx context.Context, item *types.CandidateItem, buildErr error) error {
	if err := o.cfg.Store.UpdateItemStatus(ctx, item.ID, types.StatusFailed); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to mark %s failed: %v\n", item.ID, err)
	}
	count, err := o.cfg.Tracker.RecordFailure(ctx, item.ID, buildErr.Error())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to record failure for %s: %v\n", item.ID, err)
	}
	return fmt.Errorf("build of %q failed (attempt %d): %w", item.Title, count, buildErr)
}

// fillMissing guarantees a structurally complete artifact set: every file
// the design plans for either came out of batch generation, is generated
// individually (with one nudged retry), or is replaced by a minimal static
// stub. Downstream stages never see a hole.
func (o *Orchestrator) fillMissing(ctx context.Context, item *types.CandidateItem, design types.Artifact, plan []string, artifacts []types.Artifact) []types.Artifact {
	have := make(map[string]bool, len(artifacts))
	for _, a := range artifacts {
		if strings.TrimSpace(a.Content) != "" {
			have[a.Path] = true
		}
	}

	for _, p := range plan {
		if have[p] {
			continue
		}
		fmt.Printf("Generating %s individually for %q\n", p, item.Title)

		artifact, err := o.cfg.Generator.GenerateFile(ctx, item, design, p, "")
		if err != nil || strings.TrimSpace(artifact.Content) == "" {
			nudge := "The previous attempt at this file failed. Keep it simple and complete; it must work with the other files in the design."
			artifact, err = o.cfg.Generator.GenerateFile(ctx, item, design, p, nudge)
		}
		if err != nil || strings.TrimSpace(artifact.Content) == "" {
			fmt.Fprintf(os.Stderr, "Warning: generation of %s failed twice, using stub\n", p)
			artifact = stubFor(p, item.Title)
		}
		artifacts = append(artifacts, artifact)
		have[p] = true
	}
	return artifacts
}

// repairPass rewrites the most failure-prone artifacts (the script, then
// the entry page) against the authoritative design. A repaired result is
// accepted only when it is no smaller than RepairMinRatio of the original
// and still shows the expected integration pattern; otherwise the original
// is kept.
func (o *Orchestrator) repairPass(ctx context.Context, item *types.CandidateItem, design types.Artifact, artifacts []types.Artifact) []types.Artifact {
	targets := repairTargets(artifacts)
	for _, idx := range targets {
		original := artifacts[idx]
		repaired, err := o.cfg.Generator.RepairFile(ctx, item, design, original)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: repair of %s failed, keeping original: %v\n", original.Path, err)
			continue
		}
		if !o.acceptRepair(original, repaired) {
			fmt.Printf("Repair of %s rejected, keeping original\n", original.Path)
			continue
		}
		repaired.Path = original.Path
		artifacts[idx] = repaired
	}
	return artifacts
}

// repairTargets picks at most two artifacts: the first script, then the
// entry page
func repairTargets(artifacts []types.Artifact) []int {
	var targets []int
	for i, a := range artifacts {
		if strings.ToLower(path.Ext(a.Path)) == ".js" {
			targets = append(targets, i)
			break
		}
	}
	for i, a := range artifacts {
		if path.Base(a.Path) == "index.html" {
			targets = append(targets, i)
			break
		}
	}
	return targets
}

// acceptRepair applies the size-ratio and integration-pattern checks
func (o *Orchestrator) acceptRepair(original, repaired types.Artifact) bool {
	if float64(len(repaired.Content)) < o.cfg.RepairMinRatio*float64(len(original.Content)) {
		return false
	}
	switch strings.ToLower(path.Ext(original.Path)) {
	case ".js":
		return strings.Contains(repaired.Content, "document.") ||
			strings.Contains(repaired.Content, "addEventListener")
	case ".html", ".htm":
		return strings.Contains(repaired.Content, "<script")
	}
	return true
}

// mergeArtifacts combines the generation sub-stage outputs, first writer
// wins per path. Artifacts whose path would land outside the app directory
// are dropped; the per-file fallback regenerates anything the drop leaves
// missing.
func mergeArtifacts(batches ...[]types.Artifact) []types.Artifact {
	var out []types.Artifact
	seen := make(map[string]bool)
	for _, batch := range batches {
		for _, a := range batch {
			if a.Path == "" || seen[a.Path] {
				continue
			}
			if !safeArtifactPath(a.Path) {
				fmt.Fprintf(os.Stderr, "Warning: dropping artifact with unsafe path %q\n", a.Path)
				continue
			}
			seen[a.Path] = true
			out = append(out, a)
		}
	}
	return out
}

// safeArtifactPath reports whether a generated path stays inside the app
// directory once cleaned
func safeArtifactPath(p string) bool {
	clean := filepath.Clean(filepath.FromSlash(p))
	if filepath.IsAbs(clean) {
		return false
	}
	return clean != ".." && !strings.HasPrefix(clean, ".."+string(filepath.Separator))
}

// designFiles extracts the planned file paths from the design artifact,
// falling back to the standard three-file plan when the design doesn't
// name any
func designFiles(design types.Artifact) []string {
	var doc struct {
		Files []struct {
			Path string `json:"path"`
		} `json:"files"`
	}
	if err := json.Unmarshal([]byte(design.Content), &doc); err != nil {
		return defaultFilePlan
	}

	var plan []string
	for _, f := range doc.Files {
		p := strings.TrimSpace(f.Path)
		if p == "" || strings.Contains(p, "..") {
			continue
		}
		plan = append(plan, p)
	}
	if len(plan) == 0 {
		return defaultFilePlan
	}
	return plan
}

// stubFor returns a minimal static stand-in for a file that could not be
// generated, keyed by extension
func stubFor(p, title string) types.Artifact {
	switch strings.ToLower(path.Ext(p)) {
	case ".html", ".htm":
		a := gates.FallbackMarkup(title)
		a.Path = p
		return a
	case ".css":
		a := gates.FallbackStyles()
		a.Path = p
		return a
	case ".js":
		a := gates.FallbackScript(title)
		a.Path = p
		return a
	}
	return types.Artifact{Path: p, Content: fmt.Sprintf("/* %s: placeholder */\n", title)}
}
