package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"autoforge/internal/dedup"
	"autoforge/internal/source"
	"autoforge/internal/types"
)

// DiscoverAndScore runs one discovery cycle: pull candidates from every
// source, collapse duplicates (against the queue, the built set and each
// other), persist the survivors, then score them sequentially. Each item
// that clears approval kicks off an asynchronous build immediately; scoring
// of the rest of the batch continues in parallel with that build.
func (o *Orchestrator) DiscoverAndScore(ctx context.Context) error {
	o.discovering.Store(true)
	defer o.discovering.Store(false)

	if o.cfg.Source == nil {
		return fmt.Errorf("no item source configured")
	}

	found, err := o.cfg.Source.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}
	if len(found) == 0 {
		fmt.Println("Discovery found no candidates this cycle")
		return nil
	}

	existing, err := o.existingRecords(ctx)
	if err != nil {
		return fmt.Errorf("failed to load existing items for dedup: %w", err)
	}

	unique, rejected := o.filterDiscovered(found, existing)
	for _, rej := range rejected {
		fmt.Printf("Skipping duplicate: %s\n", rej)
	}

	approved := 0
	for _, cand := range unique {
		item, err := o.admitItem(ctx, cand)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to save candidate %q: %v\n", cand.disc.Title, err)
			continue
		}

		result, err := o.cfg.Scorer.Score(ctx, item)
		if err != nil {
			// Left as discovered; a later cycle may score it again
			fmt.Fprintf(os.Stderr, "Warning: scoring %q failed: %v\n", item.Title, err)
			continue
		}
		if err := o.cfg.Store.UpdateItemScore(ctx, item.ID, result.Score, result.Verdict); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to record score for %s: %v\n", item.ID, err)
			continue
		}

		if !o.approves(result) {
			if err := o.cfg.Store.UpdateItemStatus(ctx, item.ID, types.StatusSkipped); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to skip %s: %v\n", item.ID, err)
			}
			fmt.Printf("Rejected %q (score %.1f, verdict %q)\n", item.Title, result.Score, result.Verdict)
			continue
		}

		if err := o.cfg.Store.UpdateItemStatus(ctx, item.ID, types.StatusApproved); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to approve %s: %v\n", item.ID, err)
			continue
		}
		approved++
		fmt.Printf("Approved %q (score %.1f)\n", item.Title, result.Score)

		// Immediate start: don't wait for the rest of the batch
		if err := o.TriggerBuild("approval"); err != nil {
			fmt.Printf("Build already in progress, %q stays queued\n", item.Title)
		}
	}

	fmt.Printf("Discovery cycle complete: %d found, %d unique, %d approved\n",
		len(found), len(unique), approved)
	return nil
}

// approves applies both the opaque verdict and the numeric floor. The floor
// is enforced independently as a consistency check on the scorer.
func (o *Orchestrator) approves(result *ScoreResult) bool {
	return strings.EqualFold(result.Verdict, "pass") && result.Score >= o.cfg.ScoreThreshold
}

// candidate pairs a discovered idea with its pre-assigned id and dedup
// projection
type candidate struct {
	disc source.Discovered
	rec  dedup.Record
}

// filterDiscovered collapses a discovery batch against the existing set and
// against itself, in stable order
func (o *Orchestrator) filterDiscovered(found []source.Discovered, existing []dedup.Record) ([]candidate, []dedup.Rejection) {
	byID := make(map[string]source.Discovered, len(found))
	records := make([]dedup.Record, 0, len(found))
	for _, d := range found {
		id := uuid.New().String()
		byID[id] = d
		records = append(records, dedup.NewRecord(id, d.Title, d.Source))
	}

	unique, rejected := o.index.FilterBatch(records, existing)

	out := make([]candidate, 0, len(unique))
	for _, rec := range unique {
		out = append(out, candidate{disc: byID[rec.ID], rec: rec})
	}
	return out, rejected
}

// admitItem persists a unique candidate as a discovered item
func (o *Orchestrator) admitItem(ctx context.Context, cand candidate) (*types.CandidateItem, error) {
	now := time.Now()
	item := &types.CandidateItem{
		ID:          cand.rec.ID,
		Title:       cand.disc.Title,
		Description: cand.disc.Description,
		Source:      cand.disc.Source,
		Status:      types.StatusDiscovered,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := o.cfg.Store.CreateItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// existingRecords builds the dedup comparison set: everything queued plus
// everything already built
func (o *Orchestrator) existingRecords(ctx context.Context) ([]dedup.Record, error) {
	items, err := o.cfg.Store.ListItemsByStatus(ctx,
		types.StatusDiscovered, types.StatusApproved, types.StatusBuilding, types.StatusFailed)
	if err != nil {
		return nil, err
	}

	records := make([]dedup.Record, 0, len(items))
	for _, item := range items {
		records = append(records, dedup.NewRecord(item.ID, item.Title, "queued"))
	}

	built, err := o.cfg.Store.ListBuiltRecords(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range built {
		records = append(records, dedup.NewRecord(rec.ItemID, rec.Title, "built"))
	}
	return records, nil
}

// PreviewDiscovery runs discovery and duplicate filtering without persisting
// or scoring anything. Used by the dry-run discover command.
func (o *Orchestrator) PreviewDiscovery(ctx context.Context) ([]source.Discovered, []dedup.Rejection, error) {
	if o.cfg.Source == nil {
		return nil, nil, fmt.Errorf("no item source configured")
	}
	found, err := o.cfg.Source.Discover(ctx)
	if err != nil {
		return nil, nil, err
	}
	existing, err := o.existingRecords(ctx)
	if err != nil {
		return nil, nil, err
	}
	unique, rejected := o.filterDiscovered(found, existing)
	out := make([]source.Discovered, 0, len(unique))
	for _, cand := range unique {
		out = append(out, cand.disc)
	}
	return out, rejected, nil
}
