package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"autoforge/internal/dedup"
	"autoforge/internal/types"
)

var discoverDryRun bool

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Run one discovery cycle",
	Long: `Pull candidate ideas from the configured sources, collapse duplicates and
score the survivors. Approved items are queued (and trigger a build when
run inside the loop).

With --dry-run, only discovery and duplicate filtering run: nothing is
persisted, scored or built, and no API key is needed.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		store, err := openStore(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to open storage: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		if discoverDryRun {
			if err := dryRunDiscovery(ctx, store); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}

		orch, err := buildEngine(store)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := orch.DiscoverAndScore(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

// dryRunDiscovery previews discovery without the AI client: external
// sources only, duplicate filtering against the stored sets, no writes
func dryRunDiscovery(ctx context.Context, store interface {
	ListItemsByStatus(ctx context.Context, statuses ...types.ItemStatus) ([]*types.CandidateItem, error)
	ListBuiltRecords(ctx context.Context) ([]*types.BuiltRecord, error)
}) error {
	found, err := buildSources(nil).Discover(ctx)
	if err != nil {
		return err
	}

	items, err := store.ListItemsByStatus(ctx,
		types.StatusDiscovered, types.StatusApproved, types.StatusBuilding, types.StatusFailed)
	if err != nil {
		return err
	}
	built, err := store.ListBuiltRecords(ctx)
	if err != nil {
		return err
	}

	var existing []dedup.Record
	for _, item := range items {
		existing = append(existing, dedup.NewRecord(item.ID, item.Title, "queued"))
	}
	for _, rec := range built {
		existing = append(existing, dedup.NewRecord(rec.ItemID, rec.Title, "built"))
	}

	index := dedup.New(dedup.Config{
		SimilarityThreshold: cfg.Dedup.SimilarityThreshold,
		MinContainmentLen:   cfg.Dedup.MinContainmentLen,
	})
	candidates := make([]dedup.Record, 0, len(found))
	for i, d := range found {
		candidates = append(candidates, dedup.NewRecord(fmt.Sprintf("candidate-%d", i), d.Title, d.Source))
	}
	unique, rejected := index.FilterBatch(candidates, existing)

	fmt.Printf("\nWould admit %d candidate(s):\n", len(unique))
	for _, rec := range unique {
		fmt.Printf("  + %s (%s)\n", rec.Title, rec.Bucket)
	}
	if len(rejected) > 0 {
		fmt.Printf("\nWould reject %d duplicate(s):\n", len(rejected))
		for _, rej := range rejected {
			fmt.Printf("  - %s\n", rej)
		}
	}
	return nil
}

func init() {
	discoverCmd.Flags().BoolVar(&discoverDryRun, "dry-run", false, "Preview discovery without persisting or scoring")
	rootCmd.AddCommand(discoverCmd)
}
