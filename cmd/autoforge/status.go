package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"autoforge/internal/storage"
	"autoforge/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show factory status and recent builds",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		store, err := openStore(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to open storage: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== autoforge status ==="))

		doc, err := store.GetStatus(ctx)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				fmt.Printf("%s\n\n", gray("No status recorded (loop not started yet)"))
			} else {
				fmt.Fprintf(os.Stderr, "Error: failed to read status: %v\n", err)
				os.Exit(1)
			}
		} else {
			stale := time.Since(doc.UpdatedAt) > 2*time.Minute
			switch {
			case doc.Paused:
				fmt.Printf("%s %s\n", yellow("||"), yellow("PAUSED"))
			case stale:
				fmt.Printf("%s last update %s ago (loop down?)\n",
					red("○"), time.Since(doc.UpdatedAt).Round(time.Second))
			default:
				fmt.Printf("%s running, uptime %s\n",
					green("●"), (time.Duration(doc.UptimeSeconds) * time.Second).String())
			}
			fmt.Printf("  Queue depth:  %d\n", doc.QueueDepth)
			fmt.Printf("  Total built:  %d\n", doc.TotalBuilt)
			if doc.Discovering {
				fmt.Printf("  %s\n", yellow("Discovering now"))
			}
			if doc.Building {
				fmt.Printf("  %s\n", yellow("Building now"))
			}
			if doc.ConsecutiveLoopErrors > 0 {
				fmt.Printf("  %s %d consecutive loop errors\n", red("!"), doc.ConsecutiveLoopErrors)
			}
			fmt.Println()
		}

		queue, err := store.ListItemsByStatus(ctx, types.StatusApproved, types.StatusFailed)
		if err == nil && len(queue) > 0 {
			fmt.Printf("%s\n", yellow("Build queue:"))
			for _, item := range queue {
				marker := green("●")
				if item.Status == types.StatusFailed {
					marker = red("!")
				}
				fmt.Printf("  %s %.1f  %s\n", marker, item.Score, item.Title)
			}
			fmt.Println()
		}

		records, err := store.ListBuiltRecords(ctx)
		if err == nil {
			fmt.Printf("%s\n", yellow("Recent builds:"))
			if len(records) == 0 {
				fmt.Printf("  %s\n", gray("none yet"))
			}
			for i, rec := range records {
				if i >= 10 {
					fmt.Printf("  %s\n", gray(fmt.Sprintf("... and %d more", len(records)-10)))
					break
				}
				url := rec.DeployURL
				if url == "" {
					url = rec.OutputPath
				}
				fmt.Printf("  %.2f  %-28s %s\n", rec.QualityScore, rec.Slug, gray(url))
			}
			fmt.Println()
		}
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
