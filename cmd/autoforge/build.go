package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"autoforge/internal/pipeline"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run one build cycle",
	Long: `Select the highest-scored eligible item and run it through the full build
pipeline. Exits cleanly when nothing is eligible.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		store, err := openStore(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to open storage: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		orch, err := buildEngine(store)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		err = orch.RunBuildCycle(ctx)
		switch {
		case err == nil:
		case errors.Is(err, pipeline.ErrQueueEmpty):
			fmt.Println("Nothing eligible to build")
		case errors.Is(err, pipeline.ErrBuildInProgress):
			fmt.Println("A build is already in progress")
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
}
