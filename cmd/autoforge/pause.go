package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"autoforge/internal/scheduler"
)

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause discovery and builds",
	Long: `Set the persistent pause flag. A running loop stops firing work cycles on
its next tick; health updates continue. In-flight builds finish.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		store, err := openStore(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to open storage: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		if err := scheduler.SetPaused(ctx, store, true); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("%s Factory paused\n", yellow("||"))
	},
}

func init() {
	rootCmd.AddCommand(pauseCmd)
}
