package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"autoforge/internal/scheduler"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume discovery and builds",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		store, err := openStore(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to open storage: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		if err := scheduler.SetPaused(ctx, store, false); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Factory resumed\n", green("▶"))
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}
