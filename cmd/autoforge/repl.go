package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"autoforge/internal/repl"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start the interactive control shell",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		store, err := openStore(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to open storage: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		shell, err := repl.New(&repl.Config{Store: store})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := shell.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}
