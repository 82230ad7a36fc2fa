package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"autoforge/internal/health"
	"autoforge/internal/scheduler"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the factory loop",
	Long: `Start the perpetual loop: discovery, scoring, builds, health updates and
log rotation, each on its own timer. The loop never exits on item- or
cycle-level failures; stop it with Ctrl+C or SIGTERM.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

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

		reporter, err := health.New(store, orch)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		schedCfg := scheduler.DefaultConfig()
		schedCfg.DiscoverInterval = time.Duration(cfg.Discovery.IntervalMinutes) * time.Minute
		schedCfg.BuildInterval = time.Duration(cfg.Build.IntervalMinutes) * time.Minute
		schedCfg.LogPath = cfg.Log.Path
		schedCfg.MaxLogBytes = cfg.Log.MaxBytes
		schedCfg.Store = store
		schedCfg.Engine = orch
		schedCfg.Health = reporter

		sched, err := scheduler.New(schedCfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			fmt.Println("\nShutting down...")
			cancel()
		}()

		fmt.Println("Factory running. Press Ctrl+C to stop.")
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Factory stopped.")
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
