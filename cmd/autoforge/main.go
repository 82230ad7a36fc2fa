package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"autoforge/internal/config"
	"autoforge/internal/storage"
)

var (
	cfgPath string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "autoforge",
	Short: "Autonomous web app factory",
	Long: `autoforge perpetually discovers candidate app ideas, scores them with an
AI model, and builds at most one app at a time through a staged pipeline:
design, parallel generation, merge, repair, quality gate, deploy.

Run 'autoforge run' to start the loop, or use the one-shot commands
(discover, build) and inspection commands (status, repl, doctor).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", config.DefaultPath, "Path to config file")
}

// openStore opens the configured database
func openStore(ctx context.Context) (storage.Storage, error) {
	return storage.NewStorage(ctx, &storage.Config{Path: cfg.Database.Path})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
