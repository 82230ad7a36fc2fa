package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"
)

// minGoVersion is the oldest Go runtime the factory is tested against
const minGoVersion = "v1.24.0"

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the environment and configuration",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()

		failed := 0
		check := func(name string, ok bool, detail string) {
			if ok {
				fmt.Printf("  %s %s\n", green("✓"), name)
			} else {
				failed++
				fmt.Printf("  %s %s: %s\n", red("✗"), name, detail)
			}
		}
		warn := func(name, detail string) {
			fmt.Printf("  %s %s: %s\n", yellow("~"), name, detail)
		}

		fmt.Println("\nChecking autoforge environment...")
		fmt.Println()

		goVersion := "v" + strings.TrimPrefix(runtime.Version(), "go")
		check(fmt.Sprintf("Go runtime %s", runtime.Version()),
			semver.Compare(goVersion, minGoVersion) >= 0,
			fmt.Sprintf("need at least %s", strings.TrimPrefix(minGoVersion, "v")))

		check("ANTHROPIC_API_KEY set", os.Getenv("ANTHROPIC_API_KEY") != "",
			"export ANTHROPIC_API_KEY to enable scoring and generation")

		store, err := openStore(ctx)
		if err != nil {
			check("database reachable", false, err.Error())
		} else {
			check("database reachable", true, "")
			if _, err := store.CountBuilt(ctx); err != nil {
				check("database schema", false, err.Error())
			} else {
				check("database schema", true, "")
			}
			store.Close()
		}

		if err := os.MkdirAll(cfg.Publish.Root, 0755); err != nil {
			check("publish root writable", false, err.Error())
		} else {
			probe := filepath.Join(cfg.Publish.Root, ".doctor-probe")
			err := os.WriteFile(probe, []byte("ok"), 0644)
			os.Remove(probe)
			check("publish root writable", err == nil, fmt.Sprintf("%v", err))
		}

		if len(cfg.Discovery.FeedURLs) == 0 && cfg.Discovery.TrendsURL == "" {
			warn("discovery sources", "no feeds or trends page configured; only AI-proposed ideas will be used")
		} else {
			check(fmt.Sprintf("discovery sources (%d feeds)", len(cfg.Discovery.FeedURLs)), true, "")
		}

		fmt.Println()
		if failed > 0 {
			fmt.Printf("%s %d check(s) failed\n", red("✗"), failed)
			os.Exit(1)
		}
		fmt.Printf("%s All checks passed\n", green("✓"))
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
