// Package repl is the interactive control shell for a running or offline
// autoforge database: inspect status, pause and resume the loop, list
// built apps and failures.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"autoforge/internal/scheduler"
	"autoforge/internal/storage"
	"autoforge/internal/types"
)

// REPL represents the interactive shell
type REPL struct {
	store    storage.Storage
	rl       *readline.Instance
	ctx      context.Context
	commands map[string]CommandHandler
}

// CommandHandler handles a specific command
type CommandHandler func(args []string) error

// Config holds REPL configuration
type Config struct {
	Store storage.Storage
}

// New creates a new REPL instance
func New(cfg *Config) (*REPL, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("storage is required")
	}

	r := &REPL{
		store:    cfg.Store,
		commands: make(map[string]CommandHandler),
	}
	r.registerCommands()
	return r, nil
}

// Run starts the REPL loop
func (r *REPL) Run(ctx context.Context) error {
	r.ctx = ctx

	cyan := color.New(color.FgCyan).SprintFunc()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("autoforge> "),
		HistoryFile:       "",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()
	r.rl = rl

	r.printWelcome()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			} else if err == io.EOF {
				fmt.Println("\nGoodbye!")
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := r.processInput(line); err != nil {
			if err == io.EOF {
				return nil
			}
			red := color.New(color.FgRed).SprintFunc()
			fmt.Printf("%s %v\n", red("Error:"), err)
		}
	}
}

// processInput processes a single line of input
func (r *REPL) processInput(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	command := parts[0]
	args := parts[1:]

	if handler, ok := r.commands[command]; ok {
		return handler(args)
	}

	fmt.Printf("Unknown command %q. Type 'help' for available commands.\n", command)
	return nil
}

// registerCommands registers all built-in commands
func (r *REPL) registerCommands() {
	r.commands["help"] = r.cmdHelp
	r.commands["?"] = r.cmdHelp
	r.commands["status"] = r.cmdStatus
	r.commands["pause"] = r.cmdPause
	r.commands["resume"] = r.cmdResume
	r.commands["queue"] = r.cmdQueue
	r.commands["built"] = r.cmdBuilt
	r.commands["failures"] = r.cmdFailures
	r.commands["exit"] = r.cmdExit
	r.commands["quit"] = r.cmdExit
}

// printWelcome prints the welcome message
func (r *REPL) printWelcome() {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("\n%s\n", cyan("autoforge control shell"))
	fmt.Println("Type 'help' for available commands, 'exit' to quit")
	fmt.Println()
}

// cmdHelp shows help information
func (r *REPL) cmdHelp(args []string) error {
	green := color.New(color.FgGreen).SprintFunc()
	commands := []struct {
		name string
		desc string
	}{
		{"status", "Show the factory status document"},
		{"pause", "Pause discovery and builds (takes effect next tick)"},
		{"resume", "Resume discovery and builds"},
		{"queue", "List items waiting for a build"},
		{"built", "List built apps"},
		{"failures", "List items with recorded build failures"},
		{"help, ?", "Show this help message"},
		{"exit, quit", "Exit the shell"},
	}

	fmt.Println()
	for _, cmd := range commands {
		fmt.Printf("  %-12s %s\n", green(cmd.name), cmd.desc)
	}
	fmt.Println()
	return nil
}

// cmdStatus shows the current status document
func (r *REPL) cmdStatus(args []string) error {
	doc, err := r.store.GetStatus(r.ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			fmt.Println("No status recorded yet (is the loop running?)")
			return nil
		}
		return err
	}

	bold := color.New(color.Bold).SprintFunc()
	fmt.Printf("\n%s\n", bold("Factory Status"))
	fmt.Printf("  Uptime:       %ds\n", doc.UptimeSeconds)
	fmt.Printf("  Queue depth:  %d\n", doc.QueueDepth)
	fmt.Printf("  Total built:  %d\n", doc.TotalBuilt)
	fmt.Printf("  Discovering:  %v\n", doc.Discovering)
	fmt.Printf("  Building:     %v\n", doc.Building)
	if doc.Paused {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("  %s\n", yellow("PAUSED"))
	}
	if doc.ConsecutiveLoopErrors > 0 {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Printf("  %s %d consecutive loop errors\n", red("!"), doc.ConsecutiveLoopErrors)
	}
	fmt.Printf("  Updated:      %s\n\n", doc.UpdatedAt.Format("15:04:05"))
	return nil
}

// cmdPause sets the pause flag
func (r *REPL) cmdPause(args []string) error {
	if err := scheduler.SetPaused(r.ctx, r.store, true); err != nil {
		return err
	}
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Printf("%s Paused. The loop stops firing work cycles on its next tick.\n", yellow("||"))
	return nil
}

// cmdResume clears the pause flag
func (r *REPL) cmdResume(args []string) error {
	if err := scheduler.SetPaused(r.ctx, r.store, false); err != nil {
		return err
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("%s Resumed.\n", green(">"))
	return nil
}

// cmdQueue lists items eligible for a build
func (r *REPL) cmdQueue(args []string) error {
	items, err := r.store.ListItemsByStatus(r.ctx, types.StatusApproved, types.StatusFailed)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("Queue is empty")
		return nil
	}
	for _, item := range items {
		marker := " "
		if item.Status == types.StatusFailed {
			marker = "!"
		}
		fmt.Printf("  %s %.1f  %s (%s)\n", marker, item.Score, item.Title, item.Source)
	}
	return nil
}

// cmdBuilt lists built apps
func (r *REPL) cmdBuilt(args []string) error {
	records, err := r.store.ListBuiltRecords(r.ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("Nothing built yet")
		return nil
	}
	for _, rec := range records {
		url := rec.DeployURL
		if url == "" {
			url = rec.OutputPath
		}
		fmt.Printf("  %.2f  %-30s %s\n", rec.QualityScore, rec.Slug, url)
	}
	return nil
}

// cmdFailures lists items with recorded failures
func (r *REPL) cmdFailures(args []string) error {
	entries, err := r.store.ListFailures(r.ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No recorded failures")
		return nil
	}
	for id, entry := range entries {
		fmt.Printf("  %d  %s  %s\n", entry.Count, id, entry.LastError)
	}
	return nil
}

// cmdExit exits the REPL
func (r *REPL) cmdExit(args []string) error {
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Printf("\n%s Goodbye!\n", green("✓"))
	r.rl.Close()
	return io.EOF
}
