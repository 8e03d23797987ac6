// Package main is the entry point for the pgshift CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pgshift/pgshift/cmd/pgshift/commands"
	"github.com/pgshift/pgshift/internal/config"
	"github.com/pgshift/pgshift/internal/debug"
)

var (
	// Version information (set by build)
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// In-flight transactions roll back when an interrupted run's connections
	// close, so cancelling the context is always safe.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:     "pgshift",
		Short:   "Declarative PostgreSQL schema migrations",
		Long:    "pgshift generates, validates, applies and compacts SQL migrations derived from a declarative schema directory",
		Version: fmt.Sprintf("%s (commit: %s)", Version, Commit),
	}

	var debugFlag bool
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", os.Getenv("PGSHIFT_DEBUG") != "", "enable diagnostic logging to stderr")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		debug.Init(debugFlag)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	rootCmd.AddCommand(commands.NewGenerateCommand(cfg))
	rootCmd.AddCommand(commands.NewMigrateCommand(cfg))
	rootCmd.AddCommand(commands.NewDiffCommand(cfg))
	rootCmd.AddCommand(commands.NewCheckCommand(cfg))
	rootCmd.AddCommand(commands.NewCompactCommand(cfg))
	rootCmd.AddCommand(commands.NewCleanCommand(cfg))
	rootCmd.AddCommand(commands.NewStatusCommand(cfg))
	rootCmd.AddCommand(commands.NewWatchCommand(cfg))
	rootCmd.AddCommand(commands.NewVersionCommand(Version, Commit))

	return rootCmd.ExecuteContext(ctx)
}
