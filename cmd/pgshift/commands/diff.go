package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgshift/pgshift/internal/config"
	"github.com/pgshift/pgshift/internal/ui"
	"github.com/pgshift/pgshift/migrate/chain"
	"github.com/pgshift/pgshift/migrate/diff"
	"github.com/pgshift/pgshift/migrate/history"
)

// NewDiffCommand creates the diff command.
func NewDiffCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff <source> <target>",
		Short: "Print the SQL needed to turn one schema state into another",
		Long: `Print the SQL delta between two schema states. Backends: migrations
(the state reached by replaying the chain), schema (the declarative schema
directory) and database (the live target).`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := computeBackendDiff(cmd.Context(), cfg, args[0], args[1])
			if err != nil {
				return err
			}
			if delta == "" {
				ui.PrintInfo("no differences")
				return nil
			}
			ui.PrintSQL(delta)
			return nil
		},
	}
	return cmd
}

// NewCheckCommand creates the check command.
func NewCheckCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <source> <target>",
		Short: "Fail unless two schema states are in sync",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			delta, err := computeBackendDiff(cmd.Context(), cfg, args[0], args[1])
			if err != nil {
				return err
			}
			if delta != "" {
				ui.PrintSQL(delta)
				return fmt.Errorf("%s and %s are out of sync", args[0], args[1])
			}
			ui.PrintSuccess("%s and %s are in sync", args[0], args[1])
			return nil
		},
	}
	return cmd
}

func computeBackendDiff(ctx context.Context, cfg *config.Config, rawSource, rawTarget string) (string, error) {
	source, err := diff.ParseBackend(rawSource)
	if err != nil {
		return "", err
	}
	target, err := diff.ParseBackend(rawTarget)
	if err != nil {
		return "", err
	}

	e, err := newEnv(cfg)
	if err != nil {
		return "", err
	}
	if err := e.differ().CheckVersion(ctx); err != nil {
		return "", err
	}

	ch, err := chain.Load(config.AppFs, cfg.MigrationsDir)
	if err != nil {
		return "", err
	}

	var hist *history.Manager
	if source == diff.BackendDatabase || target == diff.BackendDatabase {
		db, err := e.openTarget(ctx)
		if err != nil {
			return "", err
		}
		defer db.Close()
		hist = history.NewManager(db)
	}

	return e.orchestrator(hist).Between(ctx, ch, source, target)
}
