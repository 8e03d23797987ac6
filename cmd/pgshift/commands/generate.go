package commands

import (
	"github.com/spf13/cobra"

	"github.com/pgshift/pgshift/internal/config"
	"github.com/pgshift/pgshift/internal/ui"
)

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(cfg *config.Config) *cobra.Command {
	var onboard bool

	cmd := &cobra.Command{
		Use:   "generate <description>",
		Short: "Generate a new migration from schema changes",
		Long: `Diff the state reached by the migration chain against the declarative
schema directory and write the delta as a new migration file. With --onboard,
write an empty migration that adopts a pre-existing database into version
tracking instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := newEnv(cfg)
			if err != nil {
				return err
			}
			if !onboard {
				if err := e.differ().CheckVersion(ctx); err != nil {
					return err
				}
			}

			result, err := e.planner(e.orchestrator(nil)).Generate(ctx, args[0], onboard)
			if err != nil {
				return err
			}
			if result.NoChanges {
				ui.PrintInfo("no changes detected, nothing to generate")
				return nil
			}
			ui.PrintSuccess("created migration %s", result.Path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&onboard, "onboard", false, "Generate an onboarding migration for a database that already has this schema")

	return cmd
}
