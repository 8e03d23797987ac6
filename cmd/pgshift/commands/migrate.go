package commands

import (
	"github.com/spf13/cobra"

	"github.com/pgshift/pgshift/internal/config"
	"github.com/pgshift/pgshift/internal/ui"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(cfg *config.Config) *cobra.Command {
	var dryRun bool
	var runOnboard bool

	cmd := &cobra.Command{
		Use:     "migrate",
		Aliases: []string{"up"},
		Short:   "Apply all pending migrations",
		Long: `Validate the migration chain against the versions recorded in the
database, then apply every pending migration in chain order. Each migration
runs in its own transaction together with its version record, so a failure
leaves everything before it applied and everything after it untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := newEnv(cfg)
			if err != nil {
				return err
			}
			db, err := e.openTarget(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			result, err := e.applier(db, dryRun, runOnboard).Apply(ctx)
			if err != nil {
				return err
			}
			switch {
			case dryRun:
				ui.PrintInfo("%d migration(s) would be applied, %d already recorded", len(result.Applied), result.Skipped)
			case len(result.Applied) == 0:
				ui.PrintSuccess("database is up to date (%d recorded)", result.Skipped)
			default:
				ui.PrintSuccess("applied %d migration(s), %d already recorded", len(result.Applied), result.Skipped)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be applied without touching the database")
	cmd.Flags().BoolVar(&runOnboard, "run-onboard", false, "Execute onboarding migration bodies (for clean development databases)")

	return cmd
}
