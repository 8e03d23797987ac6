package commands

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/pgshift/pgshift/internal/config"
	"github.com/pgshift/pgshift/internal/ui"
	"github.com/pgshift/pgshift/migrate/history"
	"github.com/pgshift/pgshift/migrate/planner"
)

// NewCompactCommand creates the compact command.
func NewCompactCommand(cfg *config.Config) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Collapse the whole migration history into one file",
		Long: `Bring the database and migrations directory current with the schema,
then replace the entire migrations directory with a single migration covering
the full schema from an empty database, and reset the version table to that
one version.

Compaction is not atomic: if it is interrupted between purging the old files
and writing the new one, restore the migrations directory from version
control before retrying.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if !force {
				var confirmed bool
				prompt := &survey.Confirm{
					Message: "Replace the whole migrations directory and reset the version table?",
				}
				if err := survey.AskOne(prompt, &confirmed); err != nil {
					return err
				}
				if !confirmed {
					return fmt.Errorf("compaction cancelled")
				}
			}

			e, err := newEnv(cfg)
			if err != nil {
				return err
			}
			if err := e.differ().CheckVersion(ctx); err != nil {
				return err
			}
			db, err := e.openTarget(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			compactor := &planner.Compactor{
				Planner: e.planner(e.orchestrator(nil)),
				Applier: e.applier(db, false, false),
				History: history.NewManager(db),
				DB:      db,
				Logf:    ui.PrintDim,
			}
			result, err := compactor.Compact(ctx)
			if err != nil {
				return err
			}
			ui.PrintSuccess("compacted history into %s (version %s)", result.Path, result.Version)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip the confirmation prompt")

	return cmd
}
