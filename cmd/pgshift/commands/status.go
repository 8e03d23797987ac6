package commands

import (
	"github.com/spf13/cobra"

	"github.com/pgshift/pgshift/internal/config"
	"github.com/pgshift/pgshift/internal/ui"
	"github.com/pgshift/pgshift/migrate/chain"
	"github.com/pgshift/pgshift/migrate/history"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show each chain entry and whether it has been applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := newEnv(cfg)
			if err != nil {
				return err
			}

			ch, err := chain.Load(config.AppFs, cfg.MigrationsDir)
			if err != nil {
				return err
			}
			if ch.Empty() {
				ui.PrintInfo("no migrations in %s", cfg.MigrationsDir)
				return nil
			}

			db, err := e.openTarget(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			hist := history.NewManager(db)
			recorded, err := hist.RecordedVersions(ctx)
			if err != nil {
				return err
			}
			divergence := history.CheckConsistency(ch, recorded)

			applied := make(map[string]bool, len(recorded))
			for _, version := range recorded {
				applied[version] = true
			}

			rows := make([][]string, 0, len(ch.Files))
			for _, file := range ch.Files {
				state := "pending"
				if applied[file.Version] {
					state = "applied"
				}
				kind := "migration"
				if file.Onboard {
					kind = "onboard"
				}
				rows = append(rows, []string{file.Version, file.Description, kind, state})
			}
			ui.PrintTable([]string{"VERSION", "DESCRIPTION", "KIND", "STATE"}, rows)

			if divergence != nil {
				return divergence
			}

			current, err := hist.CurrentVersion(ctx)
			if err != nil {
				return err
			}
			appliedFiles, err := ch.Prefix(current)
			if err != nil {
				return err
			}
			pending, err := ch.PendingAfter(current)
			if err != nil {
				return err
			}
			if current == "" {
				ui.PrintInfo("no versions recorded, %d pending", len(pending))
			} else {
				ui.PrintInfo("database at version %s: %d applied, %d pending", current, len(appliedFiles), len(pending))
			}
			return nil
		},
	}
	return cmd
}
