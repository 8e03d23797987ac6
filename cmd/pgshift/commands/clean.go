package commands

import (
	"github.com/spf13/cobra"

	"github.com/pgshift/pgshift/internal/config"
	"github.com/pgshift/pgshift/internal/ui"
	"github.com/pgshift/pgshift/migrate/shadow"
)

// NewCleanCommand creates the clean command.
func NewCleanCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Drop ephemeral databases left behind by interrupted runs",
		Long: `Drop every database on the server carrying the pgshift ephemeral-database
marker. Databases without the marker are never touched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEnv(cfg)
			if err != nil {
				return err
			}
			spinner := ui.Spinner("sweeping orphaned ephemeral databases")
			dropped, err := shadow.NewManager(e.target).CleanAllOrphans(cmd.Context())
			spinner.Stop()
			for _, name := range dropped {
				ui.PrintDim("dropped %s", name)
			}
			if err != nil {
				return err
			}
			if len(dropped) == 0 {
				ui.PrintSuccess("no orphaned ephemeral databases found")
			} else {
				ui.PrintSuccess("dropped %d orphaned ephemeral database(s)", len(dropped))
			}
			return nil
		},
	}
	return cmd
}
