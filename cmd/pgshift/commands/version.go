package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command.
func NewVersionCommand(version, commit string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the pgshift version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("pgshift %s (commit: %s)\n", version, commit)
		},
	}
}
