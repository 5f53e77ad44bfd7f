package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marcuoli/go-nameresolve/pkg/nameresolve"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "nbresolve %s (commit: %s, built: %s)\n", Version, Commit, Date)
		fmt.Fprintln(cmd.OutOrStdout(), nameresolve.VersionInfo())
	},
}
