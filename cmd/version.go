package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/av1forge/internal/version"
)

// CreateVersionCmd creates the command that prints build information.
func CreateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info := version.Get()
			commit := info.GitCommit
			if info.Modified {
				commit += "-dirty"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "av1forge %s (commit %s, built %s, %s %s)\n",
				info.Version, commit, info.BuildDate, info.GoVersion, info.Platform)
		},
	}
}
