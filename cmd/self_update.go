package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/av1forge/internal/updater"
)

// CreateSelfUpdateCmd creates the command that replaces the binary with
// the latest release.
func CreateSelfUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "self-update",
		Short: "Update av1forge to the latest GitHub release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			check, _ := cmd.Flags().GetBool("check")
			rollback, _ := cmd.Flags().GetBool("rollback")
			prerelease, _ := cmd.Flags().GetBool("prerelease")
			repo, _ := cmd.Flags().GetString("repository")
			out := cmd.OutOrStdout()

			u, err := updater.New(updater.Options{Repository: repo, Prerelease: prerelease})
			if err != nil {
				return err
			}

			if rollback {
				previous := u.BackupVersion()
				if err := u.Rollback(); err != nil {
					return err
				}
				fmt.Fprintf(out, "Restored %s\n", previous)
				return nil
			}

			info, err := u.Check(cmd.Context())
			if err != nil {
				return err
			}
			if !info.UpdateAvailable {
				fmt.Fprintf(out, "Already up to date (%s)\n", info.CurrentVersion)
				return nil
			}
			fmt.Fprintf(out, "Update available: %s -> %s (%s)\n", info.CurrentVersion, info.LatestVersion, info.ReleaseURL)
			if check {
				return nil
			}

			installed, err := u.Apply(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Updated to %s\n", installed)
			return nil
		},
	}
	cmd.Flags().Bool("check", false, "Only report whether an update is available")
	cmd.Flags().Bool("rollback", false, "Restore the binary replaced by the last update")
	cmd.Flags().Bool("prerelease", false, "Consider prereleases")
	cmd.Flags().String("repository", updater.DefaultRepository, "GitHub repository to update from")
	return cmd
}
