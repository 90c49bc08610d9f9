package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/smazurov/av1forge/internal/commit"
)

// CreateCleanCacheCmd creates the command that deletes leftover temporary
// encodes from interrupted runs.
func CreateCleanCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean-cache DIR...",
		Short: "Delete *.temp.mkv files left by interrupted runs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recursive, _ := cmd.Flags().GetBool("recursive")

			var dirs []string
			for _, root := range args {
				if !recursive {
					dirs = append(dirs, root)
					continue
				}
				err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
					if err != nil {
						return err
					}
					if d.IsDir() {
						dirs = append(dirs, path)
					}
					return nil
				})
				if err != nil {
					return err
				}
			}

			total, errs := 0, []error(nil)
			for _, dir := range dirs {
				n, err := commit.CleanCache(dir)
				total += n
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", dir, err))
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d temporary file(s)\n", total)
			return errors.Join(errs...)
		},
	}
	cmd.Flags().BoolP("recursive", "r", false, "Also clean subdirectories")
	return cmd
}
