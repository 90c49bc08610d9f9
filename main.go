package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smazurov/av1forge/cmd"
	"github.com/smazurov/av1forge/internal/logging"
	"github.com/smazurov/av1forge/internal/version"
)

func main() {
	root := &cobra.Command{
		Use:           "av1forge",
		Short:         "Batch-convert media to AV1 with hardware encoders",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		// Commands other than run log warnings only, to stderr.
		PersistentPreRun: func(*cobra.Command, []string) {
			logging.Initialize(logging.Config{Level: "warn", Format: "text", Output: "stderr"})
		},
	}

	root.AddCommand(cmd.CreateRunCmd())
	root.AddCommand(cmd.CreateInspectCmd())
	root.AddCommand(cmd.CreateCleanCacheCmd())
	root.AddCommand(cmd.CreateVersionCmd())
	root.AddCommand(cmd.CreateSelfUpdateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var exitErr *cmd.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}
