package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/smazurov/av1forge/internal/logging"
	"github.com/smazurov/av1forge/internal/probe"
	"github.com/smazurov/av1forge/internal/process"
)

// CreateInspectCmd creates the command that prints an ffprobe report.
func CreateInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect FILE...",
		Short: "Show container, stream and chapter details of media files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ffprobe, _ := cmd.Flags().GetString("ffprobe")
			asJSON, _ := cmd.Flags().GetBool("json")

			sup := process.NewSupervisor(logging.GetLogger("process"), process.DefaultDecoder())
			prober := probe.New(sup, ffprobe, logging.GetLogger("ffprobe"))
			out := cmd.OutOrStdout()

			for _, path := range args {
				report, err := prober.Inspect(cmd.Context(), path)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					if err := enc.Encode(report); err != nil {
						return err
					}
					continue
				}
				if err := report.Render(out); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().String("ffprobe", envOr("FFPROBE", "ffprobe"), "ffprobe executable")
	cmd.Flags().Bool("json", false, "Print the parsed report as JSON")
	return cmd
}

// envOr reads an AV1FORGE_ variable for commands without a config file.
func envOr(key, fallback string) string {
	if v := os.Getenv("AV1FORGE_" + key); v != "" {
		return v
	}
	return fallback
}
