package monitor

import (
	"github.com/spf13/cobra"

	"github.com/soundsentry/screamdet-go/internal/analysis"
	"github.com/soundsentry/screamdet-go/internal/conf"
)

// Command creates the monitor command for continuous spool directory
// monitoring.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor [spool directory]",
		Short: "Monitor a capture spool directory",
		Long: `Watch a directory for audio files dropped by a recorder and evaluate
each one as it appears, continuously, until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.MonitorAnalysis(cmd.Context(), settings, args[0])
		},
	}

	return cmd
}
