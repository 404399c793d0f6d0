package file

import (
	"github.com/spf13/cobra"

	"github.com/soundsentry/screamdet-go/internal/analysis"
	"github.com/soundsentry/screamdet-go/internal/conf"
)

// Command creates the file command for analyzing a single audio file.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file [input.wav]",
		Short: "Analyze an audio file",
		Long:  `Analyze a single audio file segment by segment and alert on detections.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return analysis.FileAnalysis(cmd.Context(), settings, args[0])
		},
	}

	return cmd
}
