// Package cmd assembles the command line interface.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/soundsentry/screamdet-go/cmd/file"
	"github.com/soundsentry/screamdet-go/cmd/monitor"
	"github.com/soundsentry/screamdet-go/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "screamdet",
		Short: "ScreamDet CLI",
		Long:  `Scream detection and alerting for audio files and live capture spools.`,
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		file.Command(settings),
		monitor.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// flags override the config file, re-validate the merged result
		return conf.ValidateSettings(settings)
	}

	return rootCmd
}

// setupFlags configures the global flags for the root command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) {
	cmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", settings.Debug, "Enable debug output")
	cmd.PersistentFlags().StringVar(&settings.Detector.ModelPath, "model", settings.Detector.ModelPath, "Path to the classifier artifact")
	cmd.PersistentFlags().StringVar(&settings.Detector.ScalerPath, "scaler", settings.Detector.ScalerPath, "Path to the feature scaler artifact")
	cmd.PersistentFlags().Float64VarP(&settings.Detector.Threshold, "threshold", "t", settings.Detector.Threshold, "Alert decision threshold, open interval (0,1)")
	cmd.PersistentFlags().DurationVar(&settings.Detector.Cooldown, "cooldown", settings.Detector.Cooldown, "Debounce window for repeat alerts")
	cmd.PersistentFlags().StringSliceVar(&settings.Alert.Channels, "channels", settings.Alert.Channels, "Enabled alert channels (sms, email)")
}
