package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/martinriedel/smartmeter/internal/config"
	"github.com/martinriedel/smartmeter/internal/service/daemon"
	"github.com/martinriedel/smartmeter/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// serialPort overrides the serial device from the settings file.
	serialPort string
	// broker overrides the MQTT broker URL from the settings file.
	broker string

	// rootCmd represents the base command for running the meter bridge.
	rootCmd = &cobra.Command{
		Use:   "smartmeter-daemon",
		Short: "Read SML telegrams from the meter and publish them over MQTT",
		Long: `Reads SML telegrams from the infrared read head on the serial port,
decodes energy import/export and active power, and publishes the values
to the configured MQTT broker until the process is signalled.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &daemon.Options{
				ConfigPath: configPath,
				SerialPort: serialPort,
				Broker:     broker,
			}

			return daemon.Run(ctx, options)
		},
	}
)

// Execute runs the smartmeter-daemon CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&serialPort, "port", "p", "", "serial device override")
	rootCmd.Flags().StringVarP(&broker, "broker", "b", "", "mqtt broker URL override")
}
