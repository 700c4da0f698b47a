package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/martinriedel/smartmeter/internal/config"
	"github.com/martinriedel/smartmeter/internal/service/uninstaller"
	"github.com/martinriedel/smartmeter/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// rootCmd represents the base command for removing the service.
	rootCmd = &cobra.Command{
		Use:   "smartmeter-uninstall",
		Short: "Remove the meter daemon's systemd service",
		Long: `Stops and disables the systemd service, removes its unit file, and
reloads the systemd state. Removing a service that was never installed
is a clean no-op.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &uninstaller.Options{
				ConfigPath: configPath,
			}

			return uninstaller.Run(ctx, options)
		},
	}
)

// Execute runs the smartmeter-uninstall CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.SystemConfigPath, "path to configuration file")
}
