package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/martinriedel/smartmeter/internal/config"
	"github.com/martinriedel/smartmeter/internal/service/updater"
	"github.com/martinriedel/smartmeter/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// rootCmd represents the base command for downloading and applying updates.
	rootCmd = &cobra.Command{
		Use:   "smartmeter-updater",
		Short: "Download and apply updates from the update folder",
		Long: `Fetches the release manifest from the configured update folder, compares
versions and checksums against the installed binaries, applies any
pending updates with the service stopped, and starts the service again.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &updater.Options{
				ConfigPath: configPath,
			}

			return updater.Run(ctx, options)
		},
	}
)

// Execute runs the smartmeter-updater CLI and exits with non-zero status on error.
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
