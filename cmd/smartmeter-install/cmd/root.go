package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/martinriedel/smartmeter/internal/config"
	"github.com/martinriedel/smartmeter/internal/service/installer"
	"github.com/martinriedel/smartmeter/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// binaryPath to the daemon binary staged into the install directory.
	binaryPath string

	// rootCmd represents the base command for installing the service.
	rootCmd = &cobra.Command{
		Use:   "smartmeter-install",
		Short: "Install the meter daemon as a systemd service",
		Long: `Provisions the OS packages the daemon needs, stages the daemon binary
into the install directory, and registers it as a systemd service.

Installation is idempotent: an existing unit, running or stale, is torn
down before the new one is written, so running the installer twice leaves
exactly one registration.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &installer.Options{
				ConfigPath: configPath,
				BinaryPath: binaryPath,
			}

			return installer.Run(ctx, options)
		},
	}
)

// Execute runs the smartmeter-install CLI and exits with non-zero status on error.
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
	rootCmd.Flags().StringVarP(&binaryPath, "binary", "b", "", "daemon binary to install (defaults to the one next to the installer)")
}
