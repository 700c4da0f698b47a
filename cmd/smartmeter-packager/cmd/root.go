package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/martinriedel/smartmeter/internal/service/packager"
	"github.com/martinriedel/smartmeter/internal/version"
)

var (
	// artifactsDir holds the built binaries to hash.
	artifactsDir string

	// rootCmd represents the base command for preparing release metadata.
	rootCmd = &cobra.Command{
		Use:   "smartmeter-packager [update-folder]",
		Short: "Prepare a release manifest for distribution",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &packager.Options{
				ArtifactsDir: artifactsDir,
				UpdateFolder: args[0],
			}

			return packager.Run(ctx, options)
		},
	}
)

// Execute runs the smartmeter-packager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&artifactsDir, "artifacts-dir", "a", ".", "directory holding the built binaries")
}
