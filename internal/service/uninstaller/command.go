package uninstaller

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/martinriedel/smartmeter/internal/config"
	"github.com/martinriedel/smartmeter/internal/logger"
	"github.com/martinriedel/smartmeter/internal/systemd"
)

// Options are inputs accepted by the uninstaller entry point.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
}

// serviceController is the subset of the systemd controller the uninstaller
// drives; tests substitute a fake.
type serviceController interface {
	Status(ctx context.Context) (systemd.State, error)
	Remove(ctx context.Context) error
}

// Run tears the service down and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "smartmeter-uninstall")

	cfg := loadOrDefault(ctx, opts.ConfigPath)
	controller := systemd.NewController(cfg.Service.Name)

	if err := run(ctx, cfg, controller); err != nil {
		logger.ErrorKV(ctx, "Uninstallation failed", "error", err)
		return err
	}

	return nil
}

// run removes the unit when present and reports the terminal state.
func run(ctx context.Context, cfg *config.Config, controller serviceController) error {
	state, err := controller.Status(ctx)
	if err != nil {
		return fmt.Errorf("query service state: %w", err)
	}

	if state == systemd.StateNotInstalled {
		logger.InfoKV(ctx, "Service is not installed, nothing to do", "name", cfg.Service.Name)
		return nil
	}

	logger.InfoKV(ctx, "Removing service", "name", cfg.Service.Name, "state", state.String())

	if err := controller.Remove(ctx); err != nil {
		return fmt.Errorf("remove service: %w", err)
	}

	logger.InfoKV(ctx, "Service removed", "name", cfg.Service.Name)

	return nil
}

// loadOrDefault reads the settings file, falling back to defaults when it
// does not exist. Teardown must work on hosts where the settings were
// already deleted.
func loadOrDefault(ctx context.Context, path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.WarnKV(ctx, "Unreadable settings, using defaults", "error", err)
		}

		return config.Default()
	}

	return cfg
}
