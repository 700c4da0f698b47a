package installer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/martinriedel/smartmeter/internal/config"
	"github.com/martinriedel/smartmeter/internal/logger"
	"github.com/martinriedel/smartmeter/internal/provision"
	"github.com/martinriedel/smartmeter/internal/systemd"
)

// Options are inputs accepted by the installer entry point.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// BinaryPath is the daemon binary to stage into the install directory.
	BinaryPath string
}

// unitDescription is written into the generated unit file.
const unitDescription = "Smart meter SML to MQTT bridge"

// errNotRunningAfterInstall indicates the service did not come up.
var errNotRunningAfterInstall = errors.New("service is not running after installation")

// serviceController is the subset of the systemd controller the installer
// drives; tests substitute a fake.
type serviceController interface {
	Status(ctx context.Context) (systemd.State, error)
	Install(ctx context.Context, unit systemd.Unit) error
	Remove(ctx context.Context) error
}

// packageProvisioner installs OS dependencies.
type packageProvisioner interface {
	Ensure(ctx context.Context) error
}

// installer holds the collaborators for a single installation run.
// It is unexported, callers use Run.
type installer struct {
	cfg          *config.Config
	binaryPath   string
	configTarget string
	controller   serviceController
	provisioner  packageProvisioner
	terminate    func(ctx context.Context, executable string) error
}

// Run executes the installation workflow and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "smartmeter-install")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	inst := &installer{
		cfg:          cfg,
		binaryPath:   opts.BinaryPath,
		configTarget: config.SystemConfigPath,
		controller:   systemd.NewController(cfg.Service.Name),
		provisioner:  provision.New(cfg.Provision),
		terminate:    terminateProcessesByName,
	}

	if err = inst.run(ctx); err != nil {
		logger.ErrorKV(ctx, "Installation failed", "error", err)
		return err
	}

	logger.Info(ctx, "Installation completed")

	return nil
}

// run performs the workflow:
// 1) Provision OS packages.
// 2) Stage the daemon binary into the install directory.
// 3) Persist settings where the daemon expects them.
// 4) Stop stray daemon processes running outside systemd.
// 5) Tear down any existing unit, stale ones included.
// 6) Write the unit, reload, enable, start.
// 7) Verify the service is running.
func (i *installer) run(ctx context.Context) error {
	logger.Info(ctx, "Provisioning OS packages")

	if err := i.provisioner.Ensure(ctx); err != nil {
		return fmt.Errorf("provision packages: %w", err)
	}

	installedPath, err := i.stageBinary(ctx)
	if err != nil {
		return fmt.Errorf("stage daemon binary: %w", err)
	}

	logger.InfoKV(ctx, "Persisting settings", "path", i.configTarget)

	if err = config.Save(i.configTarget, i.cfg); err != nil {
		return fmt.Errorf("persist settings: %w", err)
	}

	if err = i.terminate(ctx, filepath.Base(installedPath)); err != nil {
		return fmt.Errorf("stop stray daemon processes: %w", err)
	}

	if err = i.teardownExisting(ctx); err != nil {
		return err
	}

	unit := systemd.Unit{
		Description: unitDescription,
		ExecStart:   installedPath + " --config " + i.configTarget,
	}

	logger.InfoKV(ctx, "Registering service", "name", i.cfg.Service.Name)

	if err = i.controller.Install(ctx, unit); err != nil {
		return fmt.Errorf("install service: %w", err)
	}

	return i.verifyRunning(ctx)
}

// teardownExisting removes a present unit before reinstalling. A unit left
// behind by a stopped or failed instance counts as present too.
func (i *installer) teardownExisting(ctx context.Context) error {
	state, err := i.controller.Status(ctx)
	if err != nil {
		return fmt.Errorf("query service state: %w", err)
	}

	if state == systemd.StateNotInstalled {
		return nil
	}

	logger.InfoKV(ctx, "Removing existing service before reinstall", "state", state.String())

	if err := i.controller.Remove(ctx); err != nil {
		return fmt.Errorf("remove existing service: %w", err)
	}

	return nil
}

// verifyRunning confirms the freshly installed service is active.
func (i *installer) verifyRunning(ctx context.Context) error {
	state, err := i.controller.Status(ctx)
	if err != nil {
		return fmt.Errorf("query service state: %w", err)
	}

	if state != systemd.StateRunning {
		return fmt.Errorf("%w: state is %s", errNotRunningAfterInstall, state)
	}

	logger.InfoKV(ctx, "Service is running", "name", i.cfg.Service.Name)

	return nil
}
