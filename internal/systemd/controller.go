package systemd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/martinriedel/smartmeter/internal/run"
)

// State is the observed condition of the managed unit.
type State int

// Unit states, ordered from absent to active.
const (
	// StateNotInstalled means no unit file exists.
	StateNotInstalled State = iota
	// StateStopped means the unit file exists but the service is inactive.
	StateStopped
	// StateRunning means the service is active.
	StateRunning
)

// String returns a human-readable state name for logging.
func (s State) String() string {
	switch s {
	case StateNotInstalled:
		return "not installed"
	case StateStopped:
		return "stopped"
	case StateRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Unit describes the service definition written to the unit file.
type Unit struct {
	// Description is the human-readable unit description.
	Description string
	// ExecStart is the full start command: absolute binary path plus arguments.
	ExecStart string
}

// DefaultUnitDir is where systemd looks for administrator-provided units.
const DefaultUnitDir = "/etc/systemd/system"

// unitFilePermissions matches what systemd expects for unit files.
const unitFilePermissions = 0o644

// unitTemplate renders the persisted service definition: ordered after the
// multi-user target, restarted unconditionally, wanted by multi-user.
//
//nolint:gochecknoglobals // Parsed once at startup.
var unitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description={{.Description}}
After=multi-user.target

[Service]
Type=simple
ExecStart={{.ExecStart}}
Restart=always

[Install]
WantedBy=multi-user.target
`))

// errExecStartRequired is returned when a unit without a start command is installed.
var errExecStartRequired = errors.New("unit exec start must be provided")

// Controller manages one named systemd unit.
type Controller struct {
	name    string
	unitDir string
	runner  run.Runner
}

// Option configures the controller.
type Option func(*Controller)

// WithRunner substitutes the command runner; tests record invocations
// instead of touching the host.
func WithRunner(r run.Runner) Option {
	return func(c *Controller) {
		c.runner = r
	}
}

// WithUnitDir overrides the unit file directory.
func WithUnitDir(dir string) Option {
	return func(c *Controller) {
		c.unitDir = dir
	}
}

// NewController returns a controller for the named service.
func NewController(name string, opts ...Option) *Controller {
	c := &Controller{
		name:    name,
		unitDir: DefaultUnitDir,
		runner:  run.Exec{},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// UnitPath is the filesystem location of the unit file.
func (c *Controller) UnitPath() string {
	return filepath.Join(c.unitDir, c.name+".service")
}

// serviceArg is the unit name as systemctl expects it.
func (c *Controller) serviceArg() string {
	return c.name + ".service"
}

// Status reports the observed unit state. A missing unit file short-circuits
// to StateNotInstalled without invoking systemctl.
func (c *Controller) Status(ctx context.Context) (State, error) {
	if _, err := os.Stat(c.UnitPath()); err != nil {
		if os.IsNotExist(err) {
			return StateNotInstalled, nil
		}

		return StateNotInstalled, fmt.Errorf("stat unit file: %w", err)
	}

	// `is-active` exits non-zero for anything but an active unit,
	// which is a state here, not a failure.
	out, err := c.runner.Run(ctx, "systemctl", "is-active", c.serviceArg())
	if err == nil && strings.TrimSpace(string(out)) == "active" {
		return StateRunning, nil
	}

	return StateStopped, nil
}

// Install writes the unit file and brings the service up:
// write, daemon-reload, enable, start.
func (c *Controller) Install(ctx context.Context, unit Unit) error {
	if unit.ExecStart == "" {
		return errExecStartRequired
	}

	var rendered bytes.Buffer
	if err := unitTemplate.Execute(&rendered, unit); err != nil {
		return fmt.Errorf("render unit file: %w", err)
	}

	if err := os.WriteFile(c.UnitPath(), rendered.Bytes(), unitFilePermissions); err != nil {
		return fmt.Errorf("write unit file: %w", err)
	}

	steps := [][]string{
		{"daemon-reload"},
		{"enable", c.serviceArg()},
		{"start", c.serviceArg()},
	}

	for _, args := range steps {
		if _, err := c.runner.Run(ctx, "systemctl", args...); err != nil {
			return err
		}
	}

	return nil
}

// Stop halts the running service without touching its registration.
// Stopping a service that is not running is a no-op.
func (c *Controller) Stop(ctx context.Context) error {
	state, err := c.Status(ctx)
	if err != nil {
		return err
	}

	if state != StateRunning {
		return nil
	}

	_, err = c.runner.Run(ctx, "systemctl", "stop", c.serviceArg())

	return err
}

// Start brings the installed service up.
func (c *Controller) Start(ctx context.Context) error {
	_, err := c.runner.Run(ctx, "systemctl", "start", c.serviceArg())
	return err
}

// Remove tears the service down: stop (when running), disable, delete the
// unit file, daemon-reload, reset-failed. Removing a unit that was never
// installed is a no-op.
func (c *Controller) Remove(ctx context.Context) error {
	state, err := c.Status(ctx)
	if err != nil {
		return err
	}

	if state == StateNotInstalled {
		return nil
	}

	if state == StateRunning {
		if _, err := c.runner.Run(ctx, "systemctl", "stop", c.serviceArg()); err != nil {
			return err
		}
	}

	if _, err := c.runner.Run(ctx, "systemctl", "disable", c.serviceArg()); err != nil {
		return err
	}

	if err := os.Remove(c.UnitPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove unit file: %w", err)
	}

	if _, err := c.runner.Run(ctx, "systemctl", "daemon-reload"); err != nil {
		return err
	}

	// Clears any recorded failure state so a reinstall starts clean.
	if _, err := c.runner.Run(ctx, "systemctl", "reset-failed"); err != nil {
		return err
	}

	return nil
}
