package provision

import (
	"context"

	"github.com/martinriedel/smartmeter/internal/config"
	"github.com/martinriedel/smartmeter/internal/logger"
	"github.com/martinriedel/smartmeter/internal/run"
)

// aptEnv keeps apt from prompting on a headless install.
//
//nolint:gochecknoglobals // Shared constant environment.
var aptEnv = []string{
	"DEBIAN_FRONTEND=noninteractive",
	"DEBIAN_PRIORITY=critical",
}

// Provisioner ensures a set of OS packages is present via apt.
type Provisioner struct {
	marker   string
	packages []string
	runner   run.Runner
}

// Option configures the provisioner.
type Option func(*Provisioner)

// WithRunner substitutes the command runner for tests.
func WithRunner(r run.Runner) Option {
	return func(p *Provisioner) {
		p.runner = r
	}
}

// New builds a provisioner from the provision section of the settings.
func New(cfg config.Provision, opts ...Option) *Provisioner {
	p := &Provisioner{
		marker:   cfg.Marker,
		packages: cfg.Packages,
		runner:   run.Exec{Env: aptEnv},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Ensure installs the configured packages unless the marker package is
// already present. Steps abort on the first error; there is no rollback
// of a partially provisioned host.
func (p *Provisioner) Ensure(ctx context.Context) error {
	if len(p.packages) == 0 {
		logger.Debug(ctx, "No packages configured, skipping provisioning")
		return nil
	}

	if p.marker != "" && p.installed(ctx, p.marker) {
		logger.InfoKV(ctx, "Marker package present, skipping provisioning", "marker", p.marker)
		return nil
	}

	logger.Info(ctx, "Refreshing package index")

	if _, err := p.runner.Run(ctx, "apt-get", "update"); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Installing packages", "packages", p.packages)

	args := append([]string{"install", "-y"}, p.packages...)
	if _, err := p.runner.Run(ctx, "apt-get", args...); err != nil {
		return err
	}

	return nil
}

// installed checks package presence through dpkg's status database.
func (p *Provisioner) installed(ctx context.Context, pkg string) bool {
	_, err := p.runner.Run(ctx, "dpkg", "-s", pkg)
	return err == nil
}
