// Package run executes host commands behind a small interface so packages
// with system side effects (package manager, service manager) stay testable.
package run

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Runner executes a command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Exec runs commands on the host, optionally with extra environment entries
// appended to the inherited environment.
type Exec struct {
	// Env holds extra KEY=VALUE entries for every command.
	Env []string
}

// Run executes the command and wraps failures with the trimmed output,
// which is usually the only diagnostic the system tools provide.
func (e Exec) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}

	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s %s: %w (%s)",
			name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}

	return out, nil
}
