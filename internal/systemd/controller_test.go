package systemd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeRunner records systemctl invocations and serves canned is-active output.
type fakeRunner struct {
	calls    []string
	isActive string
	failOn   string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	call := name + " " + strings.Join(args, " ")
	f.calls = append(f.calls, call)

	if f.failOn != "" && strings.Contains(call, f.failOn) {
		return nil, fmt.Errorf("%s: exit status 1", call)
	}

	if len(args) > 0 && args[0] == "is-active" {
		if f.isActive == "active" {
			return []byte("active\n"), nil
		}

		return []byte("inactive\n"), fmt.Errorf("%s: exit status 3", call)
	}

	return nil, nil
}

func newController(t *testing.T, runner *fakeRunner) *Controller {
	t.Helper()

	return NewController("smartmeter", WithRunner(runner), WithUnitDir(t.TempDir()))
}

// TestStatus_NotInstalled short-circuits without calling systemctl.
func TestStatus_NotInstalled(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	c := newController(t, runner)

	state, err := c.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateNotInstalled, state)
	require.Empty(t, runner.calls)
}

// TestInstall_WritesUnitAndStarts checks the unit file content and the
// daemon-reload/enable/start sequence.
func TestInstall_WritesUnitAndStarts(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{isActive: "active"}
	c := newController(t, runner)

	unit := Unit{
		Description: "Smart meter MQTT bridge",
		ExecStart:   "/usr/local/bin/smartmeter-daemon --config /etc/smartmeter/smartmeter.yaml",
	}
	require.NoError(t, c.Install(context.Background(), unit))

	content, err := os.ReadFile(c.UnitPath())
	require.NoError(t, err)

	text := string(content)
	require.Contains(t, text, "Description=Smart meter MQTT bridge")
	require.Contains(t, text, "ExecStart=/usr/local/bin/smartmeter-daemon --config /etc/smartmeter/smartmeter.yaml")
	require.Contains(t, text, "Restart=always")
	require.Contains(t, text, "After=multi-user.target")
	require.Contains(t, text, "WantedBy=multi-user.target")

	require.Equal(t, []string{
		"systemctl daemon-reload",
		"systemctl enable smartmeter.service",
		"systemctl start smartmeter.service",
	}, runner.calls)

	state, err := c.Status(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateRunning, state)
}

// TestInstall_RequiresExecStart rejects an empty start command.
func TestInstall_RequiresExecStart(t *testing.T) {
	t.Parallel()

	c := newController(t, &fakeRunner{})
	require.Error(t, c.Install(context.Background(), Unit{Description: "x"}))
}

// TestRemove_FullTeardown stops, disables, deletes, reloads and resets.
func TestRemove_FullTeardown(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{isActive: "active"}
	c := newController(t, runner)

	require.NoError(t, os.WriteFile(c.UnitPath(), []byte("[Unit]\n"), 0o644))
	require.NoError(t, c.Remove(context.Background()))

	require.Equal(t, []string{
		"systemctl is-active smartmeter.service",
		"systemctl stop smartmeter.service",
		"systemctl disable smartmeter.service",
		"systemctl daemon-reload",
		"systemctl reset-failed",
	}, runner.calls)

	_, err := os.Stat(c.UnitPath())
	require.True(t, os.IsNotExist(err))
}

// TestRemove_StoppedUnit_SkipsStop removes a stale unit without stopping it.
func TestRemove_StoppedUnit_SkipsStop(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	c := newController(t, runner)

	require.NoError(t, os.WriteFile(c.UnitPath(), []byte("[Unit]\n"), 0o644))
	require.NoError(t, c.Remove(context.Background()))

	require.NotContains(t, runner.calls, "systemctl stop smartmeter.service")
	require.Contains(t, runner.calls, "systemctl disable smartmeter.service")

	_, err := os.Stat(c.UnitPath())
	require.True(t, os.IsNotExist(err))
}

// TestRemove_NeverInstalled_IsNoOp performs no systemctl mutation at all.
func TestRemove_NeverInstalled_IsNoOp(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	c := newController(t, runner)

	require.NoError(t, c.Remove(context.Background()))
	require.Empty(t, runner.calls)
}

// TestRemove_AbortsOnFirstError stops the sequence at the failing step.
func TestRemove_AbortsOnFirstError(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{isActive: "active", failOn: "stop"}
	c := newController(t, runner)

	require.NoError(t, os.WriteFile(c.UnitPath(), []byte("[Unit]\n"), 0o644))
	require.Error(t, c.Remove(context.Background()))

	// The unit file survives an aborted teardown.
	_, err := os.Stat(c.UnitPath())
	require.NoError(t, err)
}

// TestStop_OnlyWhenRunning stops an active service and no-ops otherwise.
func TestStop_OnlyWhenRunning(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{isActive: "active"}
	c := newController(t, runner)

	require.NoError(t, os.WriteFile(c.UnitPath(), []byte("[Unit]\n"), 0o644))
	require.NoError(t, c.Stop(context.Background()))
	require.Contains(t, runner.calls, "systemctl stop smartmeter.service")

	stopped := &fakeRunner{}
	c = newController(t, stopped)

	require.NoError(t, c.Stop(context.Background()))
	require.NotContains(t, stopped.calls, "systemctl stop smartmeter.service")
}

// TestStart_InvokesSystemctl starts the unit.
func TestStart_InvokesSystemctl(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	c := newController(t, runner)

	require.NoError(t, c.Start(context.Background()))
	require.Equal(t, []string{"systemctl start smartmeter.service"}, runner.calls)
}

// TestState_String covers the log representations.
func TestState_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "not installed", StateNotInstalled.String())
	require.Equal(t, "stopped", StateStopped.String())
	require.Equal(t, "running", StateRunning.String())
	require.Equal(t, "unknown", State(42).String())
}
