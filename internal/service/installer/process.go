package installer

import (
	"context"
	"os"

	"github.com/mitchellh/go-ps"

	"github.com/martinriedel/smartmeter/internal/logger"
)

// terminateProcessesByName kills daemon instances started by hand, outside
// systemd. Left alive they would hold the serial port when the service starts.
func terminateProcessesByName(ctx context.Context, executable string) error {
	processList, err := ps.Processes()
	if err != nil {
		return err
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		processID := process.Pid()
		if processID == thisProcessID {
			continue
		}

		if process.Executable() != executable {
			continue
		}

		logger.InfoKV(ctx, "Stopping stray daemon process", "pid", processID)

		runningProcess, err := os.FindProcess(processID)
		if err != nil {
			return err
		}

		if err = runningProcess.Kill(); err != nil {
			return err
		}
	}

	return nil
}
