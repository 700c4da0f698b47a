package installer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/martinriedel/smartmeter/internal/logger"
)

// binaryPermissions marks the staged daemon executable.
const binaryPermissions = 0o755

// stageBinary copies the daemon binary into the install directory and
// returns the installed path. The copy goes through a temporary file in the
// target directory and a rename, so a concurrent exec never sees a partial
// binary.
func (i *installer) stageBinary(ctx context.Context) (string, error) {
	source := i.binaryPath
	if source == "" {
		source = defaultBinaryPath()
	}

	installedPath := filepath.Join(i.cfg.Service.InstallDir, filepath.Base(source))

	logger.InfoKV(ctx, "Staging daemon binary", "source", source, "target", installedPath)

	if err := os.MkdirAll(i.cfg.Service.InstallDir, 0o755); err != nil {
		return "", fmt.Errorf("create install directory: %w", err)
	}

	if err := atomicCopy(source, installedPath); err != nil {
		return "", err
	}

	return installedPath, nil
}

// defaultBinaryPath expects the daemon binary next to the installer.
func defaultBinaryPath() string {
	self, err := os.Executable()
	if err != nil {
		return "smartmeter-daemon"
	}

	return filepath.Join(filepath.Dir(self), "smartmeter-daemon")
}

// atomicCopy writes target via a temporary sibling file and a rename.
func atomicCopy(source, target string) error {
	in, err := os.Open(filepath.Clean(source))
	if err != nil {
		return fmt.Errorf("open %s: %w", source, err)
	}

	defer func() {
		_ = in.Close()
	}()

	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".tmp-")
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}

	tmpName := tmp.Name()

	if _, err = io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)

		return fmt.Errorf("copy %s: %w", source, err)
	}

	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("close temporary file: %w", err)
	}

	if err = os.Chmod(tmpName, binaryPermissions); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("mark binary executable: %w", err)
	}

	if err = os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("move binary into place: %w", err)
	}

	return nil
}
