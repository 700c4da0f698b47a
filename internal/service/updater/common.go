package updater

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/martinriedel/smartmeter/internal/logger"
	"github.com/martinriedel/smartmeter/internal/version"

	// Ensure SHA512 available for checksum calculation.
	_ "crypto/sha512"
)

var errHashUnavailable = errors.New("hash function unavailable")

const (
	// ManifestFilename stores the release manifest pushed to hosts.
	ManifestFilename = "smartmeter-version.yaml"

	// MarkerFilename marks that the updater is running right now to avoid parallel execution.
	MarkerFilename = "smartmeter-update-marker.bin"

	// DefaultFileMode is used when producing artifacts for distribution.
	DefaultFileMode os.FileMode = 0o755

	// DefaultChecksumFunction is used to calculate update file hashes.
	DefaultChecksumFunction crypto.Hash = crypto.SHA512

	// DaemonExecutable is the binary the service runs.
	DaemonExecutable = "smartmeter-daemon"

	// updaterExecutable is this binary's name, used for stale marker recovery.
	updaterExecutable = "smartmeter-updater"

	// markerLifetime is the period after which a stale update marker is ignored.
	markerLifetime = 30 * time.Second

	// defaultMapCapacity is the default initial capacity for maps and slices.
	defaultMapCapacity = 8
)

// Artifacts returns the binaries distributed to meter hosts.
func Artifacts() []string {
	return []string{
		DaemonExecutable,
		"smartmeter-install",
		"smartmeter-uninstall",
		updaterExecutable,
	}
}

// Manifest contains metadata about a published release.
type Manifest struct {
	// Version is the semantic version of this release.
	Version string `yaml:"version"`
	// Files maps artifact names to their base64-encoded SHA-512 checksums.
	Files map[string]string `yaml:"files"`
	// Artifacts lists the files a host must fetch for this release.
	Artifacts []string `yaml:"artifacts"`
	// Executable is the daemon binary the service runs after updating.
	Executable string `yaml:"executable"`
}

// NewManifest produces a Manifest initialized for the current build.
func NewManifest() *Manifest {
	return &Manifest{
		Version:    version.Short(),
		Files:      make(map[string]string, defaultMapCapacity),
		Artifacts:  Artifacts(),
		Executable: DaemonExecutable,
	}
}

// FileChecksum returns checksum bytes for a file using DefaultChecksumFunction.
func FileChecksum(path string) ([]byte, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	if !DefaultChecksumFunction.Available() {
		return nil, fmt.Errorf("checksum calculation not possible: %w", errHashUnavailable)
	}

	hasher := DefaultChecksumFunction.New()
	if _, err = hasher.Write(contents); err != nil {
		return nil, fmt.Errorf("calculate checksum: %w", err)
	}

	return hasher.Sum(nil), nil
}

// IsUpdaterRunningNow checks presence of a marker file and attempts recovery if it looks stale.
func IsUpdaterRunningNow(ctx context.Context) bool {
	logger.Info(ctx, "Checking for the presence of an update marker")

	fileInfo, err := os.Stat(MarkerFilename)
	if err == nil {
		if time.Since(fileInfo.ModTime()) <= markerLifetime {
			return true
		}

		logger.Info(ctx, "The update marker is too old, attempting cleanup")

		if err = terminateProcessByName(updaterExecutable); err != nil {
			return true
		}

		if err = os.Remove(MarkerFilename); err != nil {
			return true
		}

		return false
	}

	if errors.Is(err, os.ErrNotExist) {
		logger.Info(ctx, "Update marker not found, continuing")
		return false
	}

	logger.Infof(ctx, "Unable to read update marker: %v", err)

	return false
}

// terminateProcessByName tries to kill processes with the provided executable name.
func terminateProcessByName(processName string) error {
	processList, err := ps.Processes()
	if err != nil {
		return err
	}

	thisProcessID := os.Getpid()

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() != processName {
			continue
		}

		runningProcess, err := os.FindProcess(process.Pid())
		if err != nil {
			return err
		}

		if err = runningProcess.Kill(); err != nil {
			return err
		}
	}

	return nil
}
