package updater

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"time"

	goupdate "github.com/doitdistributed/go-update"
	"gopkg.in/yaml.v3"

	"github.com/martinriedel/smartmeter/internal/config"
	"github.com/martinriedel/smartmeter/internal/logger"
	"github.com/martinriedel/smartmeter/internal/systemd"
)

var (
	errUpdaterAlreadyRunning = errors.New("the updater is already running")
	errNoUpdateFolder        = errors.New("no update folder configured")
	errEmptyManifest         = errors.New("release manifest is empty")
	errNoChecksum            = errors.New("checksum missing for file")
	errBadHTTPStatus         = errors.New("unexpected http status")
	errInvalidVersionOutput  = errors.New("invalid version output format")
)

// versionCommandTimeout is the timeout for executing version commands.
const versionCommandTimeout = 10 * time.Second

// Options are inputs accepted by the updater entry point.
type Options struct {
	// ConfigPath is the optional path to settings YAML file.
	ConfigPath string
}

// serviceController is the subset of the systemd controller the updater
// drives; tests substitute a fake.
type serviceController interface {
	Stop(ctx context.Context) error
	Start(ctx context.Context) error
}

// runner holds the mutable state and helpers for a single update execution.
// It is intentionally unexported, call Run(ctx, Options) from callers.
type runner struct {
	manifest           *Manifest         // Remote manifest describing the release.
	cfg                *config.Config    // Settings loaded from YAML.
	controller         serviceController // Restarts the service around the update.
	localVersion       string            // Detected local version.
	filesOutdated      bool              // Whether host files differ from published checksums.
	temporaryDirectory string            // Where new files are downloaded before apply.
	downloadedFiles    map[string]string // Artifact name -> local temp path.
}

// Run executes the updater lifecycle and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "smartmeter-updater")

	up, err := newRunner(ctx, opts)
	if err != nil {
		return err
	}

	defer up.cleanup(ctx)

	if err = up.run(ctx); err != nil {
		logger.ErrorKV(ctx, "Updater run failed", "error", err)
		return err
	}

	logger.Info(ctx, "Updater completed")

	return nil
}

// newRunner prepares the run and writes a marker to avoid concurrent runs.
func newRunner(ctx context.Context, opts *Options) (*runner, error) {
	u := &runner{
		downloadedFiles: make(map[string]string, defaultMapCapacity),
	}

	if IsUpdaterRunningNow(ctx) {
		return u, errUpdaterAlreadyRunning
	}

	updateMarker, err := os.Create(MarkerFilename)
	if err != nil {
		return u, err
	}

	if err = updateMarker.Close(); err != nil {
		return u, err
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return u, err
	}

	if cfg.UpdateFolder == "" {
		return u, errNoUpdateFolder
	}

	u.cfg = cfg
	u.controller = systemd.NewController(cfg.Service.Name)

	return u, nil
}

// run executes the workflow:
// 1) Detect local version.
// 2) Fetch the release manifest.
// 3) Compare versions and checksums.
// 4) Download and apply files if needed, with the service stopped.
// 5) Start the service.
func (u *runner) run(ctx context.Context) error {
	logger.Info(ctx, "Detecting local version from installed daemon")

	if err := u.detectAndSetLocalVersion(ctx); err != nil {
		return fmt.Errorf("detect local version: %w", err)
	}

	logger.Info(ctx, "Downloading the release manifest")

	if err := u.fillManifest(ctx); err != nil {
		return fmt.Errorf("download release manifest: %w", err)
	}

	versionUpdateNeeded, err := u.determineUpdateNeeded(ctx)
	if err != nil {
		return err
	}

	if err = u.executeUpdateIfNeeded(ctx, versionUpdateNeeded); err != nil {
		return err
	}

	logger.Info(ctx, "Starting the service")

	if err = u.controller.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	return nil
}

// detectAndSetLocalVersion detects the local version and stores it for later use.
func (u *runner) detectAndSetLocalVersion(ctx context.Context) error {
	localVersion, err := u.detectLocalVersion(ctx)
	if err != nil {
		return err
	}

	u.localVersion = localVersion

	return nil
}

// determineUpdateNeeded checks if an update is required based on version and checksum comparison.
func (u *runner) determineUpdateNeeded(ctx context.Context) (bool, error) {
	versionUpdateNeeded := u.compareVersions(ctx, u.localVersion, u.manifest.Version)

	logger.Info(ctx, "Verifying artifact checksums against the manifest")

	if err := u.validateChecksums(); err != nil {
		return false, fmt.Errorf("validate checksums: %w", err)
	}

	return versionUpdateNeeded, nil
}

// executeUpdateIfNeeded performs the update process if either version or file updates are needed.
// The service stays stopped for the duration of the file swap.
func (u *runner) executeUpdateIfNeeded(ctx context.Context, versionUpdateNeeded bool) error {
	if !versionUpdateNeeded && !u.filesOutdated {
		logger.Info(ctx, "No update required - version and files are current")
		return nil
	}

	u.logUpdateReasons(ctx, versionUpdateNeeded)

	logger.Info(ctx, "Stopping the service before applying files")

	if err := u.controller.Stop(ctx); err != nil {
		return fmt.Errorf("stop service: %w", err)
	}

	logger.Info(ctx, "Downloading update files to a temporary folder")

	if err := u.downloadFiles(ctx); err != nil {
		return fmt.Errorf("download update files: %w", err)
	}

	logger.Info(ctx, "Applying update files")

	if err := u.updateFiles(ctx); err != nil {
		return fmt.Errorf("apply update files: %w", err)
	}

	return nil
}

// logUpdateReasons logs the reasons why an update is needed.
func (u *runner) logUpdateReasons(ctx context.Context, versionUpdateNeeded bool) {
	if versionUpdateNeeded {
		logger.InfoKV(ctx, "Version update required", "reason", "version_mismatch")
	}

	if u.filesOutdated {
		logger.InfoKV(ctx, "File update required", "reason", "checksum_mismatch")
	}
}

// detectLocalVersion runs the installed daemon to get the current version.
func (u *runner) detectLocalVersion(ctx context.Context) (string, error) {
	executable := filepath.Join(u.cfg.Service.InstallDir, DaemonExecutable)

	// Bounded so a wedged binary cannot hang the update.
	cmdCtx, cancel := context.WithTimeout(ctx, versionCommandTimeout)
	defer cancel()

	output, err := exec.CommandContext(cmdCtx, executable, "version").Output()
	if err != nil {
		logger.Warnf(ctx, "Could not get local version from %s: %v", executable, err)
		return "", nil // Not an error - might be first install.
	}

	return parseVersionFromOutput(string(output))
}

// parseVersionFromOutput extracts the semantic version from version command output.
func parseVersionFromOutput(output string) (string, error) {
	// Parse "version: 1.0.0, commit: abc123, built at: ..." into "1.0.0".
	output = strings.TrimSpace(output)
	if strings.HasPrefix(output, "version: ") {
		parts := strings.Split(output, ",")
		if len(parts) > 0 {
			version := strings.TrimSpace(strings.TrimPrefix(parts[0], "version: "))
			if version != "" {
				return version, nil
			}
		}
	}

	return "", errInvalidVersionOutput
}

// compareVersions compares local vs remote versions and logs the decision.
func (u *runner) compareVersions(ctx context.Context, localVersion, remoteVersion string) bool {
	if localVersion == "" {
		logger.Info(ctx, "No local version detected, update needed")
		return true
	}

	if localVersion != remoteVersion {
		logger.InfoKV(ctx, "Version mismatch detected",
			"local", localVersion, "remote", remoteVersion)

		return true
	}

	logger.InfoKV(ctx, "Versions match, checking file integrity",
		"version", localVersion)

	// Still check checksums for integrity.
	return false
}

// fillManifest downloads and parses the remote release manifest.
func (u *runner) fillManifest(ctx context.Context) error {
	response, err := u.getFileBodyFromServer(ctx, ManifestFilename)
	if response != nil {
		defer func() {
			_ = response.Body.Close()
		}()
	}

	if err != nil {
		return err
	}

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}

	var manifest Manifest
	if err = yaml.Unmarshal(data, &manifest); err != nil {
		return err
	}

	u.manifest = &manifest

	return nil
}

// getFileBodyFromServer fetches a file from the update folder.
func (u *runner) getFileBodyFromServer(ctx context.Context, fileName string) (*http.Response, error) {
	updateURL, err := url.Parse(u.cfg.UpdateFolder)
	if err != nil {
		return nil, err
	}

	// Use path.Join to normalize duplicate slashes when composing the URL path.
	updateURL.Path = path.Join(updateURL.Path, fileName)
	finalURL := updateURL.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, finalURL, http.NoBody)
	if err != nil {
		return nil, err
	}

	response, err := http.DefaultClient.Do(req)
	if err != nil {
		return response, err
	}

	if response.StatusCode != http.StatusOK {
		return response, fmt.Errorf("%s, %s: %w", finalURL, response.Status, errBadHTTPStatus)
	}

	return response, err
}

// validateChecksums compares local and published checksums to decide whether
// an update is required. It returns early on the first mismatch to avoid
// unnecessary I/O when an update is already known to be needed.
func (u *runner) validateChecksums() error {
	if u.manifest == nil {
		return errEmptyManifest
	}

	for _, fileName := range u.manifest.Artifacts {
		needsUpdate, err := u.validateFileChecksum(fileName)
		if err != nil {
			return err
		}

		if needsUpdate {
			u.filesOutdated = true
			return nil
		}
	}

	return nil
}

// validateFileChecksum validates a single artifact against the manifest.
// Returns true if the file needs updating, false if it's up to date.
func (u *runner) validateFileChecksum(fileName string) (bool, error) {
	publishedChecksum, err := u.publishedChecksum(fileName)
	if err != nil {
		return false, err
	}

	localChecksum, err := u.localChecksum(fileName)
	if err != nil {
		return false, err
	}

	return !bytes.Equal(publishedChecksum, localChecksum), nil
}

// publishedChecksum retrieves and decodes the manifest checksum for a file.
func (u *runner) publishedChecksum(fileName string) ([]byte, error) {
	encoded, found := u.manifest.Files[fileName]
	if !found {
		return nil, fmt.Errorf("checksum for %s: %w", fileName, errNoChecksum)
	}

	checksum, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}

	return checksum, nil
}

// localChecksum hashes the installed artifact.
// Returns nil checksum if the file doesn't exist yet.
func (u *runner) localChecksum(fileName string) ([]byte, error) {
	installedPath := u.installedPath(fileName)

	if _, err := os.Stat(installedPath); err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, needs update.
			return nil, nil
		}

		return nil, err
	}

	return FileChecksum(installedPath)
}

// installedPath locates an artifact on the host.
func (u *runner) installedPath(fileName string) string {
	return filepath.Join(u.cfg.Service.InstallDir, fileName)
}

// downloadFiles downloads required files into a temporary directory.
func (u *runner) downloadFiles(ctx context.Context) error {
	temporaryDirectory, err := os.MkdirTemp("", "smartmeter-updater-")
	if err != nil {
		return err
	}

	u.temporaryDirectory = temporaryDirectory

	for _, fileName := range u.manifest.Artifacts {
		var response *http.Response

		response, err = u.getFileBodyFromServer(ctx, fileName)
		if err != nil {
			if response != nil {
				_ = response.Body.Close()
			}

			return err
		}

		outputFileName := filepath.Clean(filepath.Join(temporaryDirectory, fileName))

		var outputFile *os.File

		outputFile, err = os.Create(outputFileName)
		if err != nil {
			_ = response.Body.Close()

			return err
		}

		_, err = io.Copy(outputFile, response.Body)

		_ = response.Body.Close()
		_ = outputFile.Close()

		if err != nil {
			return err
		}

		u.downloadedFiles[fileName] = outputFileName
		logger.InfoKV(ctx, "Downloaded file", "path", outputFileName)
	}

	return nil
}

// updateFiles applies downloaded files using go-update with checksum validation.
func (u *runner) updateFiles(ctx context.Context) error {
	for fileName, downloadedFileName := range u.downloadedFiles {
		logger.InfoKV(ctx, "Updating file", "file", fileName)

		data, err := os.ReadFile(filepath.Clean(downloadedFileName))
		if err != nil {
			return err
		}

		checksum, err := u.publishedChecksum(fileName)
		if err != nil {
			return err
		}

		installedPath := u.installedPath(fileName)

		if _, err = os.Stat(installedPath); err != nil && os.IsNotExist(err) {
			if _, err = os.Create(installedPath); err != nil {
				return err
			}
		}

		options := goupdate.Options{
			TargetPath: installedPath,
			TargetMode: DefaultFileMode,
			Checksum:   checksum,
			Hash:       DefaultChecksumFunction,
		}

		if err = goupdate.Apply(bytes.NewReader(data), options); err != nil {
			return err
		}

		oldFileName := installedPath + ".old"
		if _, err = os.Stat(oldFileName); err == nil {
			_ = os.Remove(oldFileName)
		}
	}

	return nil
}

// cleanup removes temporary artifacts and the running marker.
func (u *runner) cleanup(ctx context.Context) {
	if _, err := os.Stat(MarkerFilename); err == nil {
		_ = os.Remove(MarkerFilename)
	}

	if u.temporaryDirectory != "" {
		if _, err := os.Stat(u.temporaryDirectory); err == nil {
			_ = os.RemoveAll(u.temporaryDirectory)
		}
	}

	logger.Info(ctx, "The updater has been stopped")
}
