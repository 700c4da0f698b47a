package packager

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/martinriedel/smartmeter/internal/logger"
	"github.com/martinriedel/smartmeter/internal/service/updater"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// ArtifactsDir is where the built binaries are read from (defaults to
	// the current directory).
	ArtifactsDir string
	// UpdateFolder is the URL where the artifacts will be uploaded.
	UpdateFolder string
}

// errUpdaterRunning indicates that packaging was attempted while an update is in progress.
var errUpdaterRunning = errors.New("the updater is running now")

// packager prepares release metadata for distribution.
// It is unexported, callers should use Run.
type packager struct {
	// artifactsDir holds the built binaries to hash.
	artifactsDir string
	// updateFolder is echoed in the upload instructions.
	updateFolder string
	// manifest collects the release checksums and artifact list.
	manifest *updater.Manifest
}

// Run executes the packaging workflow.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "smartmeter-packager")

	if updater.IsUpdaterRunningNow(ctx) {
		return errUpdaterRunning
	}

	pkg := &packager{
		artifactsDir: opts.ArtifactsDir,
		updateFolder: opts.UpdateFolder,
		manifest:     updater.NewManifest(),
	}

	if pkg.artifactsDir == "" {
		pkg.artifactsDir = "."
	}

	if err := pkg.run(ctx); err != nil {
		return fmt.Errorf("packager failed: %w", err)
	}

	logger.Info(ctx, "Packager completed successfully")

	return nil
}

// run populates and writes the release manifest to disk.
func (p *packager) run(ctx context.Context) error {
	logger.Info(ctx, "Preparing release manifest")

	if err := p.fillManifest(); err != nil {
		return err
	}

	manifestPath := filepath.Join(p.artifactsDir, updater.ManifestFilename)

	logger.InfoKV(ctx, "Saving release manifest", "path", manifestPath)

	if err := p.saveManifest(manifestPath); err != nil {
		return err
	}

	p.printNextSteps(ctx)

	return nil
}

// fillManifest hashes every artifact into the manifest.
func (p *packager) fillManifest() error {
	for _, fileName := range p.manifest.Artifacts {
		artifactPath := filepath.Join(p.artifactsDir, fileName)

		if _, err := os.Stat(artifactPath); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", artifactPath, os.ErrNotExist)
		} else if err != nil {
			return fmt.Errorf("stat %s: %w", artifactPath, err)
		}

		checksum, err := updater.FileChecksum(artifactPath)
		if err != nil {
			return err
		}

		p.manifest.Files[fileName] = base64.StdEncoding.EncodeToString(checksum)
	}

	return nil
}

// saveManifest writes the manifest next to the artifacts.
func (p *packager) saveManifest(path string) error {
	contents, err := yaml.Marshal(p.manifest)
	if err != nil {
		return err
	}

	return os.WriteFile(path, contents, updater.DefaultFileMode)
}

// printNextSteps logs human-readable guidance for publishing the release.
func (p *packager) printNextSteps(ctx context.Context) {
	files := make([]string, 0, len(p.manifest.Files)+1)
	for fileName := range p.manifest.Files {
		files = append(files, fileName)
	}

	files = append(files, updater.ManifestFilename)
	sort.Strings(files)

	var builder strings.Builder

	builder.WriteString("You should upload the following files to the folder ")
	builder.WriteString(p.updateFolder)
	builder.WriteString(":\n")
	builder.WriteString(strings.Join(files, ",\n"))
	builder.WriteString("\n\nMeter hosts pick the release up on their next smartmeter-updater run.")

	logger.Info(ctx, builder.String())
}
