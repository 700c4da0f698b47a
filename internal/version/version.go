package version

import "fmt"

// Build metadata, overridden via ldflags:
//
//	-X .../internal/version.Version=1.2.3
//	-X .../internal/version.Commit=$(git rev-parse --short HEAD)
//	-X .../internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)
var (
	// Version is the semantic version of the release.
	Version = "1.0.0"
	// Commit is the short git SHA (or "none" for local builds).
	Commit = "none"
	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// Short returns only the semantic version string. Release manifests carry
// this value.
func Short() string {
	return Version
}

// Full returns a human-readable version string with commit and build time.
// smartmeter-updater parses this line to detect the installed version, so
// the "version: <semver>," lead must stay stable.
func Full() string {
	return fmt.Sprintf("version: %s, commit: %s, built at: %s", Version, Commit, BuildTime)
}
