// Package installer provisions host dependencies and registers the daemon
// as a systemd service. Installation is idempotent: an existing unit is
// torn down before the new one is written, so running it twice leaves
// exactly one registration.
package installer
