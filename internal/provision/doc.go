// Package provision installs the OS packages the daemon's host needs. A
// configurable marker package acts as a proxy for "toolchain already
// present": when it is installed, the whole step is skipped without
// refreshing the package index.
package provision
