// Package packager produces the release manifest the updater consumes:
// SHA-512 checksums of the built binaries plus the artifact list, ready to
// upload to the HTTP update folder.
package packager
