// Package uninstaller removes the daemon's systemd registration. Removing
// a service that was never installed is a clean no-op.
package uninstaller
