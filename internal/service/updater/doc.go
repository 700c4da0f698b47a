// Package updater downloads and applies binary updates published to an
// HTTP update folder, restarting the systemd service afterwards. A marker
// file guards against concurrent runs.
package updater
