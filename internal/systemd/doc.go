// Package systemd manages the smartmeter unit through systemctl. All host
// side effects go through the Controller, which is the single boundary
// between the installer binaries and the OS service registry; commands run
// through an injectable runner so tests never touch the host.
package systemd
