// Package config loads, validates and persists YAML settings shared by the
// smartmeter binaries: serial port parameters, MQTT broker credentials and
// topics, systemd service identity, package provisioning lists and the
// update folder used by the updater.
package config
