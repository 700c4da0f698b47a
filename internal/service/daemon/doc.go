// Package daemon runs the serial to MQTT bridge: it opens the meter's
// serial port, decodes SML telegrams, and publishes readings to the broker
// until the process is signalled.
package daemon
