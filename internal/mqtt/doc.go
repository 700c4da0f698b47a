// Package mqtt publishes meter readings to an MQTT broker. Each reading
// fans out to one topic per value plus a retained JSON state document, and
// an availability topic with a last-will message tracks daemon liveness.
package mqtt
