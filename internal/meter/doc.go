// Package meter reads SML telegrams from the serial byte stream of an
// infrared read head and turns them into decoded readings. The byte source
// is abstracted so tests can replay canned streams.
package meter
