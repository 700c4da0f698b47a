// Package sml implements the subset of the Smart Message Language used by
// SML-speaking electricity meters: transport framing with escape sequences
// and a CRC16 frame check, the Type-Length-Value encoding of message bodies,
// and extraction of energy/power readings from GetListResponse messages by
// their OBIS object names.
package sml
