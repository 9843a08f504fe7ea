// Package bitdb implements the mutable tile bit database: the mapping
// between a tile's structured configuration and the raw per-tile array
// of configuration cells a bitstream contains.
//
// The database holds three kinds of entry for a tile type:
//   - muxes: a sink signal and the source arcs that can drive it, each
//     selected by a group of configuration bits
//   - word settings: named multi-bit values such as LUT init words
//   - enum settings: named options such as an IO type
//
// Each entry converts both ways: writing a chosen value into a raw
// tile view, and resolving the current value back out of one. Reads
// apply default compaction, so a reconstructed config only lists
// settings that deviate from the tile's power-up state.
//
// Unlike the chip-level databases the bit database is mutable at
// runtime: fuzzing probes real hardware and registers what it finds
// through the Add* methods, which merge new discoveries and reject
// contradictions. Databases are shared process-wide through a Registry
// and are safe for concurrent read-heavy, occasional-write access.
package bitdb
