// Package cram provides the raw configuration-memory view a tile bit
// database decodes from and encodes into.
//
// A tile's configuration RAM is addressed by two coordinates: the frame
// index and the bit offset within the frame. The View interface exposes
// single-bit reads and writes at those coordinates plus the tile
// dimensions, which full-tile scans (unknown-bit reporting) need.
//
// Tile is the in-memory implementation used by tests, the CLI, and
// in-process fuzz harnesses. Code that extracts tile windows out of a
// real bitstream container provides its own View.
package cram
