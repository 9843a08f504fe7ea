// Package fuzzlog provides SQLite-backed durable storage for fuzzing
// activity.
//
// The bit database itself persists as text; this log answers the
// questions around it: which probes ran against which tile types, and
// which entries each probe contributed. A fuzz driver opens a probe at
// the start of a run, records every entry it feeds into the bit
// database, and the log's idempotent inserts make re-runs harmless.
//
// Database configuration follows the usual SQLite service setup:
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: discoveries must reference a probe
package fuzzlog
