// Package store provides the SQLite-backed run ledger.
//
// Every weave run is recorded as a row in runs, and every input it
// processed as a row in entries. Entries keep the serialized output and a
// fingerprint of (input bytes, configuration), so a later run can reuse the
// output of an input it has already woven under the same settings.
//
// # Ordering
//
// Entries are numbered by seq within a run, in input order. Queries order by
// seq, never by timestamp, so listings are identical across machines.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
