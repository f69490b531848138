// Package store provides SQLite-backed persistence for record snapshots.
//
// A snapshot is the raw, insertion-ordered record sequence of a collection,
// exactly what engine.Collection.Serialize returns. No view state (sort,
// filter, window) is ever stored; views are re-derived after loading.
//
// # Tables
//
//   - snapshots: one row per saved snapshot (id, name, seq, key field, hash)
//   - snapshot_records: one row per record, canonical JSON, ordered by position
//
// # Ordering and Integrity
//
//   - Snapshots order by seq INTEGER (assigned on save), never by wall time
//   - Records are stored as RFC 8785 canonical JSON
//   - Every snapshot carries ir.RecordsHash of its records; loads verify it
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Cascade record deletion with their snapshot
package store
