// Package store provides the SQLite database behind the registry.
//
// Three tables are kept, all created if absent:
//   - _sync_run: one row per run (command, arguments, timing, exit status,
//     error/warning counts and the JSON error list)
//   - _sync_provider: one row per provider hash, with first/last seen times
//   - _sync_entity_type: one row per entity type class, with first/last seen times
//
// Entity content is never stored; only run, provider and entity type
// metadata survive between processes.
//
// # Upserts
//
// Provider and entity type registration insert the row or, on conflict with
// the unique hash/class column, touch last_seen. The stable id is read back
// in the same transaction.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Timestamps are stored as INTEGER unix milliseconds so both supported
// drivers (mattn "sqlite3" and modernc "sqlite") read them identically.
package store
