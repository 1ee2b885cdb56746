// Package store provides SQLite-backed persistence of remap state.
//
// Two tables:
//   - clips: the current committed time_map and flags of each remapped clip
//   - commits: an append-only log of every engine apply notification
//
// Ordering uses the logical commit seq, never timestamps. Queries that
// return lists order by seq ASC, id ASC COLLATE BINARY so history reads are
// identical across runs. Flags are stored as canonical JSON.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
