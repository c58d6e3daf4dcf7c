// Package store provides SQLite-backed durable storage for the recompute
// schedule and the activity run log.
//
// The store holds:
//   - Recompute schedule: the next instant each (focus, construction) pair
//     must be evaluated again
//   - Activity runs: the ExecutionResult of every engine recompute
//   - Projection results: per-projection outputs of a run, as canonical JSON
//
// # Ordering
//
// Runs are ordered by seq INTEGER (logical clock), never by wall time.
// Queries include a full ORDER BY so results are identical across reads.
// The schedule is the one place wall time matters: next_recompute is Unix
// nanoseconds in UTC.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
