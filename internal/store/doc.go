// Package store provides SQLite-backed durable storage for checker
// verdicts.
//
// The store keeps three tables:
//   - types: content-addressed type descriptors (id = types.TypeID)
//   - runs: one row per checker run, identified by a UUIDv7
//   - verdicts: one row per checked property, ordered by (run_id, seq)
//
// Verdict sequence numbers come from a logical clock, never timestamps,
// so two runs over the same input record identical rows apart from the
// run ID. UUIDv7 run IDs sort by creation, which lets the relation cache
// pick the most recent verdict without a time column.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
