// Package sqlite provides the durable SQLite-backed storage for
// GitPulse: installations, batches, jobs, canonical events, scheduler
// tasks, and the deferred embedding queue.
//
// One Store owns the database handle; the individual driven store
// interfaces are exposed through lightweight wrapper types. Migrations
// are embedded and applied on open.
//
// Two invariants live in the schema rather than in application code,
// because read-then-write checks have race windows when manual and
// scheduled triggers fire close together:
//
//   - at most one active job per (installation, repository) pair,
//     enforced by a partial unique index over non-terminal statuses
//   - at most one canonical event per content hash, enforced by a
//     unique index and insert-or-ignore
package sqlite
