// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - InstallationStore: Installation persistence
//   - BatchStore: Sync batch persistence
//   - JobStore: Ingestion job persistence (with atomic exclusivity)
//   - EventStore: Canonical event persistence and hash lookup
//   - TimelineClient: Paginated provider activity fetch
//   - TimelineClientFactory: Creates clients scoped to an installation
//   - SchedulerStore: Sweeper task state persistence
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - TaskQueue: Deferred downstream work (embedding generation).
//     Without it, new facts are persisted but nothing is enqueued.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven
