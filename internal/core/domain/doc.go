// Package domain defines the core business entities for GitPulse.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Installation: The authorization scope ingestion runs under
//   - SyncBatch: One sync invocation spanning a set of repositories
//   - IngestionJob: The per-repository unit of ingestion work
//   - RawActivity: One provider activity item as fetched
//   - CanonicalEvent: The normalised, provider-agnostic fact
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
