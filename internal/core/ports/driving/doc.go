// Package driving defines the interfaces through which external actors
// drive the core.
//
// These are the "driving" or "primary" ports in hexagonal architecture.
// The CLI and other entry points depend on these interfaces, and core
// services implement them.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or service package
package driving
