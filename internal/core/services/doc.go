// Package services implements the driving port interfaces.
// Services contain the core business logic: the sync decision policy,
// the ingestion job orchestrator, the read-only status projector, and
// the background sweeper. They orchestrate calls to driven ports
// (adapters) and own the per-installation rate limiters.
package services
