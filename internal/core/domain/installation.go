package domain

import "time"

// InstallationSyncStatus is the cached sync state recorded on an installation.
//
// It is a derived projection written by the orchestrator on job
// transitions. Readers must never treat it as authoritative: the
// job/batch records are the single source of truth, and the status
// projector recomputes the effective state from them on every read.
type InstallationSyncStatus string

// Installation sync statuses.
const (
	InstallationIdle    InstallationSyncStatus = "idle"
	InstallationSyncing InstallationSyncStatus = "syncing"
	InstallationError   InstallationSyncStatus = "error"
)

// SyncTrigger identifies what initiated a sync.
type SyncTrigger string

// Sync triggers.
const (
	TriggerManual      SyncTrigger = "manual"
	TriggerCron        SyncTrigger = "cron"
	TriggerWebhook     SyncTrigger = "webhook"
	TriggerMaintenance SyncTrigger = "maintenance"
	TriggerRecovery    SyncTrigger = "recovery"
)

// Installation is the authorization scope and identity under which
// ingestion runs against one external account or organization.
type Installation struct {
	// ID is the unique identifier for the installation.
	ID string

	// AccountLogin is the external account or organization login.
	AccountLogin string

	// SyncStatus is the cached sync state. Derived, never authoritative.
	SyncStatus InstallationSyncStatus

	// RateLimitRemaining is the last observed remaining request budget.
	RateLimitRemaining int

	// RateLimitReset is when the provider's budget resets.
	RateLimitReset time.Time

	// LastSyncedAt is when a sync last completed for this installation.
	LastSyncedAt time.Time

	// LastManualSyncAt is when a manual sync was last started.
	// Used to enforce the manual trigger cooldown.
	LastManualSyncAt time.Time

	// LastSyncError is the raw error text from the last failed sync.
	// Never surfaced to users directly; the projector normalises it.
	LastSyncError string

	// RecoveryAttempts counts webhook-driven recovery runs since the
	// last successful sync.
	RecoveryAttempts int

	// Removed marks an installation that was uninstalled. Running jobs
	// poll this between pages and stop rather than aborting in flight.
	Removed bool

	// CreatedAt is when the installation was recorded.
	CreatedAt time.Time

	// UpdatedAt is when the installation was last updated.
	UpdatedAt time.Time
}

// RateBudget is the provider's remaining request quota as reported on
// the last response.
type RateBudget struct {
	// Remaining is the number of requests left before the limit.
	Remaining int

	// Reset is when the quota replenishes.
	Reset time.Time
}
