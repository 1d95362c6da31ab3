package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/gitpulse/internal/core/domain"
)

// SyncService coordinates activity ingestion for installations.
type SyncService interface {
	// RequestManualSync asks for an immediate sync. Idempotent: when
	// the policy answers skip or block, Started is false and Message
	// explains why, with no error.
	RequestManualSync(ctx context.Context, installationID string) (*SyncRequestResult, error)

	// RequestSync asks for a sync with an explicit trigger. The sweeper
	// uses this for cron and recovery runs.
	RequestSync(ctx context.Context, installationID string, trigger domain.SyncTrigger) (*SyncRequestResult, error)

	// ResumeDueJobs resumes blocked jobs whose pause has elapsed.
	// Returns the number of jobs resumed.
	ResumeDueJobs(ctx context.Context) (int, error)
}

// SyncRequestResult is the outcome of a manual sync request.
type SyncRequestResult struct {
	// Started reports whether a new batch began.
	Started bool

	// Message is a user-safe explanation when Started is false.
	Message string

	// BatchID identifies the created batch when Started is true.
	BatchID string
}

// StatusQuery exposes read-only sync status projections.
type StatusQuery interface {
	// Status returns the sync status for one installation.
	Status(ctx context.Context, installationID string) (*SyncStatus, error)

	// StatusForUser returns the sync status of every installation.
	StatusForUser(ctx context.Context) ([]SyncStatus, error)
}

// SyncState is the projected state of an installation's sync.
type SyncState string

// Sync states.
const (
	StateIdle    SyncState = "idle"
	StateSyncing SyncState = "syncing"
	StateBlocked SyncState = "blocked"
	StateError   SyncState = "error"
)

// Error categories surfaced to users. Raw provider error text is never
// exposed directly.
const (
	ErrorCategoryRateLimit = "rate_limit"
	ErrorCategoryAuth      = "auth"
	ErrorCategoryNetwork   = "network"
	ErrorCategoryGeneric   = "generic"
)

// SyncStatus is the read-only view model for one installation.
type SyncStatus struct {
	// InstallationID identifies the installation.
	InstallationID string

	// State is the projected sync state.
	State SyncState

	// CanSyncNow reports whether a manual sync would start right now.
	CanSyncNow bool

	// CooldownMs is the remaining manual-sync cooldown in
	// milliseconds. Zero when no cooldown applies.
	CooldownMs int64

	// BlockedUntil is when a blocked job resumes. Zero when not blocked.
	BlockedUntil time.Time

	// ActiveJobProgress is the running job's progress in [0, 100].
	// Negative when no job is active.
	ActiveJobProgress float64

	// LastSyncedAt is when a sync last completed.
	LastSyncedAt time.Time

	// LastSyncError is the normalised error category for the last
	// failure ("rate_limit", "auth", "network", "generic"). Empty when
	// the last sync succeeded.
	LastSyncError string
}
