package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/gitpulse/internal/core/domain"
)

// InstallationStore persists installations.
type InstallationStore interface {
	// Get retrieves an installation by ID.
	Get(ctx context.Context, installationID string) (*domain.Installation, error)

	// List returns all installations.
	List(ctx context.Context) ([]domain.Installation, error)

	// Save stores or updates an installation.
	Save(ctx context.Context, inst *domain.Installation) error
}

// BatchStore persists sync batches.
type BatchStore interface {
	// Create stores a new batch.
	Create(ctx context.Context, batch *domain.SyncBatch) error

	// Get retrieves a batch by ID.
	Get(ctx context.Context, batchID string) (*domain.SyncBatch, error)

	// Save updates an existing batch.
	Save(ctx context.Context, batch *domain.SyncBatch) error

	// ListByInstallation returns batches for an installation, newest first.
	ListByInstallation(ctx context.Context, installationID string) ([]domain.SyncBatch, error)
}

// JobStore persists ingestion jobs.
//
// The job records are the single source of truth for sync state across
// restarts and across concurrently running triggers.
type JobStore interface {
	// CreateExclusive stores a new job, enforcing atomically that at
	// most one active (pending/running/blocked) job exists per
	// (installation, repository) pair. Returns domain.ErrAlreadyExists
	// when another active job holds the pair. A read-then-write check
	// is not an acceptable implementation; the store must use a unique
	// constraint or compare-and-swap.
	CreateExclusive(ctx context.Context, job *domain.IngestionJob) error

	// Get retrieves a job by ID.
	Get(ctx context.Context, jobID string) (*domain.IngestionJob, error)

	// Save updates an existing job.
	Save(ctx context.Context, job *domain.IngestionJob) error

	// ActiveForInstallation returns the active job for an installation,
	// or nil and no error when none exists.
	ActiveForInstallation(ctx context.Context, installationID string) (*domain.IngestionJob, error)

	// ListByBatch returns all jobs belonging to a batch.
	ListByBatch(ctx context.Context, batchID string) ([]domain.IngestionJob, error)

	// ListBlockedDue returns blocked jobs whose BlockedUntil has
	// elapsed at now.
	ListBlockedDue(ctx context.Context, now time.Time) ([]domain.IngestionJob, error)
}

// InsertOutcome reports whether an event insert wrote a new fact.
type InsertOutcome int

// Insert outcomes.
const (
	// OutcomeInserted means a new fact was persisted.
	OutcomeInserted InsertOutcome = iota

	// OutcomeDuplicate means an identical fact already existed and
	// nothing was written.
	OutcomeDuplicate
)

// EventStore persists canonical events with at-most-once semantics.
type EventStore interface {
	// Insert persists the event unless a fact with the same content
	// hash already exists. Actor and repository records are resolved
	// or created as part of the insert. The duplicate check and the
	// write must be atomic.
	Insert(ctx context.Context, event *domain.CanonicalEvent) (InsertOutcome, error)

	// GetByContentHash retrieves an event by its content hash.
	// Returns domain.ErrNotFound when absent.
	GetByContentHash(ctx context.Context, hash string) (*domain.CanonicalEvent, error)

	// CountByRepo returns the number of stored events for a repository.
	CountByRepo(ctx context.Context, repoFullName string) (int, error)
}

// SchedulerStore persists sweeper task state.
type SchedulerStore interface {
	// GetTask retrieves a scheduled task by ID.
	// Returns nil and no error if the task does not exist.
	GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error)

	// ListTasks returns all scheduled tasks.
	ListTasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// SaveTask persists a task's state.
	SaveTask(ctx context.Context, task *domain.ScheduledTask) error

	// DeleteTask removes a task from storage.
	DeleteTask(ctx context.Context, taskID string) error

	// RecordResult logs a task execution result.
	RecordResult(ctx context.Context, result *domain.TaskResult) error
}
