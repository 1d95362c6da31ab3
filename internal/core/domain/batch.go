package domain

import "time"

// BatchStatus is the lifecycle state of a sync batch.
type BatchStatus string

// Batch statuses.
const (
	BatchRunning   BatchStatus = "running"
	BatchCompleted BatchStatus = "completed"
	BatchFailed    BatchStatus = "failed"
)

// SyncBatch is one sync invocation spanning a set of repositories.
//
// Invariant: CompletedRepos+FailedRepos <= TotalRepos, and the batch
// moves to BatchCompleted only when equality holds. Batch success does
// not require every repository to succeed; failed repositories are
// counted, not fatal.
type SyncBatch struct {
	// ID is the unique identifier for the batch.
	ID string

	// InstallationID links to the Installation being synced.
	InstallationID string

	// Trigger records what initiated the batch.
	Trigger SyncTrigger

	// Status is the batch lifecycle state.
	Status BatchStatus

	// TotalRepos is the number of repositories covered by the batch.
	TotalRepos int

	// CompletedRepos counts jobs that finished successfully.
	CompletedRepos int

	// FailedRepos counts jobs that failed permanently.
	FailedRepos int

	// EventsIngested is the total of new facts persisted by the batch.
	EventsIngested int

	// CreatedAt is when the batch was created.
	CreatedAt time.Time

	// CompletedAt is when the batch reached a terminal status.
	CompletedAt time.Time
}

// Settled reports whether every repository in the batch has reached a
// terminal job state.
func (b *SyncBatch) Settled() bool {
	return b.CompletedRepos+b.FailedRepos >= b.TotalRepos
}

// JobStatus is the lifecycle state of an ingestion job.
type JobStatus string

// Job statuses.
//
// Transitions: pending -> running -> completed; running <-> blocked;
// running -> failed. Completed and failed are terminal.
const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobBlocked   JobStatus = "blocked"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Active reports whether the status counts toward the one-active-job
// exclusivity rule for an (installation, repository) pair.
func (s JobStatus) Active() bool {
	return s == JobPending || s == JobRunning || s == JobBlocked
}

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// IngestionJob is the per-repository unit of ingestion work.
//
// Each job owns an independent pagination cursor so a crash or failure
// on one repository never blocks progress on the others. Jobs are
// created by the orchestrator at batch creation and mutated only by
// the orchestrator.
type IngestionJob struct {
	// ID is the unique identifier for the job.
	ID string

	// BatchID links to the owning SyncBatch.
	BatchID string

	// InstallationID links to the Installation.
	InstallationID string

	// RepoFullName is the repository this job ingests ("owner/repo").
	RepoFullName string

	// Since is the lower bound of the activity window.
	Since time.Time

	// Until is the upper bound of the activity window. Zero means open.
	Until time.Time

	// Cursor is the opaque pagination cursor persisted after every
	// page. An interrupted job resumes from here, never from page one.
	Cursor string

	// ReposRemaining is the queue of not-yet-started repositories
	// carried by the currently active job of the batch.
	ReposRemaining []string

	// Status is the job lifecycle state.
	Status JobStatus

	// Progress is the completion estimate in [0, 100].
	Progress float64

	// BlockedUntil is when a blocked job becomes eligible to resume.
	BlockedUntil time.Time

	// EventsIngested counts new facts persisted by this job.
	EventsIngested int

	// DuplicatesSkipped counts items deduplicated by content hash.
	DuplicatesSkipped int

	// ErrorMessage holds the failure reason for a failed job.
	ErrorMessage string

	// CreatedAt is when the job was created.
	CreatedAt time.Time

	// UpdatedAt is when the job was last persisted.
	UpdatedAt time.Time
}

// ResumeDue reports whether a blocked job is eligible to resume at now.
func (j *IngestionJob) ResumeDue(now time.Time) bool {
	return j.Status == JobBlocked && !now.Before(j.BlockedUntil)
}
