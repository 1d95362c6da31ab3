package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/gitpulse/internal/core/domain"
	"github.com/custodia-labs/gitpulse/internal/core/ports/driven"
)

// Ensure JobStore implements the interface.
var _ driven.JobStore = (*JobStore)(nil)

// JobStore is an in-memory implementation of driven.JobStore.
// The exclusivity check and the insert happen under one mutex, which
// is this store's equivalent of the sqlite partial unique index.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]domain.IngestionJob
}

// NewJobStore creates a new in-memory job store.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]domain.IngestionJob),
	}
}

// CreateExclusive stores a new job, enforcing that at most one active
// job exists per (installation, repository) pair.
func (s *JobStore) CreateExclusive(_ context.Context, job *domain.IngestionJob) error {
	if job == nil || job.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.jobs {
		if existing.InstallationID == job.InstallationID &&
			existing.RepoFullName == job.RepoFullName &&
			existing.Status.Active() {
			return domain.ErrAlreadyExists
		}
	}
	if _, exists := s.jobs[job.ID]; exists {
		return domain.ErrAlreadyExists
	}

	s.jobs[job.ID] = *cloneJob(job)
	return nil
}

// Get retrieves a job by ID.
func (s *JobStore) Get(_ context.Context, jobID string) (*domain.IngestionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneJob(&job), nil
}

// Save updates an existing job.
func (s *JobStore) Save(_ context.Context, job *domain.IngestionJob) error {
	if job == nil || job.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *cloneJob(job)
	return nil
}

// ActiveForInstallation returns the active job for an installation,
// or nil and no error when none exists.
func (s *JobStore) ActiveForInstallation(_ context.Context, installationID string) (*domain.IngestionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, job := range s.jobs {
		if job.InstallationID == installationID && job.Status.Active() {
			return cloneJob(&job), nil
		}
	}
	return nil, nil
}

// ListByBatch returns all jobs belonging to a batch.
func (s *JobStore) ListByBatch(_ context.Context, batchID string) ([]domain.IngestionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var jobs []domain.IngestionJob
	for _, job := range s.jobs {
		if job.BatchID == batchID {
			jobs = append(jobs, *cloneJob(&job))
		}
	}
	return jobs, nil
}

// ListBlockedDue returns blocked jobs whose BlockedUntil has elapsed.
func (s *JobStore) ListBlockedDue(_ context.Context, now time.Time) ([]domain.IngestionJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var jobs []domain.IngestionJob
	for _, job := range s.jobs {
		if job.ResumeDue(now) {
			jobs = append(jobs, *cloneJob(&job))
		}
	}
	return jobs, nil
}

// cloneJob copies a job including its repo queue, so callers never
// share the stored slice.
func cloneJob(job *domain.IngestionJob) *domain.IngestionJob {
	clone := *job
	if job.ReposRemaining != nil {
		clone.ReposRemaining = append([]string(nil), job.ReposRemaining...)
	}
	return &clone
}
