package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/gitpulse/internal/core/domain"
	"github.com/custodia-labs/gitpulse/internal/core/ports/driven"
)

// jobStore implements driven.JobStore.
type jobStore struct {
	store *Store
}

var _ driven.JobStore = (*jobStore)(nil)

// jobColumns is the column list shared by every job query.
const jobColumns = `id, batch_id, installation_id, repo_full_name, since_at, until_at,
	cursor, repos_remaining, status, progress, blocked_until,
	events_ingested, duplicates_skipped, error_message, created_at, updated_at`

// CreateExclusive stores a new job. The partial unique index on
// (installation_id, repo_full_name) over non-terminal statuses makes
// the insert itself the exclusivity check, so two concurrent triggers
// can both reach this point and exactly one wins.
func (s *jobStore) CreateExclusive(ctx context.Context, job *domain.IngestionJob) error {
	if job == nil || job.ID == "" || job.InstallationID == "" || job.RepoFullName == "" {
		return domain.ErrInvalidInput
	}

	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	remainingJSON, err := json.Marshal(job.ReposRemaining)
	if err != nil {
		return fmt.Errorf("marshalling repos remaining: %w", err)
	}

	_, err = s.store.db.ExecContext(ctx, `
		INSERT INTO ingestion_jobs
			(id, batch_id, installation_id, repo_full_name, since_at, until_at,
			cursor, repos_remaining, status, progress, blocked_until,
			events_ingested, duplicates_skipped, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, job.ID, job.BatchID, job.InstallationID, job.RepoFullName,
		formatNullableTime(job.Since), formatNullableTime(job.Until),
		nullString(job.Cursor), string(remainingJSON), string(job.Status),
		job.Progress, formatNullableTime(job.BlockedUntil),
		job.EventsIngested, job.DuplicatesSkipped, nullString(job.ErrorMessage),
		job.CreatedAt.Format(time.RFC3339), job.UpdatedAt.Format(time.RFC3339))

	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("creating job: %w", err)
	}
	return nil
}

// Get retrieves a job by ID.
func (s *jobStore) Get(ctx context.Context, jobID string) (*domain.IngestionJob, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+jobColumns+" FROM ingestion_jobs WHERE id = ?", jobID)

	return scanJob(row)
}

// Save updates an existing job.
func (s *jobStore) Save(ctx context.Context, job *domain.IngestionJob) error {
	if job == nil || job.ID == "" {
		return domain.ErrInvalidInput
	}

	job.UpdatedAt = time.Now().UTC()

	remainingJSON, err := json.Marshal(job.ReposRemaining)
	if err != nil {
		return fmt.Errorf("marshalling repos remaining: %w", err)
	}

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE ingestion_jobs SET
			cursor = ?,
			repos_remaining = ?,
			status = ?,
			progress = ?,
			blocked_until = ?,
			events_ingested = ?,
			duplicates_skipped = ?,
			error_message = ?,
			updated_at = ?
		WHERE id = ?
	`, nullString(job.Cursor), string(remainingJSON), string(job.Status),
		job.Progress, formatNullableTime(job.BlockedUntil),
		job.EventsIngested, job.DuplicatesSkipped, nullString(job.ErrorMessage),
		job.UpdatedAt.Format(time.RFC3339), job.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("saving job: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking job update: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ActiveForInstallation returns the active job for an installation,
// or nil and no error when none exists.
func (s *jobStore) ActiveForInstallation(ctx context.Context, installationID string) (*domain.IngestionJob, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+jobColumns+` FROM ingestion_jobs
		WHERE installation_id = ? AND status IN ('pending', 'running', 'blocked')
		ORDER BY created_at DESC LIMIT 1`, installationID)

	job, err := scanJob(row)
	if err == domain.ErrNotFound {
		return nil, nil
	}
	return job, err
}

// ListByBatch returns all jobs belonging to a batch.
func (s *jobStore) ListByBatch(ctx context.Context, batchID string) ([]domain.IngestionJob, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+jobColumns+" FROM ingestion_jobs WHERE batch_id = ? ORDER BY created_at", batchID)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

// ListBlockedDue returns blocked jobs whose BlockedUntil has elapsed at now.
func (s *jobStore) ListBlockedDue(ctx context.Context, now time.Time) ([]domain.IngestionJob, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+jobColumns+` FROM ingestion_jobs
		WHERE status = 'blocked' AND blocked_until IS NOT NULL AND blocked_until <= ?`,
		now.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("querying blocked jobs: %w", err)
	}
	defer rows.Close()

	return scanJobs(rows)
}

// scanJob scans a single job row.
func scanJob(row *sql.Row) (*domain.IngestionJob, error) {
	var job domain.IngestionJob
	var status, createdAt, updatedAt string
	var sinceAt, untilAt, cursor, remainingJSON, blockedUntil, errorMessage sql.NullString

	if err := row.Scan(&job.ID, &job.BatchID, &job.InstallationID, &job.RepoFullName,
		&sinceAt, &untilAt, &cursor, &remainingJSON, &status, &job.Progress,
		&blockedUntil, &job.EventsIngested, &job.DuplicatesSkipped,
		&errorMessage, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning job: %w", err)
	}

	if err := fillJob(&job, status, createdAt, updatedAt,
		sinceAt, untilAt, cursor, remainingJSON, blockedUntil, errorMessage); err != nil {
		return nil, err
	}
	return &job, nil
}

// scanJobs scans multiple job rows.
func scanJobs(rows *sql.Rows) ([]domain.IngestionJob, error) {
	var jobs []domain.IngestionJob //nolint:prealloc // size unknown from query
	for rows.Next() {
		var job domain.IngestionJob
		var status, createdAt, updatedAt string
		var sinceAt, untilAt, cursor, remainingJSON, blockedUntil, errorMessage sql.NullString

		if err := rows.Scan(&job.ID, &job.BatchID, &job.InstallationID, &job.RepoFullName,
			&sinceAt, &untilAt, &cursor, &remainingJSON, &status, &job.Progress,
			&blockedUntil, &job.EventsIngested, &job.DuplicatesSkipped,
			&errorMessage, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}

		if err := fillJob(&job, status, createdAt, updatedAt,
			sinceAt, untilAt, cursor, remainingJSON, blockedUntil, errorMessage); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating jobs: %w", err)
	}

	return jobs, nil
}

// fillJob populates the nullable and typed fields after a scan.
func fillJob(job *domain.IngestionJob, status, createdAt, updatedAt string,
	sinceAt, untilAt, cursor, remainingJSON, blockedUntil, errorMessage sql.NullString,
) error {
	job.Status = domain.JobStatus(status)
	job.Since = parseNullableTime(sinceAt)
	job.Until = parseNullableTime(untilAt)
	if cursor.Valid {
		job.Cursor = cursor.String
	}
	if remainingJSON.Valid && remainingJSON.String != "" && remainingJSON.String != jsonNull {
		if err := json.Unmarshal([]byte(remainingJSON.String), &job.ReposRemaining); err != nil {
			return fmt.Errorf("unmarshalling repos remaining: %w", err)
		}
	}
	job.BlockedUntil = parseNullableTime(blockedUntil)
	if errorMessage.Valid {
		job.ErrorMessage = errorMessage.String
	}
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)
	return nil
}
