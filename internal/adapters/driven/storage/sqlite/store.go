package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/gitpulse/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/gitpulse/internal/core/domain"
	"github.com/custodia-labs/gitpulse/internal/core/ports/driven"
)

// jsonNull is the JSON representation of null.
const jsonNull = "null"

// Store is a unified SQLite-based storage that provides access to
// all metadata store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.gitpulse/data/gitpulse.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".gitpulse", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "gitpulse.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// InstallationStore returns an InstallationStore interface backed by this store.
func (s *Store) InstallationStore() driven.InstallationStore {
	return &installationStore{store: s}
}

// BatchStore returns a BatchStore interface backed by this store.
func (s *Store) BatchStore() driven.BatchStore {
	return &batchStore{store: s}
}

// JobStore returns a JobStore interface backed by this store.
func (s *Store) JobStore() driven.JobStore {
	return &jobStore{store: s}
}

// EventStore returns an EventStore interface backed by this store.
func (s *Store) EventStore() driven.EventStore {
	return &eventStore{store: s}
}

// SchedulerStore returns a SchedulerStore interface backed by this store.
func (s *Store) SchedulerStore() driven.SchedulerStore {
	return &schedulerStore{store: s}
}

// TaskQueue returns a TaskQueue interface backed by this store.
func (s *Store) TaskQueue() driven.TaskQueue {
	return &taskQueue{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(
			"INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Installation Store ====================

// installationStore implements driven.InstallationStore.
type installationStore struct {
	store *Store
}

var _ driven.InstallationStore = (*installationStore)(nil)

// Get retrieves an installation by ID.
func (s *installationStore) Get(ctx context.Context, installationID string) (*domain.Installation, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, account_login, sync_status, rate_limit_remaining, rate_limit_reset,
			last_synced_at, last_manual_sync_at, last_sync_error, recovery_attempts,
			removed, created_at, updated_at
		FROM installations WHERE id = ?
	`, installationID)

	return scanInstallation(row)
}

// List returns all installations.
func (s *installationStore) List(ctx context.Context) ([]domain.Installation, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, account_login, sync_status, rate_limit_remaining, rate_limit_reset,
			last_synced_at, last_manual_sync_at, last_sync_error, recovery_attempts,
			removed, created_at, updated_at
		FROM installations
	`)
	if err != nil {
		return nil, fmt.Errorf("querying installations: %w", err)
	}
	defer rows.Close()

	var installations []domain.Installation //nolint:prealloc // size unknown from query
	for rows.Next() {
		inst, err := scanInstallationRows(rows)
		if err != nil {
			return nil, err
		}
		installations = append(installations, *inst)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating installations: %w", err)
	}

	return installations, nil
}

// Save stores or updates an installation.
func (s *installationStore) Save(ctx context.Context, inst *domain.Installation) error {
	if inst == nil || inst.ID == "" {
		return domain.ErrInvalidInput
	}

	now := time.Now().UTC()
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = now
	}
	inst.UpdatedAt = now

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO installations
			(id, account_login, sync_status, rate_limit_remaining, rate_limit_reset,
			last_synced_at, last_manual_sync_at, last_sync_error, recovery_attempts,
			removed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			account_login = excluded.account_login,
			sync_status = excluded.sync_status,
			rate_limit_remaining = excluded.rate_limit_remaining,
			rate_limit_reset = excluded.rate_limit_reset,
			last_synced_at = excluded.last_synced_at,
			last_manual_sync_at = excluded.last_manual_sync_at,
			last_sync_error = excluded.last_sync_error,
			recovery_attempts = excluded.recovery_attempts,
			removed = excluded.removed,
			updated_at = excluded.updated_at
	`, inst.ID, inst.AccountLogin, string(inst.SyncStatus), inst.RateLimitRemaining,
		formatNullableTime(inst.RateLimitReset), formatNullableTime(inst.LastSyncedAt),
		formatNullableTime(inst.LastManualSyncAt), nullString(inst.LastSyncError),
		inst.RecoveryAttempts, boolToInt(inst.Removed),
		inst.CreatedAt.Format(time.RFC3339), inst.UpdatedAt.Format(time.RFC3339))

	if err != nil {
		return fmt.Errorf("saving installation: %w", err)
	}
	return nil
}

// scanInstallation scans a single installation row.
func scanInstallation(row *sql.Row) (*domain.Installation, error) {
	var inst domain.Installation
	var syncStatus, createdAt, updatedAt string
	var rateLimitReset, lastSyncedAt, lastManualSyncAt, lastSyncError sql.NullString
	var removed int

	if err := row.Scan(&inst.ID, &inst.AccountLogin, &syncStatus, &inst.RateLimitRemaining,
		&rateLimitReset, &lastSyncedAt, &lastManualSyncAt, &lastSyncError,
		&inst.RecoveryAttempts, &removed, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning installation: %w", err)
	}

	inst.SyncStatus = domain.InstallationSyncStatus(syncStatus)
	inst.RateLimitReset = parseNullableTime(rateLimitReset)
	inst.LastSyncedAt = parseNullableTime(lastSyncedAt)
	inst.LastManualSyncAt = parseNullableTime(lastManualSyncAt)
	if lastSyncError.Valid {
		inst.LastSyncError = lastSyncError.String
	}
	inst.Removed = removed == 1
	inst.CreatedAt = parseTime(createdAt)
	inst.UpdatedAt = parseTime(updatedAt)

	return &inst, nil
}

// scanInstallationRows scans an installation from *sql.Rows.
func scanInstallationRows(rows *sql.Rows) (*domain.Installation, error) {
	var inst domain.Installation
	var syncStatus, createdAt, updatedAt string
	var rateLimitReset, lastSyncedAt, lastManualSyncAt, lastSyncError sql.NullString
	var removed int

	if err := rows.Scan(&inst.ID, &inst.AccountLogin, &syncStatus, &inst.RateLimitRemaining,
		&rateLimitReset, &lastSyncedAt, &lastManualSyncAt, &lastSyncError,
		&inst.RecoveryAttempts, &removed, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("scanning installation: %w", err)
	}

	inst.SyncStatus = domain.InstallationSyncStatus(syncStatus)
	inst.RateLimitReset = parseNullableTime(rateLimitReset)
	inst.LastSyncedAt = parseNullableTime(lastSyncedAt)
	inst.LastManualSyncAt = parseNullableTime(lastManualSyncAt)
	if lastSyncError.Valid {
		inst.LastSyncError = lastSyncError.String
	}
	inst.Removed = removed == 1
	inst.CreatedAt = parseTime(createdAt)
	inst.UpdatedAt = parseTime(updatedAt)

	return &inst, nil
}

// ==================== Batch Store ====================

// batchStore implements driven.BatchStore.
type batchStore struct {
	store *Store
}

var _ driven.BatchStore = (*batchStore)(nil)

// Create stores a new batch.
func (s *batchStore) Create(ctx context.Context, batch *domain.SyncBatch) error {
	if batch == nil || batch.ID == "" {
		return domain.ErrInvalidInput
	}

	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sync_batches
			(id, installation_id, sync_trigger, status, total_repos,
			completed_repos, failed_repos, events_ingested, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, batch.ID, batch.InstallationID, string(batch.Trigger), string(batch.Status),
		batch.TotalRepos, batch.CompletedRepos, batch.FailedRepos, batch.EventsIngested,
		batch.CreatedAt.Format(time.RFC3339), formatNullableTime(batch.CompletedAt))

	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("creating batch: %w", err)
	}
	return nil
}

// Get retrieves a batch by ID.
func (s *batchStore) Get(ctx context.Context, batchID string) (*domain.SyncBatch, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, installation_id, sync_trigger, status, total_repos,
			completed_repos, failed_repos, events_ingested, created_at, completed_at
		FROM sync_batches WHERE id = ?
	`, batchID)

	var batch domain.SyncBatch
	var trigger, status, createdAt string
	var completedAt sql.NullString
	if err := row.Scan(&batch.ID, &batch.InstallationID, &trigger, &status,
		&batch.TotalRepos, &batch.CompletedRepos, &batch.FailedRepos,
		&batch.EventsIngested, &createdAt, &completedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning batch: %w", err)
	}

	batch.Trigger = domain.SyncTrigger(trigger)
	batch.Status = domain.BatchStatus(status)
	batch.CreatedAt = parseTime(createdAt)
	batch.CompletedAt = parseNullableTime(completedAt)

	return &batch, nil
}

// Save updates an existing batch.
func (s *batchStore) Save(ctx context.Context, batch *domain.SyncBatch) error {
	if batch == nil || batch.ID == "" {
		return domain.ErrInvalidInput
	}

	res, err := s.store.db.ExecContext(ctx, `
		UPDATE sync_batches SET
			status = ?,
			total_repos = ?,
			completed_repos = ?,
			failed_repos = ?,
			events_ingested = ?,
			completed_at = ?
		WHERE id = ?
	`, string(batch.Status), batch.TotalRepos, batch.CompletedRepos,
		batch.FailedRepos, batch.EventsIngested,
		formatNullableTime(batch.CompletedAt), batch.ID)

	if err != nil {
		return fmt.Errorf("saving batch: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking batch update: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByInstallation returns batches for an installation, newest first.
func (s *batchStore) ListByInstallation(ctx context.Context, installationID string) ([]domain.SyncBatch, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, installation_id, sync_trigger, status, total_repos,
			completed_repos, failed_repos, events_ingested, created_at, completed_at
		FROM sync_batches WHERE installation_id = ?
		ORDER BY created_at DESC
	`, installationID)
	if err != nil {
		return nil, fmt.Errorf("querying batches: %w", err)
	}
	defer rows.Close()

	var batches []domain.SyncBatch //nolint:prealloc // size unknown from query
	for rows.Next() {
		var batch domain.SyncBatch
		var trigger, status, createdAt string
		var completedAt sql.NullString
		if err := rows.Scan(&batch.ID, &batch.InstallationID, &trigger, &status,
			&batch.TotalRepos, &batch.CompletedRepos, &batch.FailedRepos,
			&batch.EventsIngested, &createdAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scanning batch: %w", err)
		}

		batch.Trigger = domain.SyncTrigger(trigger)
		batch.Status = domain.BatchStatus(status)
		batch.CreatedAt = parseTime(createdAt)
		batch.CompletedAt = parseNullableTime(completedAt)
		batches = append(batches, batch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating batches: %w", err)
	}

	return batches, nil
}

// ==================== Helper Functions ====================

// isUniqueViolation reports whether the error is a SQLite unique
// constraint failure. The modernc driver surfaces constraint errors
// as plain errors, so the message text is the stable signal.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// parseTime parses an RFC3339 string, returning the zero time on error.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
