package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/gitpulse/internal/core/domain"
	"github.com/custodia-labs/gitpulse/internal/core/ports/driven"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "gitpulse-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

func sqliteTestJob(id, repo string, status domain.JobStatus) *domain.IngestionJob {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &domain.IngestionJob{
		ID:             id,
		BatchID:        "batch-1",
		InstallationID: "inst-1",
		RepoFullName:   repo,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ==================== Store Creation and Initialisation Tests ====================

func TestNewStore_Success(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "gitpulse-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)
	defer store.Close()

	dbPath := filepath.Join(tempDir, "gitpulse.db")
	assert.Equal(t, dbPath, store.Path())
	assert.FileExists(t, dbPath)

	err = store.db.Ping()
	assert.NoError(t, err)
}

func TestNewStore_Migrations(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	var count int
	err := store.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	require.NoError(t, err)
	assert.Greater(t, count, 0, "should have at least one migration")

	tables := []string{
		"installations",
		"sync_batches",
		"ingestion_jobs",
		"actors",
		"repositories",
		"canonical_events",
		"scheduled_tasks",
		"task_results",
		"embedding_tasks",
	}

	for _, table := range tables {
		var tableExists int
		err := store.db.QueryRow(
			"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&tableExists)
		require.NoError(t, err)
		assert.Equal(t, 1, tableExists, "table %s should exist", table)
	}
}

func TestNewStore_MigrationsAreIdempotent(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "gitpulse-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening the same database must not re-run applied migrations.
	store, err = NewStore(tempDir)
	require.NoError(t, err)
	defer store.Close()
}

func TestNewStore_ForeignKeysEnabled(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	var fkEnabled int
	err := store.db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled)
	require.NoError(t, err)
	assert.Equal(t, 1, fkEnabled, "foreign keys should be enabled")
}

// ==================== Installation Store Tests ====================

func TestInstallationStore_SaveGetRoundtrip(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	installations := store.InstallationStore()
	inst := &domain.Installation{
		ID:                 "inst-1",
		AccountLogin:       "octo-org",
		SyncStatus:         domain.InstallationIdle,
		RateLimitRemaining: 4321,
		RateLimitReset:     time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC),
		LastSyncedAt:       time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
		CreatedAt:          time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		UpdatedAt:          time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, installations.Save(ctx, inst))

	saved, err := installations.Get(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, "octo-org", saved.AccountLogin)
	assert.Equal(t, 4321, saved.RateLimitRemaining)
	assert.Equal(t, inst.RateLimitReset, saved.RateLimitReset)
	assert.Equal(t, inst.LastSyncedAt, saved.LastSyncedAt)
	assert.False(t, saved.Removed)

	// Upsert on the same ID.
	inst.Removed = true
	inst.SyncStatus = domain.InstallationError
	require.NoError(t, installations.Save(ctx, inst))

	saved, err = installations.Get(ctx, "inst-1")
	require.NoError(t, err)
	assert.True(t, saved.Removed)
	assert.Equal(t, domain.InstallationError, saved.SyncStatus)
}

func TestInstallationStore_Get_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.InstallationStore().Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ==================== Job Store Tests ====================

func TestJobStore_CreateExclusive_IndexEnforcesOneActivePerRepo(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	jobs := store.JobStore()
	require.NoError(t, jobs.CreateExclusive(ctx, sqliteTestJob("job-1", "octo-org/widgets", domain.JobRunning)))

	// A second active job for the same pair hits the partial unique index.
	err := jobs.CreateExclusive(ctx, sqliteTestJob("job-2", "octo-org/widgets", domain.JobBlocked))
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	// A different repository is fine.
	require.NoError(t, jobs.CreateExclusive(ctx, sqliteTestJob("job-3", "octo-org/gadgets", domain.JobRunning)))

	// Once the first job is terminal the pair is free again.
	done := sqliteTestJob("job-1", "octo-org/widgets", domain.JobCompleted)
	require.NoError(t, jobs.Save(ctx, done))
	require.NoError(t, jobs.CreateExclusive(ctx, sqliteTestJob("job-4", "octo-org/widgets", domain.JobRunning)))
}

func TestJobStore_SaveRoundtripWithCursorAndQueue(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	jobs := store.JobStore()
	job := sqliteTestJob("job-1", "octo-org/widgets", domain.JobRunning)
	job.ReposRemaining = []string{"octo-org/a", "octo-org/b"}
	require.NoError(t, jobs.CreateExclusive(ctx, job))

	job.Cursor = "eyJ2IjoxLCJwYWdlIjozfQ=="
	job.Progress = 30
	job.EventsIngested = 42
	job.DuplicatesSkipped = 7
	job.ReposRemaining = []string{"octo-org/b"}
	require.NoError(t, jobs.Save(ctx, job))

	saved, err := jobs.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, job.Cursor, saved.Cursor)
	assert.InDelta(t, 30.0, saved.Progress, 0.0001)
	assert.Equal(t, 42, saved.EventsIngested)
	assert.Equal(t, 7, saved.DuplicatesSkipped)
	assert.Equal(t, []string{"octo-org/b"}, saved.ReposRemaining)
}

func TestJobStore_Save_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.JobStore().Save(context.Background(), sqliteTestJob("missing", "octo-org/widgets", domain.JobRunning))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJobStore_ActiveForInstallation(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	jobs := store.JobStore()

	active, err := jobs.ActiveForInstallation(ctx, "inst-1")
	require.NoError(t, err)
	assert.Nil(t, active)

	require.NoError(t, jobs.CreateExclusive(ctx, sqliteTestJob("job-1", "octo-org/widgets", domain.JobBlocked)))

	active, err = jobs.ActiveForInstallation(ctx, "inst-1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "job-1", active.ID)
}

func TestJobStore_ListBlockedDue(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	jobs := store.JobStore()

	due := sqliteTestJob("job-due", "octo-org/alpha", domain.JobBlocked)
	due.BlockedUntil = now.Add(-time.Minute)
	require.NoError(t, jobs.CreateExclusive(ctx, due))

	notYet := sqliteTestJob("job-later", "octo-org/beta", domain.JobBlocked)
	notYet.BlockedUntil = now.Add(time.Hour)
	require.NoError(t, jobs.CreateExclusive(ctx, notYet))

	list, err := jobs.ListBlockedDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "job-due", list[0].ID)
}

// ==================== Batch Store Tests ====================

func TestBatchStore_Roundtrip(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	batches := store.BatchStore()
	batch := &domain.SyncBatch{
		ID:             "batch-1",
		InstallationID: "inst-1",
		Trigger:        domain.TriggerManual,
		Status:         domain.BatchRunning,
		TotalRepos:     3,
		CreatedAt:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, batches.Create(ctx, batch))
	assert.ErrorIs(t, batches.Create(ctx, batch), domain.ErrAlreadyExists)

	batch.Status = domain.BatchCompleted
	batch.CompletedRepos = 2
	batch.FailedRepos = 1
	batch.EventsIngested = 17
	batch.CompletedAt = time.Date(2025, 6, 1, 12, 10, 0, 0, time.UTC)
	require.NoError(t, batches.Save(ctx, batch))

	saved, err := batches.Get(ctx, "batch-1")
	require.NoError(t, err)
	assert.Equal(t, domain.BatchCompleted, saved.Status)
	assert.Equal(t, 2, saved.CompletedRepos)
	assert.Equal(t, 17, saved.EventsIngested)
	assert.Equal(t, batch.CompletedAt, saved.CompletedAt)
}

func TestBatchStore_ListByInstallation_NewestFirst(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	batches := store.BatchStore()
	require.NoError(t, batches.Create(ctx, &domain.SyncBatch{
		ID: "batch-old", InstallationID: "inst-1", Status: domain.BatchCompleted, CreatedAt: base,
	}))
	require.NoError(t, batches.Create(ctx, &domain.SyncBatch{
		ID: "batch-new", InstallationID: "inst-1", Status: domain.BatchRunning, CreatedAt: base.Add(time.Hour),
	}))

	list, err := batches.ListByInstallation(ctx, "inst-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "batch-new", list[0].ID)
}

// ==================== Event Store Tests ====================

func TestEventStore_Insert_DedupByContentHash(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	events := store.EventStore()
	event := &domain.CanonicalEvent{
		ContentHash:   "hash-1",
		CanonicalText: "octocat pushed 1 commit to main in octo-org/widgets",
		SourceURL:     "https://github.com/octo-org/widgets/commit/abc",
		Actor:         domain.EventActor{GHID: 42, GHLogin: "octocat"},
		Repo:          domain.EventRepo{FullName: "octo-org/widgets", Owner: "octo-org"},
		Timestamp:     time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}

	outcome, err := events.Insert(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, driven.OutcomeInserted, outcome)

	// The same fact again is recognized by the unique index, not re-read.
	outcome, err = events.Insert(ctx, event)
	require.NoError(t, err)
	assert.Equal(t, driven.OutcomeDuplicate, outcome)

	saved, err := events.GetByContentHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, event.CanonicalText, saved.CanonicalText)
	assert.Equal(t, "octocat", saved.Actor.GHLogin)
	assert.Equal(t, "octo-org", saved.Repo.Owner)

	count, err := events.CountByRepo(ctx, "octo-org/widgets")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestEventStore_Insert_UpdatesActorLogin(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	events := store.EventStore()
	first := &domain.CanonicalEvent{
		ContentHash:   "hash-1",
		CanonicalText: "octocat opened pull request #1 in octo-org/widgets",
		Actor:         domain.EventActor{GHID: 42, GHLogin: "octocat"},
		Repo:          domain.EventRepo{FullName: "octo-org/widgets", Owner: "octo-org"},
		Timestamp:     time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	_, err := events.Insert(ctx, first)
	require.NoError(t, err)

	// The provider login changed; the actor record follows the GHID.
	second := &domain.CanonicalEvent{
		ContentHash:   "hash-2",
		CanonicalText: "renamed-cat opened pull request #2 in octo-org/widgets",
		Actor:         domain.EventActor{GHID: 42, GHLogin: "renamed-cat"},
		Repo:          domain.EventRepo{FullName: "octo-org/widgets", Owner: "octo-org"},
		Timestamp:     time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
	}
	_, err = events.Insert(ctx, second)
	require.NoError(t, err)

	saved, err := events.GetByContentHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, "renamed-cat", saved.Actor.GHLogin)
}

// ==================== Task Queue Tests ====================

func TestTaskQueue_EnqueueEmbedding_Idempotent(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	queue := store.TaskQueue()
	require.NoError(t, queue.EnqueueEmbedding(ctx, "hash-1"))
	require.NoError(t, queue.EnqueueEmbedding(ctx, "hash-1"))

	var count int
	err := store.db.QueryRow("SELECT COUNT(*) FROM embedding_tasks").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
