package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/gitpulse/internal/core/domain"
)

func TestBatchStore_CreateAndGet(t *testing.T) {
	store := NewBatchStore()
	ctx := context.Background()

	batch := &domain.SyncBatch{
		ID:             "batch-1",
		InstallationID: "inst-1",
		Trigger:        domain.TriggerManual,
		Status:         domain.BatchRunning,
		TotalRepos:     3,
	}
	require.NoError(t, store.Create(ctx, batch))

	saved, err := store.Get(ctx, "batch-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TriggerManual, saved.Trigger)
	assert.Equal(t, 3, saved.TotalRepos)
}

func TestBatchStore_Create_DuplicateID(t *testing.T) {
	store := NewBatchStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &domain.SyncBatch{ID: "batch-1"}))
	assert.ErrorIs(t, store.Create(ctx, &domain.SyncBatch{ID: "batch-1"}), domain.ErrAlreadyExists)
}

func TestBatchStore_Get_NotFound(t *testing.T) {
	store := NewBatchStore()

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBatchStore_Save_Update(t *testing.T) {
	store := NewBatchStore()
	ctx := context.Background()

	batch := &domain.SyncBatch{ID: "batch-1", Status: domain.BatchRunning}
	require.NoError(t, store.Create(ctx, batch))

	batch.Status = domain.BatchCompleted
	batch.CompletedRepos = 2
	require.NoError(t, store.Save(ctx, batch))

	saved, err := store.Get(ctx, "batch-1")
	require.NoError(t, err)
	assert.Equal(t, domain.BatchCompleted, saved.Status)
	assert.Equal(t, 2, saved.CompletedRepos)
}

func TestBatchStore_ListByInstallation_NewestFirst(t *testing.T) {
	store := NewBatchStore()
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Create(ctx, &domain.SyncBatch{
		ID: "batch-old", InstallationID: "inst-1", CreatedAt: base,
	}))
	require.NoError(t, store.Create(ctx, &domain.SyncBatch{
		ID: "batch-new", InstallationID: "inst-1", CreatedAt: base.Add(time.Hour),
	}))
	require.NoError(t, store.Create(ctx, &domain.SyncBatch{
		ID: "batch-other", InstallationID: "inst-2", CreatedAt: base,
	}))

	batches, err := store.ListByInstallation(ctx, "inst-1")
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, "batch-new", batches[0].ID)
	assert.Equal(t, "batch-old", batches[1].ID)
}
