package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/gitpulse/internal/core/domain"
)

func TestInstallationStore_SaveAndGet(t *testing.T) {
	store := NewInstallationStore()
	ctx := context.Background()

	inst := &domain.Installation{
		ID:           "inst-1",
		AccountLogin: "octo-org",
		SyncStatus:   domain.InstallationIdle,
		CreatedAt:    time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(ctx, inst))

	saved, err := store.Get(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, "octo-org", saved.AccountLogin)
}

func TestInstallationStore_Save_Update(t *testing.T) {
	store := NewInstallationStore()
	ctx := context.Background()

	inst := &domain.Installation{ID: "inst-1", SyncStatus: domain.InstallationIdle}
	require.NoError(t, store.Save(ctx, inst))

	inst.SyncStatus = domain.InstallationSyncing
	inst.RateLimitRemaining = 1234
	require.NoError(t, store.Save(ctx, inst))

	saved, err := store.Get(ctx, "inst-1")
	require.NoError(t, err)
	assert.Equal(t, domain.InstallationSyncing, saved.SyncStatus)
	assert.Equal(t, 1234, saved.RateLimitRemaining)
}

func TestInstallationStore_Get_NotFound(t *testing.T) {
	store := NewInstallationStore()

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInstallationStore_Get_ReturnsCopy(t *testing.T) {
	store := NewInstallationStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.Installation{ID: "inst-1"}))

	first, err := store.Get(ctx, "inst-1")
	require.NoError(t, err)
	first.Removed = true

	second, err := store.Get(ctx, "inst-1")
	require.NoError(t, err)
	assert.False(t, second.Removed, "mutating a returned value must not affect the store")
}

func TestInstallationStore_List(t *testing.T) {
	store := NewInstallationStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.Installation{ID: "inst-1"}))
	require.NoError(t, store.Save(ctx, &domain.Installation{ID: "inst-2"}))

	installations, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, installations, 2)
}
