package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/gitpulse/internal/core/domain"
	"github.com/custodia-labs/gitpulse/internal/core/ports/driving"
)

// mockSyncService implements driving.SyncService for testing.
type mockSyncService struct {
	result *driving.SyncRequestResult
	err    error
}

func (m *mockSyncService) RequestManualSync(_ context.Context, _ string) (*driving.SyncRequestResult, error) {
	return m.result, m.err
}

func (m *mockSyncService) RequestSync(_ context.Context, _ string, _ domain.SyncTrigger) (*driving.SyncRequestResult, error) {
	return m.result, m.err
}

func (m *mockSyncService) ResumeDueJobs(_ context.Context) (int, error) {
	return 0, nil
}

func setupSyncTest(result *driving.SyncRequestResult, err error) func() {
	oldSync := syncService
	syncService = &mockSyncService{result: result, err: err}
	return func() {
		syncService = oldSync
	}
}

func TestSyncCmd_Use(t *testing.T) {
	assert.Equal(t, "sync <installation-id>", syncCmd.Use)
}

func TestSyncCmd_Short(t *testing.T) {
	assert.Equal(t, "Synchronise activity for an installation", syncCmd.Short)
}

func TestSyncCmd_Started(t *testing.T) {
	cleanup := setupSyncTest(&driving.SyncRequestResult{Started: true, BatchID: "batch-123"}, nil)
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"sync", "inst-1"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "Requesting sync for installation: inst-1")
	assert.Contains(t, buf.String(), "Sync started (batch batch-123).")
}

func TestSyncCmd_NotStartedIsNotAnError(t *testing.T) {
	cleanup := setupSyncTest(&driving.SyncRequestResult{Message: "sync already in progress"}, nil)
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetArgs([]string{"sync", "inst-1"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "Sync not started: sync already in progress")
}

func TestSyncCmd_ServiceError(t *testing.T) {
	cleanup := setupSyncTest(nil, errors.New("boom"))
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"sync", "inst-1"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sync failed")
}

func TestSyncCmd_ServiceNotConfigured(t *testing.T) {
	oldSync := syncService
	syncService = nil
	defer func() {
		syncService = oldSync
	}()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"sync", "inst-1"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sync service not configured")
}

func TestSyncCmd_RequiresInstallationID(t *testing.T) {
	cleanup := setupSyncTest(&driving.SyncRequestResult{Started: true}, nil)
	defer cleanup()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs([]string{"sync"})
	defer func() {
		rootCmd.SetArgs(nil)
	}()

	err := rootCmd.Execute()

	assert.Error(t, err)
}
