package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/gitpulse/internal/core/domain"
	"github.com/custodia-labs/gitpulse/internal/core/ports/driven"
	"github.com/custodia-labs/gitpulse/internal/core/ports/driving"
)

// Ensure StatusProjector implements the interface.
var _ driving.StatusQuery = (*StatusProjector)(nil)

// StatusProjector derives read-only sync status view models.
//
// It treats the job records as the source of truth and the
// installation's cached sync status as a recomputable projection: a
// cache that claims "syncing" with no live job is stale and reported
// idle. The projector makes no mutations.
type StatusProjector struct {
	installations driven.InstallationStore
	jobs          driven.JobStore
	policyCfg     domain.PolicyConfig
	now           func() time.Time
}

// NewStatusProjector creates a status projector.
func NewStatusProjector(
	installations driven.InstallationStore,
	jobs driven.JobStore,
	policyCfg domain.PolicyConfig,
) *StatusProjector {
	return &StatusProjector{
		installations: installations,
		jobs:          jobs,
		policyCfg:     policyCfg,
		now:           time.Now,
	}
}

// Status returns the sync status for one installation.
func (p *StatusProjector) Status(ctx context.Context, installationID string) (*driving.SyncStatus, error) {
	inst, err := p.installations.Get(ctx, installationID)
	if err != nil {
		return nil, fmt.Errorf("get installation: %w", err)
	}
	return p.project(ctx, inst)
}

// StatusForUser returns the sync status of every installation.
func (p *StatusProjector) StatusForUser(ctx context.Context) ([]driving.SyncStatus, error) {
	installations, err := p.installations.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list installations: %w", err)
	}

	statuses := make([]driving.SyncStatus, 0, len(installations))
	for i := range installations {
		status, err := p.project(ctx, &installations[i])
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, *status)
	}
	return statuses, nil
}

// project builds the view model for one installation.
func (p *StatusProjector) project(ctx context.Context, inst *domain.Installation) (*driving.SyncStatus, error) {
	active, err := p.jobs.ActiveForInstallation(ctx, inst.ID)
	if err != nil {
		return nil, fmt.Errorf("get active job: %w", err)
	}

	status := &driving.SyncStatus{
		InstallationID:    inst.ID,
		State:             projectState(inst, active),
		ActiveJobProgress: -1,
		LastSyncedAt:      inst.LastSyncedAt,
	}

	if active != nil {
		status.ActiveJobProgress = active.Progress
		if active.Status == domain.JobBlocked {
			status.BlockedUntil = active.BlockedUntil
		}
	}

	if inst.LastSyncError != "" {
		status.LastSyncError = NormaliseErrorCategory(inst.LastSyncError)
	}

	decision := EvaluateSyncPolicy(PolicyInput{
		Installation: inst,
		ActiveJob:    active,
		Trigger:      domain.TriggerManual,
		Now:          p.now(),
		Config:       p.policyCfg,
	})
	status.CanSyncNow = decision.Action == domain.ActionStart
	if decision.Reason == domain.ReasonCooldownActive {
		status.CooldownMs = decision.CooldownRemaining.Milliseconds()
	}
	if decision.Action == domain.ActionBlock && status.BlockedUntil.IsZero() {
		status.BlockedUntil = decision.ResetAt
	}

	return status, nil
}

// projectState recomputes the effective state from the job records.
// The cached installation status is only consulted for the error case,
// where no live job exists to contradict it.
func projectState(inst *domain.Installation, active *domain.IngestionJob) driving.SyncState {
	if active != nil {
		if active.Status == domain.JobBlocked {
			return driving.StateBlocked
		}
		return driving.StateSyncing
	}
	// No live job: a cached "syncing" is stale and self-heals to idle.
	if inst.SyncStatus == domain.InstallationError {
		return driving.StateError
	}
	return driving.StateIdle
}

// NormaliseErrorCategory maps raw provider error text to one of the
// fixed user-safe categories. Raw text is never surfaced. Substring
// matching is acceptable here because this is display-only; control
// flow classifies with typed errors at the connector boundary.
func NormaliseErrorCategory(raw string) string {
	msg := strings.ToLower(raw)
	switch {
	case strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "too many requests"),
		strings.Contains(msg, "429"):
		return driving.ErrorCategoryRateLimit
	case strings.Contains(msg, "401"),
		strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "authentication"),
		strings.Contains(msg, "credential"),
		strings.Contains(msg, "token"):
		return driving.ErrorCategoryAuth
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "connection"),
		strings.Contains(msg, "network"),
		strings.Contains(msg, "dial"),
		strings.Contains(msg, "eof"):
		return driving.ErrorCategoryNetwork
	default:
		return driving.ErrorCategoryGeneric
	}
}
