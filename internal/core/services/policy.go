package services

import (
	"time"

	"github.com/custodia-labs/gitpulse/internal/core/domain"
)

// PolicyInput is everything the sync policy looks at. The evaluation
// is a pure function of this struct: no clocks, no stores, no side
// effects, so it is trivially unit-testable.
type PolicyInput struct {
	// Installation is a snapshot of the installation's state.
	Installation *domain.Installation

	// ActiveJob is the installation's active job, nil when none. This
	// comes from the job store, never from the installation's cached
	// sync status.
	ActiveJob *domain.IngestionJob

	// Trigger is what initiated the request.
	Trigger domain.SyncTrigger

	// Now is the evaluation time.
	Now time.Time

	// Config holds the tunable thresholds.
	Config domain.PolicyConfig
}

// EvaluateSyncPolicy decides whether a sync may start.
//
// Rules, in order:
//  1. An active (non-terminal) job means skip: one sync at a time per
//     installation.
//  2. A manual trigger inside the cooldown window means skip, with the
//     remaining cooldown reported.
//  3. A remaining budget below the floor with a reset still in the
//     future means block until that reset.
//  4. Otherwise start.
func EvaluateSyncPolicy(in PolicyInput) domain.SyncDecision {
	if in.ActiveJob != nil && in.ActiveJob.Status.Active() {
		return domain.SyncDecision{
			Action: domain.ActionSkip,
			Reason: domain.ReasonAlreadySyncing,
		}
	}

	if in.Trigger == domain.TriggerManual && in.Installation != nil && !in.Installation.LastManualSyncAt.IsZero() {
		elapsed := in.Now.Sub(in.Installation.LastManualSyncAt)
		if elapsed < in.Config.ManualCooldown {
			return domain.SyncDecision{
				Action:            domain.ActionSkip,
				Reason:            domain.ReasonCooldownActive,
				CooldownRemaining: in.Config.ManualCooldown - elapsed,
			}
		}
	}

	if in.Installation != nil &&
		in.Installation.RateLimitRemaining < in.Config.MinBudget &&
		in.Installation.RateLimitReset.After(in.Now) {
		return domain.SyncDecision{
			Action:  domain.ActionBlock,
			Reason:  domain.ReasonBudgetLow,
			ResetAt: in.Installation.RateLimitReset,
		}
	}

	return domain.SyncDecision{
		Action: domain.ActionStart,
		Reason: domain.ReasonOK,
	}
}
