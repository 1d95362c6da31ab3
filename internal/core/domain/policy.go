package domain

import "time"

// SyncAction is the decision a policy evaluation produces.
type SyncAction string

// Sync actions.
const (
	// ActionStart allows the sync to begin now.
	ActionStart SyncAction = "start"

	// ActionSkip declines the sync; trying again later may succeed.
	ActionSkip SyncAction = "skip"

	// ActionBlock defers the sync until the provider budget resets.
	ActionBlock SyncAction = "block"
)

// Policy decision reasons.
const (
	ReasonOK             = "ok"
	ReasonAlreadySyncing = "already_syncing"
	ReasonCooldownActive = "cooldown_active"
	ReasonBudgetLow      = "budget_low"
)

// SyncDecision is the outcome of evaluating the sync policy for one
// installation and trigger.
type SyncDecision struct {
	// Action is what the caller should do.
	Action SyncAction

	// Reason is a stable machine-readable explanation.
	Reason string

	// CooldownRemaining is how long until a manual sync is allowed
	// again. Set only for Reason == ReasonCooldownActive.
	CooldownRemaining time.Duration

	// ResetAt is when the provider budget replenishes. Set only for
	// Action == ActionBlock.
	ResetAt time.Time
}

// PolicyConfig holds the tunable thresholds for sync decisions.
// Production values are configuration, not constants.
type PolicyConfig struct {
	// ManualCooldown is the minimum interval between manual syncs.
	ManualCooldown time.Duration

	// MinBudget is the remaining-request floor below which new work is
	// deferred until the provider budget resets.
	MinBudget int
}

// DefaultPolicyConfig returns the default policy thresholds.
func DefaultPolicyConfig() PolicyConfig {
	return PolicyConfig{
		ManualCooldown: 5 * time.Minute,
		MinBudget:      100,
	}
}
