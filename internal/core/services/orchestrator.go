package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/gitpulse/internal/canonical"
	"github.com/custodia-labs/gitpulse/internal/core/domain"
	"github.com/custodia-labs/gitpulse/internal/core/ports/driven"
	"github.com/custodia-labs/gitpulse/internal/core/ports/driving"
	"github.com/custodia-labs/gitpulse/internal/logger"
	"github.com/custodia-labs/gitpulse/internal/ratelimit"
)

// Ensure Orchestrator implements the interface.
var _ driving.SyncService = (*Orchestrator)(nil)

// jobOutcome is how one runJob invocation ended.
type jobOutcome int

const (
	outcomeCompleted jobOutcome = iota
	outcomeBlocked
	outcomeFailed
	outcomeStopped // installation removed; job left failed, batch halted
)

// Orchestrator drives the job-per-repository ingestion state machine.
//
// Each trigger invocation is an independent unit of work; the
// persistent batch/job records are the single source of truth across
// restarts and across concurrently running triggers. Exclusivity of
// active jobs is enforced by the job store's atomic CreateExclusive,
// not by in-process locking.
type Orchestrator struct {
	installations driven.InstallationStore
	batches       driven.BatchStore
	jobs          driven.JobStore
	events        driven.EventStore
	clients       driven.TimelineClientFactory
	tasks         driven.TaskQueue // optional

	policyCfg  domain.PolicyConfig
	limiterCfg ratelimit.Config

	// Rate limiters are scoped per installation, never shared, so one
	// tenant's open breaker cannot starve another.
	mu       sync.Mutex
	limiters map[string]*ratelimit.AdaptiveRateLimiter

	now func() time.Time
}

// NewOrchestrator creates an ingestion orchestrator.
// The task queue is optional - if nil, downstream enqueueing is disabled.
func NewOrchestrator(
	installations driven.InstallationStore,
	batches driven.BatchStore,
	jobs driven.JobStore,
	events driven.EventStore,
	clients driven.TimelineClientFactory,
	tasks driven.TaskQueue,
	policyCfg domain.PolicyConfig,
	limiterCfg ratelimit.Config,
) *Orchestrator {
	return &Orchestrator{
		installations: installations,
		batches:       batches,
		jobs:          jobs,
		events:        events,
		clients:       clients,
		tasks:         tasks,
		policyCfg:     policyCfg,
		limiterCfg:    limiterCfg,
		limiters:      make(map[string]*ratelimit.AdaptiveRateLimiter),
		now:           time.Now,
	}
}

// limiterFor returns the installation's rate limiter, creating it on
// first use.
func (o *Orchestrator) limiterFor(installationID string) (*ratelimit.AdaptiveRateLimiter, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if limiter, ok := o.limiters[installationID]; ok {
		return limiter, nil
	}
	limiter, err := ratelimit.NewAdaptiveRateLimiter(o.limiterCfg)
	if err != nil {
		return nil, fmt.Errorf("create limiter: %w", err)
	}
	o.limiters[installationID] = limiter
	return limiter, nil
}

// LimiterMetrics returns a snapshot of the installation's limiter
// counters. Zero metrics when no limiter exists yet.
func (o *Orchestrator) LimiterMetrics(installationID string) ratelimit.Metrics {
	o.mu.Lock()
	defer o.mu.Unlock()
	if limiter, ok := o.limiters[installationID]; ok {
		return limiter.Metrics()
	}
	return ratelimit.Metrics{CurrentBackoffMultiplier: 1}
}

// RequestManualSync asks for an immediate sync on behalf of a user.
func (o *Orchestrator) RequestManualSync(ctx context.Context, installationID string) (*driving.SyncRequestResult, error) {
	return o.RequestSync(ctx, installationID, domain.TriggerManual)
}

// RequestSync evaluates the policy and, if allowed, creates and runs a
// batch for the installation. Skip and block decisions are not errors:
// they return Started=false with a user-safe message.
func (o *Orchestrator) RequestSync(ctx context.Context, installationID string, trigger domain.SyncTrigger) (*driving.SyncRequestResult, error) {
	inst, err := o.installations.Get(ctx, installationID)
	if err != nil {
		return nil, fmt.Errorf("get installation: %w", err)
	}

	activeJob, err := o.jobs.ActiveForInstallation(ctx, installationID)
	if err != nil {
		return nil, fmt.Errorf("get active job: %w", err)
	}

	decision := EvaluateSyncPolicy(PolicyInput{
		Installation: inst,
		ActiveJob:    activeJob,
		Trigger:      trigger,
		Now:          o.now(),
		Config:       o.policyCfg,
	})
	if decision.Action != domain.ActionStart {
		return &driving.SyncRequestResult{Message: decisionMessage(decision)}, nil
	}

	client, err := o.clients.Create(ctx, inst)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	defer client.Close()

	repos, err := client.ListTargetRepos(ctx)
	if err != nil {
		return nil, fmt.Errorf("list repos: %w", err)
	}
	if len(repos) == 0 {
		return &driving.SyncRequestResult{Message: "no repositories accessible to this installation"}, nil
	}

	batch, job, err := o.createBatch(ctx, inst, trigger, repos)
	if errors.Is(err, domain.ErrAlreadyExists) {
		// Lost the race against a near-simultaneous trigger.
		return &driving.SyncRequestResult{Message: "sync already in progress"}, nil
	}
	if err != nil {
		return nil, err
	}

	if trigger == domain.TriggerManual {
		inst.LastManualSyncAt = o.now()
	}
	if trigger == domain.TriggerRecovery {
		inst.RecoveryAttempts++
	}
	inst.SyncStatus = domain.InstallationSyncing
	if err := o.installations.Save(ctx, inst); err != nil {
		return nil, fmt.Errorf("save installation: %w", err)
	}

	logger.Info("Starting %s sync for installation %s: %d repos, batch %s",
		trigger, installationID, len(repos), batch.ID)

	if err := o.runBatch(ctx, inst, client, batch, job); err != nil {
		return nil, err
	}

	return &driving.SyncRequestResult{Started: true, BatchID: batch.ID}, nil
}

// decisionMessage maps a non-start decision to a user-safe message.
func decisionMessage(d domain.SyncDecision) string {
	switch d.Reason {
	case domain.ReasonAlreadySyncing:
		return "sync already in progress"
	case domain.ReasonCooldownActive:
		return fmt.Sprintf("manual sync is on cooldown, retry in %s", d.CooldownRemaining.Round(time.Second))
	case domain.ReasonBudgetLow:
		return fmt.Sprintf("rate budget low, sync deferred until %s", d.ResetAt.Format(time.RFC3339))
	default:
		return "sync deferred"
	}
}

// createBatch persists one batch with one job per repository. The
// first repository starts running and carries the remaining queue;
// exclusivity is enforced atomically by the job store.
func (o *Orchestrator) createBatch(ctx context.Context, inst *domain.Installation, trigger domain.SyncTrigger, repos []string) (*domain.SyncBatch, *domain.IngestionJob, error) {
	now := o.now()

	batch := &domain.SyncBatch{
		ID:             uuid.NewString(),
		InstallationID: inst.ID,
		Trigger:        trigger,
		Status:         domain.BatchRunning,
		TotalRepos:     len(repos),
		CreatedAt:      now,
	}
	if err := o.batches.Create(ctx, batch); err != nil {
		return nil, nil, fmt.Errorf("create batch: %w", err)
	}

	job := &domain.IngestionJob{
		ID:             uuid.NewString(),
		BatchID:        batch.ID,
		InstallationID: inst.ID,
		RepoFullName:   repos[0],
		Since:          inst.LastSyncedAt,
		ReposRemaining: repos[1:],
		Status:         domain.JobRunning,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := o.jobs.CreateExclusive(ctx, job); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Another trigger won. Abandon the batch so it never
			// counts as running.
			batch.Status = domain.BatchFailed
			batch.CompletedAt = now
			if saveErr := o.batches.Save(ctx, batch); saveErr != nil {
				logger.Warn("Failed to abandon batch %s: %v", batch.ID, saveErr)
			}
			return nil, nil, domain.ErrAlreadyExists
		}
		return nil, nil, fmt.Errorf("create job: %w", err)
	}

	return batch, job, nil
}

// runBatch drives the active job of a batch to a terminal or blocked
// state, pulling queued repositories into fresh jobs as each one
// settles. A blocked job suspends the whole batch until the sweeper
// resumes it; a failed repository only advances the queue.
func (o *Orchestrator) runBatch(ctx context.Context, inst *domain.Installation, client driven.TimelineClient, batch *domain.SyncBatch, job *domain.IngestionJob) error {
	limiter, err := o.limiterFor(inst.ID)
	if err != nil {
		return err
	}

	for {
		outcome := o.runJob(ctx, inst, client, limiter, batch, job)

		switch outcome {
		case outcomeBlocked:
			// The sweeper resumes the job once its pause elapses.
			return o.batches.Save(ctx, batch)

		case outcomeStopped:
			batch.Status = domain.BatchFailed
			batch.CompletedAt = o.now()
			return o.batches.Save(ctx, batch)

		case outcomeCompleted:
			batch.CompletedRepos++
		case outcomeFailed:
			batch.FailedRepos++
		}

		if err := o.batches.Save(ctx, batch); err != nil {
			return fmt.Errorf("save batch: %w", err)
		}

		// Pull the next queued repository into a fresh job. Each job's
		// resumption state stays independent of the others.
		if len(job.ReposRemaining) > 0 {
			next := &domain.IngestionJob{
				ID:             uuid.NewString(),
				BatchID:        batch.ID,
				InstallationID: inst.ID,
				RepoFullName:   job.ReposRemaining[0],
				Since:          job.Since,
				Until:          job.Until,
				ReposRemaining: job.ReposRemaining[1:],
				Status:         domain.JobRunning,
				CreatedAt:      o.now(),
				UpdatedAt:      o.now(),
			}
			if err := o.jobs.CreateExclusive(ctx, next); err != nil {
				return fmt.Errorf("create next job: %w", err)
			}
			job = next
			continue
		}

		return o.finishBatch(ctx, inst, batch)
	}
}

// finishBatch marks a settled batch completed and refreshes the
// installation's derived status fields.
func (o *Orchestrator) finishBatch(ctx context.Context, inst *domain.Installation, batch *domain.SyncBatch) error {
	if !batch.Settled() {
		return nil
	}

	batch.Status = domain.BatchCompleted
	batch.CompletedAt = o.now()
	if err := o.batches.Save(ctx, batch); err != nil {
		return fmt.Errorf("save batch: %w", err)
	}

	inst.SyncStatus = domain.InstallationIdle
	inst.LastSyncedAt = o.now()
	inst.LastSyncError = ""
	inst.RecoveryAttempts = 0
	if batch.FailedRepos > 0 && batch.CompletedRepos == 0 {
		inst.SyncStatus = domain.InstallationError
	}
	if err := o.installations.Save(ctx, inst); err != nil {
		return fmt.Errorf("save installation: %w", err)
	}

	logger.Info("Batch %s complete: %d/%d repos, %d failed, %d events ingested",
		batch.ID, batch.CompletedRepos, batch.TotalRepos, batch.FailedRepos, batch.EventsIngested)
	return nil
}

// runJob pages through one repository's timeline from the persisted
// cursor, canonicalising and persisting each item. Progress is saved
// after every page so the job can resume from its cursor after any
// interruption.
func (o *Orchestrator) runJob(ctx context.Context, inst *domain.Installation, client driven.TimelineClient, limiter *ratelimit.AdaptiveRateLimiter, batch *domain.SyncBatch, job *domain.IngestionJob) jobOutcome {
	pagesFetched := 0

	for {
		// Cancellation is operational: poll for removal between pages,
		// never abort a page in flight.
		fresh, err := o.installations.Get(ctx, inst.ID)
		if err == nil && fresh.Removed {
			return o.failJob(ctx, job, domain.ErrInstallationRemoved.Error(), outcomeStopped)
		}

		// Budget check before each fetch. Below the floor we block and
		// let the sweeper resume rather than busy-wait on the reset.
		budget := client.Budget()
		if budget.Remaining < o.policyCfg.MinBudget && budget.Reset.After(o.now()) {
			return o.blockJob(ctx, job, budget.Reset)
		}

		var page *driven.TimelinePage
		err = limiter.Execute(ctx, func(ctx context.Context) error {
			p, fetchErr := client.FetchTimelinePage(ctx, job.RepoFullName, driven.PageOptions{
				Cursor: job.Cursor,
				Since:  job.Since,
				Until:  job.Until,
			})
			if fetchErr != nil {
				return fetchErr
			}
			page = p
			return nil
		})
		if err != nil {
			return o.handleFetchError(ctx, inst, job, err)
		}

		o.ingestPage(ctx, batch, job, page)
		pagesFetched++

		// Crash-safe resumption point: cursor and counters are
		// persisted before the next fetch.
		job.Cursor = page.Cursor
		job.Progress = estimateProgress(pagesFetched, page.HasNextPage)
		job.UpdatedAt = o.now()
		if err := o.jobs.Save(ctx, job); err != nil {
			logger.Warn("Failed to persist job %s progress: %v", job.ID, err)
		}

		inst.RateLimitRemaining = page.Budget.Remaining
		inst.RateLimitReset = page.Budget.Reset
		if err := o.installations.Save(ctx, inst); err != nil {
			logger.Warn("Failed to persist installation %s budget: %v", inst.ID, err)
		}

		if !page.HasNextPage {
			job.Status = domain.JobCompleted
			job.Progress = 100
			job.UpdatedAt = o.now()
			if err := o.jobs.Save(ctx, job); err != nil {
				logger.Warn("Failed to persist job %s completion: %v", job.ID, err)
			}
			logger.Debug("Job %s done: %s, %d events, %d duplicates",
				job.ID, job.RepoFullName, job.EventsIngested, job.DuplicatesSkipped)
			return outcomeCompleted
		}
	}
}

// ingestPage canonicalises and persists every item on a page.
// Per-item failures are logged and skipped so one bad event never
// aborts the job.
func (o *Orchestrator) ingestPage(ctx context.Context, batch *domain.SyncBatch, job *domain.IngestionJob, page *driven.TimelinePage) {
	for i := range page.Items {
		event, err := canonical.Canonicalise(&page.Items[i])
		if err != nil {
			logger.Debug("Skipping item in %s: %v", job.RepoFullName, err)
			continue
		}

		outcome, err := o.events.Insert(ctx, event)
		if err != nil {
			logger.Debug("Failed to persist event %s: %v", event.ContentHash, err)
			continue
		}
		if outcome == driven.OutcomeDuplicate {
			job.DuplicatesSkipped++
			continue
		}

		job.EventsIngested++
		batch.EventsIngested++

		// Fire-and-forget: downstream gets at-least-once enqueueing
		// keyed by content hash, so its consumer dedupes on retry.
		if o.tasks != nil {
			if err := o.tasks.EnqueueEmbedding(ctx, event.ContentHash); err != nil {
				logger.Warn("Failed to enqueue embedding for %s: %v", event.ContentHash, err)
			}
		}
	}
}

// handleFetchError maps a failed fetch to the job's next state.
// Rate-limit failures and an open breaker block the job; permanent and
// auth failures fail it; everything else fails it with the raw text
// preserved for the projector to normalise.
func (o *Orchestrator) handleFetchError(ctx context.Context, inst *domain.Installation, job *domain.IngestionJob, err error) jobOutcome {
	var open *ratelimit.CircuitOpenError
	if errors.As(err, &open) {
		return o.blockJob(ctx, job, o.now().Add(open.RetryIn))
	}

	var hinter ratelimit.RetryAfterHinter
	if errors.Is(err, domain.ErrRateLimited) || errors.As(err, &hinter) {
		until := o.now().Add(time.Minute)
		if hinter != nil {
			if retryAfter, ok := hinter.RetryAfterHint(); ok && retryAfter > 0 {
				until = o.now().Add(retryAfter)
			}
		}
		return o.blockJob(ctx, job, until)
	}

	inst.LastSyncError = err.Error()
	inst.SyncStatus = domain.InstallationError
	if saveErr := o.installations.Save(ctx, inst); saveErr != nil {
		logger.Warn("Failed to persist installation %s error: %v", inst.ID, saveErr)
	}

	if errors.Is(err, domain.ErrRepoInaccessible) {
		return o.failJob(ctx, job, "repository inaccessible", outcomeFailed)
	}
	if errors.Is(err, domain.ErrAuthInvalid) || errors.Is(err, domain.ErrAuthExpired) {
		// Never silently retried; the user must reconnect.
		return o.failJob(ctx, job, err.Error(), outcomeFailed)
	}

	return o.failJob(ctx, job, err.Error(), outcomeFailed)
}

// blockJob parks the job until the given time and persists it.
func (o *Orchestrator) blockJob(ctx context.Context, job *domain.IngestionJob, until time.Time) jobOutcome {
	job.Status = domain.JobBlocked
	job.BlockedUntil = until
	job.UpdatedAt = o.now()
	if err := o.jobs.Save(ctx, job); err != nil {
		logger.Warn("Failed to persist blocked job %s: %v", job.ID, err)
	}
	logger.Info("Job %s blocked until %s", job.ID, until.Format(time.RFC3339))
	return outcomeBlocked
}

// failJob marks the job failed with a message and persists it.
func (o *Orchestrator) failJob(ctx context.Context, job *domain.IngestionJob, message string, outcome jobOutcome) jobOutcome {
	job.Status = domain.JobFailed
	job.ErrorMessage = message
	job.UpdatedAt = o.now()
	if err := o.jobs.Save(ctx, job); err != nil {
		logger.Warn("Failed to persist failed job %s: %v", job.ID, err)
	}
	logger.Info("Job %s failed: %s", job.ID, message)
	return outcome
}

// ResumeDueJobs resumes blocked jobs whose pause has elapsed.
// The sweeper calls this on every tick.
func (o *Orchestrator) ResumeDueJobs(ctx context.Context) (int, error) {
	due, err := o.jobs.ListBlockedDue(ctx, o.now())
	if err != nil {
		return 0, fmt.Errorf("list blocked jobs: %w", err)
	}

	resumed := 0
	var errs []error
	for i := range due {
		job := &due[i]
		if err := o.resumeJob(ctx, job); err != nil {
			errs = append(errs, fmt.Errorf("resume job %s: %w", job.ID, err))
			continue
		}
		resumed++
	}

	if len(errs) > 0 {
		return resumed, errors.Join(errs...)
	}
	return resumed, nil
}

// resumeJob re-runs one blocked job from its persisted cursor and
// carries the batch forward from wherever it stopped.
func (o *Orchestrator) resumeJob(ctx context.Context, job *domain.IngestionJob) error {
	inst, err := o.installations.Get(ctx, job.InstallationID)
	if err != nil {
		return fmt.Errorf("get installation: %w", err)
	}

	batch, err := o.batches.Get(ctx, job.BatchID)
	if err != nil {
		return fmt.Errorf("get batch: %w", err)
	}

	client, err := o.clients.Create(ctx, inst)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}
	defer client.Close()

	job.Status = domain.JobRunning
	job.BlockedUntil = time.Time{}
	job.UpdatedAt = o.now()
	if err := o.jobs.Save(ctx, job); err != nil {
		return fmt.Errorf("save job: %w", err)
	}

	logger.Info("Resuming job %s for %s from persisted cursor", job.ID, job.RepoFullName)
	return o.runBatch(ctx, inst, client, batch, job)
}

// estimateProgress is a coarse completion estimate while the total
// page count is unknown. It climbs quickly then saturates at 95 until
// the final page lands.
func estimateProgress(pagesFetched int, hasNext bool) float64 {
	if !hasNext {
		return 100
	}
	progress := float64(pagesFetched) * 10
	if progress > 95 {
		progress = 95
	}
	return progress
}
