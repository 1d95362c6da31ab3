package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/gitpulse/internal/core/domain"
	"github.com/custodia-labs/gitpulse/internal/core/ports/driven"
	"github.com/custodia-labs/gitpulse/internal/core/ports/driving"
	"github.com/custodia-labs/gitpulse/internal/logger"
)

// Sweeper manages background task execution: resuming blocked jobs
// whose pause elapsed and starting cron-triggered syncs.
// It is a pure core service with no external control API.
type Sweeper struct {
	config        domain.SchedulerConfig
	store         driven.SchedulerStore
	installations driven.InstallationStore
	syncService   driving.SyncService

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewSweeper creates a sweeper with configuration.
func NewSweeper(
	config domain.SchedulerConfig,
	store driven.SchedulerStore,
	installations driven.InstallationStore,
	syncService driving.SyncService,
) *Sweeper {
	return &Sweeper{
		config:        config,
		store:         store,
		installations: installations,
		syncService:   syncService,
	}
}

// Start begins the sweeper loop. This method blocks until Stop is called.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	// Initialise tasks in store
	if err := s.initialiseTasks(ctx); err != nil {
		logger.Warn("sweeper: failed to initialise tasks: %v", err)
	}

	// Run the main sweeper loop
	return s.run(ctx)
}

// Stop gracefully shuts down the sweeper.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	// Wait for running tasks to complete
	s.wg.Wait()

	return nil
}

// initialiseTasks ensures all configured tasks exist in the store.
func (s *Sweeper) initialiseTasks(ctx context.Context) error {
	if taskCfg := s.config.GetTaskConfig(domain.TaskIDJobRecovery); taskCfg.Enabled {
		if err := s.ensureTask(ctx, domain.TaskIDJobRecovery, "Job Recovery", taskCfg); err != nil {
			return err
		}
	}
	if taskCfg := s.config.GetTaskConfig(domain.TaskIDScheduledSync); taskCfg.Enabled {
		if err := s.ensureTask(ctx, domain.TaskIDScheduledSync, "Scheduled Sync", taskCfg); err != nil {
			return err
		}
	}
	return nil
}

// ensureTask creates or updates a task in the store.
func (s *Sweeper) ensureTask(ctx context.Context, id, name string, cfg domain.TaskConfig) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	if task == nil {
		// Create new task
		task = &domain.ScheduledTask{
			ID:       id,
			Name:     name,
			Interval: cfg.Interval,
			Enabled:  cfg.Enabled,
			NextRun:  time.Now().Add(cfg.Interval),
		}
	} else {
		// Update interval if changed
		if task.Interval != cfg.Interval {
			task.Interval = cfg.Interval
			// Recalculate next run from now
			task.NextRun = time.Now().Add(cfg.Interval)
		}
		task.Enabled = cfg.Enabled
	}

	return s.store.SaveTask(ctx, task)
}

// run is the main sweeper loop.
func (s *Sweeper) run(ctx context.Context) error {
	// Check for due tasks immediately on startup
	s.checkAndRunDueTasks(ctx)

	// Use a 1-minute ticker to check for due tasks
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// checkAndRunDueTasks finds and executes tasks that are due.
func (s *Sweeper) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Warn("sweeper: failed to list tasks: %v", err)
		return
	}

	now := time.Now()
	for i := range tasks {
		task := &tasks[i]
		if !task.Enabled {
			continue
		}
		if task.NextRun.IsZero() || task.NextRun.Before(now) || task.NextRun.Equal(now) {
			s.runTask(ctx, task)
		}
	}
}

// runTask executes a single task.
func (s *Sweeper) runTask(ctx context.Context, task *domain.ScheduledTask) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		result := &domain.TaskResult{
			TaskID:    task.ID,
			StartedAt: time.Now(),
		}

		var err error
		switch task.ID {
		case domain.TaskIDJobRecovery:
			result.ItemsProcessed, err = s.runJobRecovery(ctx)
		case domain.TaskIDScheduledSync:
			result.ItemsProcessed, err = s.runScheduledSync(ctx)
		default:
			logger.Warn("sweeper: unknown task ID: %s", task.ID)
			return
		}

		result.EndedAt = time.Now()
		if err != nil {
			result.Success = false
			result.Error = err.Error()
			task.LastError = err.Error()
		} else {
			result.Success = true
			task.LastError = ""
			task.LastSuccess = result.EndedAt
		}

		// Update task state
		task.LastRun = result.StartedAt
		task.NextRun = result.EndedAt.Add(task.Interval)

		if saveErr := s.store.SaveTask(ctx, task); saveErr != nil {
			logger.Warn("sweeper: failed to save task %s: %v", task.ID, saveErr)
		}

		// Record result for history
		if recordErr := s.store.RecordResult(ctx, result); recordErr != nil {
			logger.Warn("sweeper: failed to record result for %s: %v", task.ID, recordErr)
		}
	}()
}

// runJobRecovery resumes blocked jobs whose blockedUntil has elapsed.
func (s *Sweeper) runJobRecovery(ctx context.Context) (int, error) {
	return s.syncService.ResumeDueJobs(ctx)
}

// runScheduledSync starts a cron-triggered sync for each installation.
// Policy skips (already syncing, budget low) are expected and not
// counted as failures.
func (s *Sweeper) runScheduledSync(ctx context.Context) (int, error) {
	installations, err := s.installations.List(ctx)
	if err != nil {
		return 0, err
	}

	started := 0
	for i := range installations {
		inst := &installations[i]
		if inst.Removed {
			continue
		}
		result, err := s.syncService.RequestSync(ctx, inst.ID, domain.TriggerCron)
		if err != nil {
			logger.Warn("sweeper: scheduled sync for %s failed: %v", inst.ID, err)
			continue
		}
		if result.Started {
			started++
		} else {
			logger.Debug("sweeper: scheduled sync for %s skipped: %s", inst.ID, result.Message)
		}
	}
	return started, nil
}
