// Command gitpulse is the GitPulse CLI entrypoint. It wires the
// storage, configuration, and connector adapters into the core
// services and hands control to the cobra command tree.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/custodia-labs/gitpulse/internal/adapters/driven/config/file"
	"github.com/custodia-labs/gitpulse/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/gitpulse/internal/adapters/driving/cli"
	"github.com/custodia-labs/gitpulse/internal/connectors/github"
	"github.com/custodia-labs/gitpulse/internal/core/domain"
	"github.com/custodia-labs/gitpulse/internal/core/ports/driven"
	"github.com/custodia-labs/gitpulse/internal/core/services"
	"github.com/custodia-labs/gitpulse/internal/ratelimit"
)

// version is set at build time via ldflags.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gitpulse: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configStore, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}

	store, err := sqlite.NewStore("")
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close() //nolint:errcheck

	policyCfg := policyConfig(configStore)

	factory := github.NewClientFactory(tokenResolver(configStore))

	orchestrator := services.NewOrchestrator(
		store.InstallationStore(),
		store.BatchStore(),
		store.JobStore(),
		store.EventStore(),
		factory,
		store.TaskQueue(),
		policyCfg,
		limiterConfig(configStore),
	)

	projector := services.NewStatusProjector(
		store.InstallationStore(),
		store.JobStore(),
		policyCfg,
	)

	sweeper := services.NewSweeper(
		schedulerConfig(configStore),
		store.SchedulerStore(),
		store.InstallationStore(),
		orchestrator,
	)

	cli.SetVersion(version)
	cli.Configure(cli.Services{
		Sync:              orchestrator,
		Status:            projector,
		InstallationStore: store.InstallationStore(),
		ConfigStore:       configStore,
		Sweeper:           sweeper,
	})

	return cli.Execute()
}

// tokenResolver reads the access token for an installation from
// config, preferring a per-installation key over the global one.
func tokenResolver(cfg driven.ConfigStore) github.TokenResolver {
	return func(_ context.Context, inst *domain.Installation) (string, error) {
		if token := cfg.GetString("github.token." + inst.ID); token != "" {
			return token, nil
		}
		if token := cfg.GetString("github.token"); token != "" {
			return token, nil
		}
		return "", domain.ErrAuthRequired
	}
}

// policyConfig builds the sync policy from config, with defaults.
func policyConfig(cfg driven.ConfigStore) domain.PolicyConfig {
	policy := domain.DefaultPolicyConfig()
	if d := cfg.GetDuration("sync.cooldown"); d > 0 {
		policy.ManualCooldown = d
	}
	if n := cfg.GetInt("ratelimit.min_budget"); n > 0 {
		policy.MinBudget = n
	}
	return policy
}

// limiterConfig builds the adaptive rate limiter tuning from config,
// with defaults.
func limiterConfig(cfg driven.ConfigStore) ratelimit.Config {
	limiter := ratelimit.DefaultConfig()
	if n := cfg.GetInt("ratelimit.bucket_capacity"); n > 0 {
		limiter.BucketCapacity = n
	}
	if f := cfg.GetFloat("ratelimit.refill_rate"); f > 0 {
		limiter.RefillRate = f
	}
	if d := cfg.GetDuration("ratelimit.initial_backoff"); d > 0 {
		limiter.InitialBackoff = d
	}
	if f := cfg.GetFloat("ratelimit.max_backoff_multiplier"); f > 0 {
		limiter.MaxBackoffMultiplier = f
	}
	if f := cfg.GetFloat("ratelimit.jitter"); f > 0 {
		limiter.JitterPercentage = f
	}
	if n := cfg.GetInt("breaker.failure_threshold"); n > 0 {
		limiter.CircuitBreakerThreshold = n
	}
	if d := cfg.GetDuration("breaker.pause"); d > 0 {
		limiter.CircuitBreakerPause = d
	}
	return limiter
}

// schedulerConfig builds the sweeper configuration from config, with
// defaults.
func schedulerConfig(cfg driven.ConfigStore) domain.SchedulerConfig {
	scheduler := domain.DefaultSchedulerConfig()
	if _, ok := cfg.Get("sweeper.enabled"); ok {
		scheduler.Enabled = cfg.GetBool("sweeper.enabled")
	}
	if d := cfg.GetDuration("sync.interval"); d > 0 {
		task := scheduler.TaskConfigs[domain.TaskIDScheduledSync]
		task.Interval = d
		scheduler.TaskConfigs[domain.TaskIDScheduledSync] = task
	}
	if d := cfg.GetDuration("sweeper.recovery_interval"); d > 0 {
		task := scheduler.TaskConfigs[domain.TaskIDJobRecovery]
		task.Interval = d
		scheduler.TaskConfigs[domain.TaskIDJobRecovery] = task
	}
	return scheduler
}
