// Package cli provides the cobra command tree for the GitPulse CLI.
// Commands talk to the core exclusively through the driving ports;
// services are injected as package-level variables at startup so
// tests can swap them.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/gitpulse/internal/core/ports/driven"
	"github.com/custodia-labs/gitpulse/internal/core/ports/driving"
	"github.com/custodia-labs/gitpulse/internal/logger"
)

// version is the application version, set at build time via ldflags.
var version = "dev"

// Services wired into the command tree at startup.
var (
	syncService       driving.SyncService
	statusQuery       driving.StatusQuery
	installationStore driven.InstallationStore
	configStore       driven.ConfigStore
	sweeper           SweeperRunner
)

// SweeperRunner is the surface the sweep command needs from the
// background sweeper.
type SweeperRunner interface {
	// Start begins the sweeper loop and blocks until Stop is called.
	Start(ctx context.Context) error

	// Stop halts the sweeper loop.
	Stop() error
}

// Services bundles the wired dependencies for the CLI.
type Services struct {
	Sync              driving.SyncService
	Status            driving.StatusQuery
	InstallationStore driven.InstallationStore
	ConfigStore       driven.ConfigStore
	Sweeper           SweeperRunner
}

// Configure installs the wired services into the command tree.
// Must be called before Execute.
func Configure(s Services) {
	syncService = s.Sync
	statusQuery = s.Status
	installationStore = s.InstallationStore
	configStore = s.ConfigStore
	sweeper = s.Sweeper
}

var rootCmd = &cobra.Command{
	Use:   "gitpulse",
	Short: "GitHub activity ingestion engine",
	Long: `GitPulse ingests GitHub activity (pushes, pull requests, reviews,
issues, comments) into a local store of canonical, deduplicated events.

Register installations, trigger syncs, and inspect sync status. A
background sweeper resumes rate-limited jobs and runs scheduled syncs.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		verbose, _ := cmd.Flags().GetBool("verbose") //nolint:errcheck // flag is defined below
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion overrides the displayed version. Called from main with
// the build-time value.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}
