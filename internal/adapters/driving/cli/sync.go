package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/gitpulse/internal/core/ports/driving"
)

var syncCmd = &cobra.Command{
	Use:   "sync <installation-id>",
	Short: "Synchronise activity for an installation",
	Long: `Triggers a manual activity sync for the given installation.

The request is idempotent: if a sync is already running, a cooldown is
active, or the rate budget is too low, the command reports why and
exits without error.`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().Bool("wait", false, "wait for the sync to finish, showing progress")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if syncService == nil {
		return errors.New("sync service not configured")
	}

	ctx := context.Background()
	installationID := args[0]

	cmd.Printf("Requesting sync for installation: %s...\n", installationID)

	result, err := syncService.RequestManualSync(ctx, installationID)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	if !result.Started {
		cmd.Printf("Sync not started: %s\n", result.Message)
		return nil
	}

	cmd.Printf("Sync started (batch %s).\n", result.BatchID)

	wait, _ := cmd.Flags().GetBool("wait") //nolint:errcheck // flag is defined above
	if !wait {
		return nil
	}

	return waitForSync(ctx, cmd, installationID)
}

// waitForSync polls status until the installation leaves the syncing
// state, printing progress updates.
func waitForSync(ctx context.Context, cmd *cobra.Command, installationID string) error {
	if statusQuery == nil {
		return errors.New("status service not configured")
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	lastProgress := -1.0
	for range ticker.C {
		status, err := statusQuery.Status(ctx, installationID)
		if err != nil {
			return fmt.Errorf("checking sync status: %w", err)
		}

		switch status.State {
		case driving.StateSyncing:
			if status.ActiveJobProgress > lastProgress {
				cmd.Printf("\rSyncing... %.0f%%", status.ActiveJobProgress)
				lastProgress = status.ActiveJobProgress
			}
		case driving.StateBlocked:
			cmd.Printf("\nSync paused by rate limiting, resumes at %s.\n",
				status.BlockedUntil.Format(time.RFC3339))
			return nil
		case driving.StateError:
			cmd.Printf("\nSync failed (%s).\n", status.LastSyncError)
			return nil
		default:
			cmd.Println("\nSync complete.")
			return nil
		}
	}
	return nil
}
