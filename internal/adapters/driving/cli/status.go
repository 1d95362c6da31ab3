package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/gitpulse/internal/core/ports/driving"
)

var statusCmd = &cobra.Command{
	Use:   "status [installation-id]",
	Short: "Show sync status",
	Long: `Shows the projected sync status for one installation, or for all
installations when no ID is given.

The state is recomputed from the job records on every call, so a stale
cached status can never be reported.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if statusQuery == nil {
		return errors.New("status service not configured")
	}

	ctx := context.Background()

	if len(args) > 0 {
		status, err := statusQuery.Status(ctx, args[0])
		if err != nil {
			return fmt.Errorf("getting status: %w", err)
		}
		printStatus(cmd, status)
		return nil
	}

	statuses, err := statusQuery.StatusForUser(ctx)
	if err != nil {
		return fmt.Errorf("getting statuses: %w", err)
	}

	if len(statuses) == 0 {
		cmd.Println("No installations registered.")
		return nil
	}

	for i := range statuses {
		printStatus(cmd, &statuses[i])
		cmd.Println()
	}
	return nil
}

func printStatus(cmd *cobra.Command, status *driving.SyncStatus) {
	cmd.Printf("Installation: %s\n", status.InstallationID)
	cmd.Printf("  State: %s\n", status.State)

	if status.State == driving.StateSyncing && status.ActiveJobProgress >= 0 {
		cmd.Printf("  Progress: %.0f%%\n", status.ActiveJobProgress)
	}
	if status.State == driving.StateBlocked && !status.BlockedUntil.IsZero() {
		cmd.Printf("  Resumes at: %s\n", status.BlockedUntil.Format(time.RFC3339))
	}
	if status.LastSyncError != "" {
		cmd.Printf("  Last error: %s\n", status.LastSyncError)
	}
	if !status.LastSyncedAt.IsZero() {
		cmd.Printf("  Last synced: %s\n", status.LastSyncedAt.Format(time.RFC3339))
	}

	if status.CanSyncNow {
		cmd.Println("  Manual sync: available")
	} else if status.CooldownMs > 0 {
		cmd.Printf("  Manual sync: cooldown, %s remaining\n",
			(time.Duration(status.CooldownMs) * time.Millisecond).Round(time.Second))
	} else {
		cmd.Println("  Manual sync: unavailable")
	}
}
