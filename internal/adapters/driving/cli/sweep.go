package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the background sweeper",
	Long: `Runs the background sweeper until interrupted.

The sweeper resumes rate-limited jobs whose pause has elapsed and
starts scheduled syncs for registered installations.

With --once, a single recovery pass runs and the command exits.`,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().Bool("once", false, "run one recovery pass and exit")
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	once, _ := cmd.Flags().GetBool("once") //nolint:errcheck // flag is defined above
	if once {
		if syncService == nil {
			return errors.New("sync service not configured")
		}

		resumed, err := syncService.ResumeDueJobs(ctx)
		if err != nil {
			return fmt.Errorf("resuming jobs: %w", err)
		}
		cmd.Printf("Resumed %d job(s).\n", resumed)
		return nil
	}

	if sweeper == nil {
		return errors.New("sweeper not configured")
	}

	// Stop on SIGINT/SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cmd.Println("\nStopping sweeper...")
		sweeper.Stop() //nolint:errcheck // shutting down anyway
	}()

	cmd.Println("Sweeper running. Press Ctrl+C to stop.")
	if err := sweeper.Start(ctx); err != nil {
		return fmt.Errorf("sweeper: %w", err)
	}
	return nil
}
