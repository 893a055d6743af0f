package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/ax-engine/pkg/models"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Start, end and inspect work sessions",
	Long: `Sessions bound a stretch of focused work. Flow detection uses the open
session's duration, and events recorded while a session is open carry its id.`,
}

var sessionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Open a session (no-op when one is already open)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Engine == nil {
			return errEngineNotInitialized
		}
		status, err := Engine.StartSession()
		if err != nil {
			return fmt.Errorf("starting session: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Session %s open since %s.\n", status.ID, status.StartedAt.Format(time.RFC3339))
		return nil
	},
}

var sessionEndCmd = &cobra.Command{
	Use:   "end",
	Short: "Close the open session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Engine == nil {
			return errEngineNotInitialized
		}
		status, err := Engine.EndSession()
		if err != nil {
			return fmt.Errorf("ending session: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Session %s ended after %d min.\n", status.ID, status.DurationMin)
		return nil
	},
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the open session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Engine == nil {
			return errEngineNotInitialized
		}
		status, err := Engine.CurrentSession()
		if errors.Is(err, models.ErrNoOpenSession) {
			fmt.Fprintln(cmd.OutOrStdout(), "No open session.")
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading session: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Session %s open for %d min (since %s).\n",
			status.ID, status.DurationMin, status.StartedAt.Format(time.RFC3339))
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionStartCmd, sessionEndCmd, sessionStatusCmd)
	rootCmd.AddCommand(sessionCmd)
}
