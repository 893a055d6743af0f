package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valter-silva-au/ax-engine/internal/observability"
)

var (
	alertsNotify bool
	alertsJSON   bool
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show active alerts and warnings",
	Long: `Evaluate alert conditions against a fresh snapshot and display any
triggered alerts.

Alerts fire for critical entities, a critical backlog above
alerts.max_critical, and suggestion types the user habitually dismisses.
With --notify the alerts are also posted to the configured Slack webhook.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if AlertEngine == nil {
			return fmt.Errorf("alert engine not initialized")
		}
		if Engine == nil {
			return errEngineNotInitialized
		}

		graph, err := Engine.Snapshot()
		if err != nil {
			return fmt.Errorf("assembling snapshot: %w", err)
		}
		alerts := AlertEngine.Evaluate(graph)

		if alertsNotify && len(alerts) > 0 {
			if Notifier == nil {
				return fmt.Errorf("notifications are not configured (set notifications.enabled and notifications.slack.webhook_url)")
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := Notifier.Notify(ctx, alerts); err != nil {
				return fmt.Errorf("sending notification: %w", err)
			}
			logger().Info("alerts sent", zap.Int("count", len(alerts)))
		}

		out := cmd.OutOrStdout()
		if alertsJSON {
			if alerts == nil {
				alerts = []observability.Alert{}
			}
			return printJSON(out, alerts)
		}

		if len(alerts) == 0 {
			fmt.Fprintln(out, "No active alerts.")
			return nil
		}

		fmt.Fprintf(out, "%d active alert(s):\n\n", len(alerts))
		for _, alert := range alerts {
			severity := strings.ToUpper(string(alert.Severity))
			fmt.Fprintf(out, "  [%s] %s\n", severity, alert.Message)
			fmt.Fprintf(out, "         triggered at %s\n\n", alert.TriggeredAt.Format("2006-01-02 15:04 MST"))
		}

		return nil
	},
}

func init() {
	alertsCmd.Flags().BoolVar(&alertsNotify, "notify", false, "Post alerts to the configured Slack webhook")
	alertsCmd.Flags().BoolVar(&alertsJSON, "json", false, "Output alerts as JSON")
	rootCmd.AddCommand(alertsCmd)
}
