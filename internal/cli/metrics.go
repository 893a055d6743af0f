package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	metricsJSON  bool
	metricsSince string
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display activity and feedback metrics",
	Long: `Display aggregated metrics derived from the event log.

Metrics include the event count by type, session count, and how many
suggestions were shown, approved and dismissed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MetricsCalc == nil {
			return fmt.Errorf("metrics calculator not initialized")
		}

		sinceTime, err := parseSinceDuration(metricsSince)
		if err != nil {
			return fmt.Errorf("parsing --since: %w", err)
		}

		metrics, err := MetricsCalc.Calculate(sinceTime)
		if err != nil {
			return fmt.Errorf("calculating metrics: %w", err)
		}

		out := cmd.OutOrStdout()
		if metricsJSON {
			return printJSON(out, metrics)
		}

		fmt.Fprintf(out, "Metrics (since %s)\n\n", sinceTime.Format("2006-01-02"))
		fmt.Fprintf(out, "  %-24s %d\n", "Events recorded:", metrics.EventCount)
		fmt.Fprintf(out, "  %-24s %d\n", "Sessions:", metrics.Sessions)
		fmt.Fprintf(out, "  %-24s %d\n", "Suggestions shown:", metrics.SuggestionsShown)
		fmt.Fprintf(out, "  %-24s %d\n", "Suggestions approved:", metrics.SuggestionsApproved)
		fmt.Fprintf(out, "  %-24s %d\n", "Suggestions dismissed:", metrics.SuggestionsDismissed)

		if len(metrics.EventsByType) > 0 {
			fmt.Fprintln(out, "\n  Events by type:")
			types := make([]string, 0, len(metrics.EventsByType))
			for t := range metrics.EventsByType {
				types = append(types, t)
			}
			sort.Strings(types)
			for _, t := range types {
				fmt.Fprintf(out, "    %-22s %d\n", t+":", metrics.EventsByType[t])
			}
		}

		if metrics.OldestEvent != nil {
			fmt.Fprintf(out, "\n  %-24s %s\n", "Oldest event:", metrics.OldestEvent.Format(time.RFC3339))
		}
		if metrics.NewestEvent != nil {
			fmt.Fprintf(out, "  %-24s %s\n", "Newest event:", metrics.NewestEvent.Format(time.RFC3339))
		}

		return nil
	},
}

// parseSinceDuration parses a human-friendly duration string like "7d", "30d",
// or "24h" and returns the corresponding time in the past.
func parseSinceDuration(s string) (time.Time, error) {
	now := time.Now().UTC()
	s = strings.TrimSpace(s)
	if s == "" {
		return now.AddDate(0, 0, -7), nil
	}

	var unit time.Duration
	switch {
	case strings.HasSuffix(s, "d"):
		unit = 24 * time.Hour
	case strings.HasSuffix(s, "h"):
		unit = time.Hour
	default:
		return time.Time{}, fmt.Errorf("unsupported duration format %q (use e.g. 7d, 30d, 24h)", s)
	}

	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid duration %q", s)
	}
	if n < 0 {
		return time.Time{}, fmt.Errorf("invalid duration %q: must not be negative", s)
	}
	if unit == time.Hour {
		return now.Add(-time.Duration(n) * time.Hour), nil
	}
	return now.AddDate(0, 0, -n), nil
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	metricsCmd.Flags().StringVar(&metricsSince, "since", "7d", "Time window for metrics (e.g. 7d, 30d, 24h)")
	rootCmd.AddCommand(metricsCmd)
}
