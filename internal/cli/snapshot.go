package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/ax-engine/pkg/models"
)

var (
	snapshotJSON bool
	snapshotAll  bool
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Assemble and print the current state graph",
	Long: `Assemble a fresh snapshot of the workspace and print it.

The snapshot lists entities that need review, the suggestions that passed
gating, the current quiet signals and any unconsumed scratchpad entries.
Use --all to include suggestions that were held back and --json for the full
graph.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Engine == nil {
			return errEngineNotInitialized
		}

		graph, err := Engine.Snapshot()
		if err != nil {
			return fmt.Errorf("assembling snapshot: %w", err)
		}

		out := cmd.OutOrStdout()
		if snapshotJSON {
			return printJSON(out, graph)
		}
		printSnapshot(out, graph, snapshotAll)
		return nil
	},
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func printSnapshot(w io.Writer, graph *models.AXStateGraph, all bool) {
	fmt.Fprintf(w, "Snapshot at %s\n\n", graph.GeneratedAt.Format("2006-01-02 15:04 MST"))

	counts := make([]string, 0, len(models.StaleLevels))
	for _, level := range models.StaleLevels {
		counts = append(counts, fmt.Sprintf("%s %d", level, graph.Staleness.Counts[level]))
	}
	fmt.Fprintf(w, "Staleness: %s\n", strings.Join(counts, ", "))

	review := graph.Staleness.AtLeast(models.LevelStale)
	if len(review) > 0 {
		fmt.Fprintln(w, "\nNeeds review:")
		for _, e := range review {
			fmt.Fprintf(w, "  [%s] %-20s %s (%dd)", strings.ToUpper(string(e.Result.StaleLevel)), e.Entity, e.Title, e.Result.AgeInDays)
			if reason := e.Result.Reason(); reason != "" {
				fmt.Fprintf(w, " - %s", reason)
			}
			fmt.Fprintln(w)
		}
	}

	surfaced := graph.Surfaced()
	fmt.Fprintf(w, "\nSuggestions (%d surfaced of %d):\n", len(surfaced), len(graph.Suggestions))
	shown := 0
	for _, s := range graph.Suggestions {
		if !all && !s.ShouldSurface {
			continue
		}
		shown++
		marker := " "
		if !s.ShouldSurface {
			marker = "-"
		}
		fmt.Fprintf(w, " %s %s  %.2f  %-8s %s\n", marker, s.ID, s.Confidence, s.Urgency, s.Title)
		fmt.Fprintf(w, "      %s\n", s.ProposedAction)
	}
	if shown == 0 {
		fmt.Fprintln(w, "  none")
	}

	var quiet []string
	if graph.Quiet.WithinQuietHours {
		quiet = append(quiet, "quiet hours")
	}
	if graph.Quiet.InFlowState {
		quiet = append(quiet, fmt.Sprintf("in flow (%d min)", graph.Quiet.SessionDurationMin))
	}
	if graph.Quiet.RecentBurstActivity {
		quiet = append(quiet, "burst activity")
	}
	if len(quiet) > 0 {
		fmt.Fprintf(w, "\nHolding back: %s\n", strings.Join(quiet, ", "))
	}

	if ignored := graph.Patterns.IgnoredList(); len(ignored) > 0 {
		fmt.Fprintf(w, "Ignored types: %s\n", strings.Join(ignored, ", "))
	}
	if n := len(graph.Scratchpad); n > 0 {
		fmt.Fprintf(w, "Scratchpad: %d pending entr%s\n", n, pluralY(n))
	}
}

func pluralY(n int) string {
	if n == 1 {
		return "y"
	}
	return "ies"
}

func init() {
	snapshotCmd.Flags().BoolVar(&snapshotJSON, "json", false, "Output the full snapshot as JSON")
	snapshotCmd.Flags().BoolVar(&snapshotAll, "all", false, "Include suggestions that were not surfaced")
	rootCmd.AddCommand(snapshotCmd)
}
