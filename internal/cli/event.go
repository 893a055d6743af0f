package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/ax-engine/pkg/models"
)

var (
	eventFrom    string
	eventFeature string
	eventStdin   bool

	eventsSince   string
	eventsType    string
	eventsSession string
	eventsLimit   int
	eventsJSON    bool
)

var eventCmd = &cobra.Command{
	Use:   "event <feature|navigation|shortcut> <value>",
	Short: "Record a user behavior event",
	Long: `Record a behavior event in the log.

  ax event feature search              feature.used with name "search"
  ax event navigation inbox --from home
  ax event shortcut ctrl+k --feature search

With --stdin a complete event is read as JSON, which lets editor hooks
forward events without building arguments. Suggestion and session events
are otherwise recorded by the feedback and session commands.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if eventStdin {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(2)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if Engine == nil {
			return errEngineNotInitialized
		}

		var event models.TrackableEvent
		if eventStdin {
			parsed, err := parseStdin[models.TrackableEvent](cmd.InOrStdin())
			if err != nil {
				return err
			}
			event = *parsed
		} else {
			built, err := buildEvent(args[0], args[1])
			if err != nil {
				return err
			}
			event = built
		}

		stored, err := Engine.RecordEvent(event)
		if err != nil {
			return fmt.Errorf("recording event: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s %s.\n", stored.Type, stored.ID)
		return nil
	},
}

// buildEvent leaves the timestamp and session id for the engine to fill.
func buildEvent(kind, value string) (models.TrackableEvent, error) {
	var zero time.Time
	switch kind {
	case "feature":
		return models.NewFeatureEvent(value, "", zero), nil
	case "navigation", "nav":
		return models.NewNavigationEvent(eventFrom, value, "", zero), nil
	case "shortcut":
		return models.NewShortcutEvent(value, eventFeature, "", zero), nil
	}
	return models.TrackableEvent{}, fmt.Errorf("%w: unknown event kind %q (use feature, navigation or shortcut)", models.ErrInvalidEvent, kind)
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect and prune the event log",
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded events, oldest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Engine == nil {
			return errEngineNotInitialized
		}

		filter := models.EventFilter{SessionID: eventsSession, Limit: eventsLimit}
		if eventsSince != "" {
			since, err := parseSinceDuration(eventsSince)
			if err != nil {
				return fmt.Errorf("parsing --since: %w", err)
			}
			filter.Since = &since
		}
		if eventsType != "" {
			for _, t := range strings.Split(eventsType, ",") {
				filter.Types = append(filter.Types, models.EventType(strings.TrimSpace(t)))
			}
		}

		events, err := Engine.Events(filter)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if eventsJSON {
			if events == nil {
				events = []models.TrackableEvent{}
			}
			return printJSON(out, events)
		}
		printEvents(out, events)
		return nil
	},
}

var eventsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop events beyond the configured retention",
	Long: `Remove events older than events.retention_days, then the oldest events
beyond events.max_events.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Engine == nil {
			return errEngineNotInitialized
		}
		removed, err := Engine.PruneEvents()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d event(s).\n", removed)
		return nil
	},
}

func printEvents(w io.Writer, events []models.TrackableEvent) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events.")
		return
	}
	for _, e := range events {
		fmt.Fprintf(w, "%s  %-22s %s\n", e.Timestamp.Format(time.RFC3339), e.Type, eventDetail(e))
	}
	fmt.Fprintf(w, "\n%d event(s)\n", len(events))
}

func eventDetail(e models.TrackableEvent) string {
	p := e.Payload
	switch {
	case p.Suggestion != nil:
		return p.Suggestion.SuggestionID + " " + p.Suggestion.TriggerType
	case p.Feature != nil:
		return p.Feature.Name
	case p.Navigation != nil:
		if p.Navigation.From == "" {
			return p.Navigation.To
		}
		return p.Navigation.From + " -> " + p.Navigation.To
	case p.Shortcut != nil:
		return strings.TrimSpace(p.Shortcut.Keys + " " + p.Shortcut.Feature)
	}
	return e.SessionID
}

func init() {
	eventCmd.Flags().StringVar(&eventFrom, "from", "", "Origin of a navigation event")
	eventCmd.Flags().StringVar(&eventFeature, "feature", "", "Feature triggered by a shortcut")
	eventCmd.Flags().BoolVar(&eventStdin, "stdin", false, "Read the event as JSON from stdin")
	rootCmd.AddCommand(eventCmd)

	eventsListCmd.Flags().StringVar(&eventsSince, "since", "", "Only events in this window (e.g. 7d, 24h)")
	eventsListCmd.Flags().StringVar(&eventsType, "type", "", "Comma-separated event types")
	eventsListCmd.Flags().StringVar(&eventsSession, "session", "", "Only events of this session")
	eventsListCmd.Flags().IntVar(&eventsLimit, "limit", 0, "Keep only the most recent N events")
	eventsListCmd.Flags().BoolVar(&eventsJSON, "json", false, "Output events as JSON")
	eventsCmd.AddCommand(eventsListCmd, eventsPruneCmd)
	rootCmd.AddCommand(eventsCmd)
}
