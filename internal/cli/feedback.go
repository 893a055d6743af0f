package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/ax-engine/pkg/models"
)

var feedbackTrigger string

var feedbackCmd = &cobra.Command{
	Use:   "feedback <suggestion-id> <approve|dismiss>",
	Short: "Record approval or dismissal of a suggestion",
	Long: `Record the user's response to a suggestion.

The trigger type is looked up from a fresh snapshot unless --trigger is given,
which allows feedback on suggestions that no longer appear. The id must still
belong to that trigger type and an entity in the workspace.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Engine == nil {
			return errEngineNotInitialized
		}

		action := models.FeedbackAction(args[1])
		if _, ok := action.EventType(); !ok {
			return fmt.Errorf("invalid action %q (use approve or dismiss)", args[1])
		}

		event, err := Engine.RecordFeedback(args[0], action, feedbackTrigger)
		if err != nil {
			return fmt.Errorf("recording feedback: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s for %s (%s).\n", action, args[0], event.TriggerType())
		return nil
	},
}

func init() {
	feedbackCmd.Flags().StringVar(&feedbackTrigger, "trigger", "", "Trigger type of the suggestion (checked against the id, skips the snapshot lookup)")
	rootCmd.AddCommand(feedbackCmd)
}
