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
	scratchScope   string
	scratchProject string
	scratchKind    string
	scratchAll     bool
	scratchJSON    bool
)

var scratchpadCmd = &cobra.Command{
	Use:   "scratchpad",
	Short: "Read and write agent scratchpad entries",
	Long: `The scratchpad is append-only memory shared between agents and the engine.
Entries are scoped to the workspace (global) or a single project and are
marked consumed once acted on.`,
}

var scratchpadWriteCmd = &cobra.Command{
	Use:   "write <observation|pendingAction|learnedPreference> <content>...",
	Short: "Append a scratchpad entry",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Engine == nil {
			return errEngineNotInitialized
		}

		scope, err := scopeFromFlags()
		if err != nil {
			return err
		}
		content := strings.Join(args[1:], " ")

		entry, err := Engine.WriteScratchpad(scope, models.ScratchpadKind(args[0]), content)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%s, %s).\n", entry.ID, entry.Kind, entry.Scope)
		return nil
	},
}

var scratchpadReadCmd = &cobra.Command{
	Use:   "read",
	Short: "List scratchpad entries",
	Long: `List scratchpad entries, oldest first. Consumed entries are hidden unless
--all is given. Without --scope or --project every scope is listed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Engine == nil {
			return errEngineNotInitialized
		}

		query := models.ScratchpadQuery{
			Kind:            models.ScratchpadKind(scratchKind),
			IncludeConsumed: scratchAll,
		}
		if scratchScope != "" || scratchProject != "" {
			s, err := scopeFromFlags()
			if err != nil {
				return err
			}
			query.Scope = &s
		}

		entries, err := Engine.ReadScratchpad(query)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if scratchJSON {
			if entries == nil {
				entries = []models.ScratchpadEntry{}
			}
			return printJSON(out, entries)
		}
		printScratchpad(out, entries)
		return nil
	},
}

var scratchpadConsumeCmd = &cobra.Command{
	Use:   "consume <id>",
	Short: "Mark a scratchpad entry as consumed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if Engine == nil {
			return errEngineNotInitialized
		}

		entry, err := Engine.ConsumeScratchpad(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Consumed %s at %s.\n", entry.ID, entry.ConsumedAt.Format(time.RFC3339))
		return nil
	},
}

// scopeFromFlags treats a bare --project as project scope.
func scopeFromFlags() (models.ScratchpadScope, error) {
	scope := scratchScope
	if scope == "" && scratchProject != "" {
		scope = string(models.ScopeProject)
	}
	return models.ParseScratchpadScope(scope, scratchProject)
}

func printScratchpad(w io.Writer, entries []models.ScratchpadEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No scratchpad entries.")
		return
	}
	for _, e := range entries {
		status := ""
		if e.Consumed() {
			status = " (consumed)"
		}
		fmt.Fprintf(w, "%s  %-18s %-14s %s%s\n", e.ID, e.Kind, e.Scope, e.Content, status)
	}
}

func init() {
	for _, c := range []*cobra.Command{scratchpadWriteCmd, scratchpadReadCmd} {
		c.Flags().StringVar(&scratchScope, "scope", "", "Scope: global, project or project:<id>")
		c.Flags().StringVar(&scratchProject, "project", "", "Project id for project scope")
	}
	scratchpadReadCmd.Flags().StringVar(&scratchKind, "kind", "", "Only list entries of this kind")
	scratchpadReadCmd.Flags().BoolVar(&scratchAll, "all", false, "Include consumed entries")
	scratchpadReadCmd.Flags().BoolVar(&scratchJSON, "json", false, "Output entries as JSON")

	scratchpadCmd.AddCommand(scratchpadWriteCmd, scratchpadReadCmd, scratchpadConsumeCmd)
	rootCmd.AddCommand(scratchpadCmd)
}
