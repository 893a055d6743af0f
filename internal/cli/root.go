package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appCommit  = "none"
	appDate    = "unknown"
)

// SetVersionInfo sets the version information injected via ldflags.
func SetVersionInfo(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

var rootCmd = &cobra.Command{
	Use:   "ax",
	Short: "AX engine - attention and staleness scoring for a personal workspace",
	Long: `ax scores how stale the projects, notes, tasks, blockers and calls in a
workspace are, learns which suggestions the user acts on, and decides when it
is a good moment to surface them.

Every surface (this CLI, the HTTP API, the MCP server and the dashboard)
reads the same snapshot: staleness, relationships, user patterns, quiet
signals and ranked suggestions.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ax %s\ncommit: %s\nbuilt:  %s\n", appVersion, appCommit, appDate)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
