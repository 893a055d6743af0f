package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	axmcp "github.com/valter-silva-au/ax-engine/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  "Commands for running the ax MCP (Model Context Protocol) server.",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the ax MCP server on stdio",
	Long: `Start the ax MCP server on stdio transport.

The server exposes the engine as MCP tools that AI assistants can call:
get_snapshot, suggestion_feedback, scratchpad_write, scratchpad_read,
scratchpad_consume, get_metrics, get_alerts.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Engine == nil {
			return errEngineNotInitialized
		}

		srv := axmcp.NewServer(Engine, MetricsCalc, AlertEngine, logger(), appVersion)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		return nil
	},
}

func init() {
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}
