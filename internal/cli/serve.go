package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/valter-silva-au/ax-engine/internal/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API. The address defaults to server.addr from .axconfig.

Routes live under /v1 (snapshot, suggestion feedback, scratchpad, events and
sessions); /healthz and the Prometheus /metrics endpoint sit at the root.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Engine == nil {
			return errEngineNotInitialized
		}

		addr := serveAddr
		if addr == "" {
			addr = ServerAddr
		}
		if addr == "" {
			addr = "127.0.0.1:7420"
		}

		srv := api.NewServer(Engine, logger(), Gatherer)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := srv.ListenAndServe(ctx, addr); err != nil {
			return fmt.Errorf("running HTTP server: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}
