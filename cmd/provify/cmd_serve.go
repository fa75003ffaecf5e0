package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"provify/internal/logging"
	"provify/internal/mcp"
	"provify/internal/wiring"
)

type serveFlags struct {
	metricsAddr string
}

func newServeCmd(g *globalFlags) *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		Long: `Starts an MCP server over stdin/stdout. Operators call the bug tools;
device agents poll next_task and answer with submit_result.

The server exits when its parent process goes away.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withEngine(cmd, func(ctx context.Context, e *wiring.Engine) error {
				return runServe(ctx, e, f)
			})
		},
	}
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (overrides observability.metrics_addr)")
	return cmd
}

func runServe(ctx context.Context, e *wiring.Engine, f *serveFlags) error {
	log := logging.New("serve")
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := e.MCPServer()
	defer srv.Shutdown()

	addr := f.metricsAddr
	if addr == "" {
		addr = e.Config.Observability.MetricsAddr
	}
	if addr != "" {
		hs := &http.Server{Addr: addr, Handler: metricsMux(e), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics listener", slog.String("addr", addr), slog.String("error", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			_ = hs.Shutdown(shutdownCtx)
		}()
		log.Info("serving metrics", slog.String("addr", addr))
	}

	mcp.WatchParent(ctx, cancel)

	log.Info("starting provify MCP server over stdio",
		slog.String("agent_mode", e.Config.Agent.Mode),
		slog.String("targets", e.Config.Targets.Source),
	)
	return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

func metricsMux(e *wiring.Engine) *http.ServeMux {
	m := http.NewServeMux()
	m.Handle("/metrics", e.Metrics.Handler())
	return m
}
