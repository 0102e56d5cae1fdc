package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/touchthesun/marvin-sub002/internal/config"
	"github.com/touchthesun/marvin-sub002/internal/observability"
	"github.com/touchthesun/marvin-sub002/internal/server"
	"github.com/touchthesun/marvin-sub002/internal/server/handlers"
	"github.com/touchthesun/marvin-sub002/pkg/eventlog"
	"github.com/touchthesun/marvin-sub002/pkg/gateway"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local dashboard API",
	Long: `Run the local dashboard API over the job engine.

The server polls the orchestrator in the background and exposes the
tracked job sets, plus submit, cancel, and retry operations, at
/api/v1/jobs.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "Listen host (overrides config)")
	serveCmd.Flags().Int("port", 0, "Listen port (overrides config)")
	serveCmd.Flags().String("event-log", "", "Append job lifecycle events to this JSONL file")
}

// gatewayHealthChecker probes the orchestrator by listing jobs.
type gatewayHealthChecker struct {
	gw gateway.Gateway
}

func (c gatewayHealthChecker) CheckHealth(ctx context.Context) error {
	_, err := c.gw.ListAll(ctx)
	return err
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.GetConfig()

	host := cfg.Server.Host
	if v, _ := cmd.Flags().GetString("host"); v != "" {
		host = v
	}
	port := cfg.Server.Port
	if v, _ := cmd.Flags().GetInt("port"); v != 0 {
		port = v
	}

	engine, err := newEngine()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Failed to initialize engine", err)
	}
	defer engine.Close()

	handlers.InitHealthManager(versionInfo.Version)
	if gw, gwErr := newGateway(); gwErr == nil {
		handlers.GetHealthManager().RegisterChecker("gateway", gatewayHealthChecker{gw: gw})
	}

	srv := server.New(engine, server.Options{
		Host:            host,
		Port:            port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Logger:          observability.NewComponentLogger("server"),
	})

	if logPath, _ := cmd.Flags().GetString("event-log"); logPath != "" {
		f, openErr := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if openErr != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to open event log", openErr)
		}
		defer func() { _ = f.Close() }()

		w := eventlog.NewJSONLWriter(f, "serve")
		detach := eventlog.Attach(engine, w)
		defer detach()
		defer func() { _ = w.Close() }()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine.StartPolling()
	defer engine.StopPolling()

	if err := srv.Start(ctx); err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Server failed", err)
	}
	return nil
}
