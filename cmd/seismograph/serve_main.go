package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tectoniq/seismograph/internal/cache"
	httpserver "github.com/tectoniq/seismograph/internal/interfaces/http"
	"github.com/tectoniq/seismograph/internal/interfaces/http/handlers"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the classification API over HTTP",
		Long: `Starts the JSON API with state, portfolio, simulation, and run-history
endpoints, a websocket state stream, /health, and Prometheus /metrics.`,
		RunE: runServe,
	}
	cmd.Flags().String("host", "", "Bind host (overrides config)")
	cmd.Flags().Int("port", 0, "Bind port (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	metrics := httpserver.NewMetricsRegistry()
	rt, err := buildRuntime(ctx, cmd, func(inner cache.Cache) cache.Cache {
		return metrics.InstrumentCache("state", inner)
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	serverConfig := httpserver.DefaultConfig()
	serverConfig.Host = rt.config.Server.Host
	serverConfig.Port = rt.config.Server.Port
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		serverConfig.Host = host
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		serverConfig.Port = port
	}

	h := handlers.NewHandlers(rt.service, rt.manager.Repository(), rt.manager.Health(), metrics)
	server, err := httpserver.NewServer(serverConfig, h, metrics)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("shutdown did not complete cleanly")
	}
	return nil
}
