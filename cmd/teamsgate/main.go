package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/astro-web3/teams-gate/internal/config"
	httptransport "github.com/astro-web3/teams-gate/internal/transport/http"
	"github.com/astro-web3/teams-gate/pkg/logger"
	"github.com/astro-web3/teams-gate/pkg/otel"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.MustLoad()

	srv, err := httptransport.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "starting teams gate",
			slog.String("addr", cfg.Server.Addr),
			slog.String("mode", cfg.Server.Mode),
			slog.String("version", cfg.Observability.ServiceVersion),
			slog.String("cache_backend", cfg.Membership.CacheBackend),
			slog.Duration("cache_ttl", cfg.CacheTTL()),
		)
		if listenErr := srv.ListenAndServe(); listenErr != nil && !errors.Is(listenErr, http.ErrServerClosed) {
			serverErr <- listenErr
		}
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		logger.InfoContext(context.Background(), "shutting down teams gate")
	case err := <-serverErr:
		logger.ErrorContext(context.Background(), "server failed, shutting down", logger.Err(err))
		exitCode = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorContext(shutdownCtx, "server forced to shutdown", logger.Err(err))
		exitCode = 1
	}
	if err := otel.Shutdown(shutdownCtx); err != nil {
		logger.ErrorContext(shutdownCtx, "failed to shutdown tracer provider", logger.Err(err))
	}

	if exitCode != 0 {
		cancel()
		stop()
		os.Exit(exitCode)
	}
}
