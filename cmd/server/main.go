package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"custodia/internal/platform/config"
	"custodia/internal/platform/httpserver"
	"custodia/internal/platform/logger"
)

// main loads configuration and runs the server until SIGINT or SIGTERM.
// Business logic lives in the internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("custodia stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	infra, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	app, err := buildApp(cfg, log, infra)
	if err != nil {
		return err
	}
	if err := app.bootstrap(ctx, cfg); err != nil {
		return err
	}

	srv := httpserver.New(cfg.Addr, app.router, cfg.RequestTimeout)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return app.security.Run(gctx) })
	if app.catalog != nil {
		g.Go(func() error { return app.catalog.Run(gctx) })
	}
	if app.outbox != nil {
		g.Go(func() error { return app.outbox.Run(gctx) })
	}
	g.Go(func() error {
		log.Info("starting custodia", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		log.Info("custodia stopped serving")
		return nil
	})
	return g.Wait()
}
