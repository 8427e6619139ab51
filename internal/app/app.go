// Package app provides the top-level application lifecycle for the transfer
// alert service. It wires every dependency (token registry, price cache,
// notification channels, optional Redis, Postgres, S3, and Kafka backends)
// and runs the HTTP server until the context is cancelled.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/solwatch/internal/config"
)

// App is the root application object. It owns the configuration, logger, and a
// list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies and serves until ctx is cancelled. Call Close
// afterwards to release resources.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
		slog.Int("target_tokens", len(a.cfg.Watch.TargetTokens)),
		slog.Int("wallets", len(a.cfg.Watch.Wallets)),
		slog.String("reference", a.cfg.Reference.Symbol),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	a.logger.InfoContext(ctx, "dependencies ready",
		slog.Int("registry_tokens", deps.Registry.Len()),
		slog.Int("notifiers", deps.Notifier.Len()),
		slog.Bool("redis", deps.RateLimiter != nil),
		slog.Bool("websocket", deps.Hub != nil),
	)

	return a.Serve(ctx, deps)
}

// Close tears down all resources in reverse registration order. It is safe to
// call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
