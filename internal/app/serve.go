package app

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/solwatch/internal/server"
	"github.com/alanyoungcy/solwatch/internal/server/handler"
)

// Serve starts the HTTP server and, when enabled, the WebSocket hub, and
// blocks until ctx is cancelled or one of them fails.
func (a *App) Serve(ctx context.Context, deps *Dependencies) error {
	srv := a.newServer(deps)
	g, ctx := errgroup.WithContext(ctx)

	if deps.Hub != nil {
		g.Go(func() error {
			if err := deps.Hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout.Duration)
		defer cancel()
		a.logger.InfoContext(shutCtx, "HTTP server shutting down")
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

func (a *App) newServer(deps *Dependencies) *server.Server {
	h := server.Handlers{
		Health:  handler.NewHealthHandler(deps.Checks, a.logger),
		Webhook: handler.NewWebhookHandler(deps.Pipeline, a.cfg.Server.MaxBodyBytes, a.logger),
		Hub:     deps.Hub,
	}
	if deps.Metrics != nil {
		h.Metrics = deps.Metrics.Handler()
	}

	a.logger.Info("routes registered",
		slog.Bool("metrics", h.Metrics != nil),
		slog.Bool("websocket", h.Hub != nil),
		slog.Bool("rate_limit", deps.RateLimiter != nil && a.cfg.Server.RateLimit > 0),
	)

	return server.NewServer(server.Config{
		Host:        a.cfg.Server.Host,
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, h, deps.RateLimiter, a.logger)
}
