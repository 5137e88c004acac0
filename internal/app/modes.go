package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/oddsexchange/internal/pipeline"
	"github.com/alanyoungcy/oddsexchange/internal/server"
	"github.com/alanyoungcy/oddsexchange/internal/server/handler"
	"github.com/alanyoungcy/oddsexchange/internal/server/ws"
)

const shutdownTimeout = 10 * time.Second

// ServerMode serves the HTTP API and the WebSocket event feed.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// ArchiveMode runs only the archive job, for a separate worker process
// sharing the durable store.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startArchiver(ctx, g, deps)
	return g.Wait()
}

// FullMode serves the API and, when enabled, runs the archive job in the
// same process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	if a.cfg.RunsArchiver() {
		a.startArchiver(ctx, g, deps)
	}
	return g.Wait()
}

func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	archiver := pipeline.NewArchiver(deps.Exchange, deps.GameArchiver, deps.LockManager, a.cfg.Archive.Batch, a.logger)
	g.Go(func() error {
		return archiver.RunCron(ctx, a.cfg.Archive.Cron)
	})
}

func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	ex := deps.Exchange
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(deps.HealthChecks, a.logger),
		Games:  handler.NewGameHandler(ex, a.logger),
		Pools:  handler.NewPoolHandler(ex, a.logger),
		Bets:   handler.NewBetHandler(ex, a.logger),
		Redeem: handler.NewRedeemHandler(ex, a.logger),
		Cash:   handler.NewCashHandler(ex, a.logger),
		Events: handler.NewEventHandler(deps.SignalBus, a.logger),
	}
	if deps.Archives != nil {
		handlers.Archives = handler.NewArchiveHandler(ex, deps.Archives, a.logger)
	}

	hub := ws.NewHub(deps.SignalBus, a.cfg.Server.CORSOrigins, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:           a.cfg.Server.Port,
		CORSOrigins:    a.cfg.Server.CORSOrigins,
		APIKeys:        a.cfg.Server.APIKeys,
		RateLimit:      a.cfg.Server.RateLimit,
		RateWindow:     a.cfg.Server.RateWindow.Duration,
		IdempotencyTTL: a.cfg.Server.IdempotencyTTL.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http server shutdown failed", slog.String("error", err.Error()))
		}
		return nil
	})
}
