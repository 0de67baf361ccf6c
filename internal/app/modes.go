package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Version is the reported build version.
const Version = "0.3.0"

// shutdownTimeout bounds the graceful HTTP server shutdown.
const shutdownTimeout = 10 * time.Second

// PollMode runs the headless poll loop with no API server. Useful when the
// tracker only feeds the sink or the Redis mirror.
func (a *App) PollMode(ctx context.Context, deps *Deps) error {
	a.logger.Info("running in poll mode",
		slog.Duration("interval", a.cfg.Poll.Interval.Duration),
	)

	return deps.Orchestrator.RunLoop(ctx, a.cfg.Poll.Interval.Duration)
}

// ServeMode runs the API server only. Ticks happen exclusively through the
// manual trigger endpoint, mirroring the dashboard's update button.
func (a *App) ServeMode(ctx context.Context, deps *Deps) error {
	a.logger.Info("running in serve mode")
	return a.runGroup(ctx, deps, false)
}

// FullMode runs the poll loop and the API server together. This is the
// normal live-dashboard deployment.
func (a *App) FullMode(ctx context.Context, deps *Deps) error {
	a.logger.Info("running in full mode")
	return a.runGroup(ctx, deps, a.cfg.Poll.AutoStart)
}

// runGroup supervises the mode's goroutines: the WebSocket hub, the HTTP
// server, and optionally the poll loop. Any non-context error cancels the
// group.
func (a *App) runGroup(ctx context.Context, deps *Deps, withPoller bool) error {
	g, ctx := errgroup.WithContext(ctx)

	if deps.WSHub != nil {
		g.Go(func() error {
			err := deps.WSHub.Run(ctx)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return err
		})
	}

	if deps.Server != nil {
		g.Go(func() error {
			return deps.Server.Start()
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return deps.Server.Shutdown(shutdownCtx)
		})
	}

	if withPoller {
		g.Go(func() error {
			err := deps.Orchestrator.RunLoop(ctx, a.cfg.Poll.Interval.Duration)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return err
		})
	}

	return g.Wait()
}
