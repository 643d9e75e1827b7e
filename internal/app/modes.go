package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/auctiondash/internal/domain"
	"github.com/alanyoungcy/auctiondash/internal/engine"
	"github.com/alanyoungcy/auctiondash/internal/notify"
	"github.com/alanyoungcy/auctiondash/internal/server"
	"github.com/alanyoungcy/auctiondash/internal/server/handler"
	"github.com/alanyoungcy/auctiondash/internal/server/ws"
)

// shutdownGrace bounds the HTTP server drain on shutdown.
const shutdownGrace = 10 * time.Second

// MonitorMode runs the feed, reconciliation engine, expiry clock, figure
// cache, and the read-only API. Liquidity submission endpoints answer 503.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")
	return a.runCore(ctx, deps)
}

// FullMode runs everything MonitorMode does plus the transaction
// orchestrator behind the liquidity submission endpoints.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode",
		slog.String("account", deps.Ledger.Account()),
	)
	return a.runCore(ctx, deps)
}

// runCore starts the shared goroutine set and blocks until the context is
// cancelled or a component fails.
func (a *App) runCore(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)
	startedAt := time.Now().UTC()

	// Engine changes fan out to the bus so WS clients see live updates.
	a.bridgeEngineToBus(ctx, deps)

	// Feed intake: the client reconnects forever, the engine consumes.
	g.Go(func() error {
		return deps.Feed.Run(ctx)
	})
	g.Go(func() error {
		return deps.Engine.Run(ctx, deps.Feed.Events())
	})
	g.Go(func() error {
		return deps.Clock.Run(ctx)
	})
	g.Go(func() error {
		return deps.Figures.Run(ctx)
	})
	g.Go(func() error {
		return a.watchFeedStatus(ctx, deps)
	})

	// HTTP + WebSocket API.
	if a.cfg.Server.Enabled {
		hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			Mode:         a.cfg.Mode,
			FeedStatus:   deps.Feed.Status,
			StartedAt:    startedAt,
			OnConnect:    deps.Figures.Acquire,
			OnDisconnect: deps.Figures.Release,
		})
		g.Go(func() error {
			return hub.Run(ctx)
		})

		handlers := server.Handlers{
			Health:    handler.NewHealthHandler(a.logger),
			Status:    handler.NewStatusHandler(a.cfg.Mode, deps.Feed.Status, startedAt),
			Auctions:  handler.NewAuctionHandler(deps.Engine, a.logger),
			Liquidity: handler.NewLiquidityHandler(deps.Figures, deps.Orchestrator, a.logger),
		}
		srv := server.NewServer(server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		}, handlers, hub, a.logger)

		g.Go(srv.Start)
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// watchFeedStatus publishes feed connection transitions on the "status"
// channel and raises operator alerts when the feed drops or recovers.
func (a *App) watchFeedStatus(ctx context.Context, deps *Dependencies) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	last := deps.Feed.Status()
	wasDown := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cur := deps.Feed.Status()
			if cur == last {
				continue
			}
			payload, err := json.Marshal(map[string]any{
				"mode":        a.cfg.Mode,
				"feed_status": cur,
			})
			if err == nil {
				_ = deps.SignalBus.Publish(ctx, "status", payload)
			}
			switch {
			case cur == domain.FeedClosed:
				wasDown = true
				_ = deps.Notifier.Notify(ctx, notify.EventFeedDown,
					"auction feed down", "lost the feed connection, reconnecting")
			case cur == domain.FeedOpen && wasDown:
				wasDown = false
				_ = deps.Notifier.Notify(ctx, notify.EventFeedUp,
					"auction feed recovered", "feed connection re-established")
			}
			last = cur
		}
	}
}

// bridgeEngineToBus republishes every engine change on the signal bus:
// auction mutations on "auctions", recomputed aggregates on "kpis".
func (a *App) bridgeEngineToBus(ctx context.Context, deps *Dependencies) {
	logger := a.logger.With(slog.String("component", "engine_bridge"))
	deps.Engine.Subscribe(func(change engine.Change) {
		payload, err := json.Marshal(change)
		if err != nil {
			return
		}
		if err := deps.SignalBus.Publish(ctx, "auctions", payload); err != nil {
			logger.WarnContext(ctx, "publish auctions failed", slog.String("error", err.Error()))
		}
		kpis, err := json.Marshal(change.KPIs)
		if err != nil {
			return
		}
		if err := deps.SignalBus.Publish(ctx, "kpis", kpis); err != nil {
			logger.WarnContext(ctx, "publish kpis failed", slog.String("error", err.Error()))
		}
	})
}
