package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/tradeleague/internal/server"
	"github.com/alanyoungcy/tradeleague/internal/server/handler"
	"github.com/alanyoungcy/tradeleague/internal/server/ws"
)

// archiveSweepInterval is how often serve mode re-runs the history archiver.
const archiveSweepInterval = 24 * time.Hour

// ServeMode runs the full daemon: REST API, WebSocket hub with the event bus
// bridge, background reconciliation, and periodic history archival. It blocks
// until the context is cancelled, then drains in-flight settlements.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(deps.Verifier, deps.Bus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:       handler.NewHealthHandler(a.logger),
		Transactions: handler.NewTransactionHandler(deps.Manager, deps.TransactionStore, a.cfg.UserID, a.logger),
		Portfolio:    handler.NewPortfolioHandler(deps.Ledger, a.logger),
		Payments:     handler.NewPaymentHandler(deps.Manager, a.logger),
		Auth:         handler.NewAuthHandler(deps.Verifier, a.cfg.Auth.TokenTTL.Duration, a.logger),
		Status:       handler.NewStatusHandler(hub, deps.Manager, time.Now().UTC(), a.logger),
		Webhook:      handler.NewWebhookHandler(hub, a.logger),
	}

	// Catalog endpoints need the persistent stores.
	if deps.LeagueStore != nil {
		handlers.Leagues = handler.NewLeagueHandler(deps.LeagueStore, deps.Manager, a.logger)
	}
	if deps.VaultStore != nil {
		handlers.Vaults = handler.NewVaultHandler(deps.VaultStore, deps.Manager, a.logger)
	}
	if deps.MarketStore != nil {
		handlers.Markets = handler.NewMarketHandler(deps.MarketStore, deps.Manager, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	if deps.Reconciler != nil {
		g.Go(func() error {
			return deps.Reconciler.Run(ctx)
		})
	}

	if deps.Archiver != nil {
		g.Go(func() error {
			ticker := time.NewTicker(archiveSweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					if err := deps.Archiver.Run(ctx); err != nil {
						a.logger.ErrorContext(ctx, "history archival failed",
							slog.String("error", err.Error()),
						)
					}
				}
			}
		})
	}

	err := g.Wait()

	// Let in-flight settlement goroutines reach a terminal state before the
	// process exits.
	deps.Manager.Wait()

	return err
}

// ReconcileMode runs a single reconciliation sweep and exits.
func (a *App) ReconcileMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting reconcile mode")

	if deps.Reconciler == nil {
		return fmt.Errorf("app: reconcile mode requires postgres and reconcile.enabled")
	}
	return deps.Reconciler.Sweep(ctx)
}

// ArchiveMode runs a single history-archive pass and exits.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	if deps.Archiver == nil {
		return fmt.Errorf("app: archive mode requires postgres and s3 to be enabled")
	}
	return deps.Archiver.Run(ctx)
}
