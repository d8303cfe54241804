package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
	"github.com/adityakrmishra/BlockChainBazaar/internal/server"
	"github.com/adityakrmishra/BlockChainBazaar/internal/server/handler"
	"github.com/adityakrmishra/BlockChainBazaar/internal/server/ws"
	"github.com/adityakrmishra/BlockChainBazaar/internal/service"
)

// services holds the marketplace services built over one set of
// dependencies.
type services struct {
	colls     *service.CollectionService
	transfers *service.TransferService
	auctions  *service.AuctionService
	bids      *service.BidService
}

func (a *App) buildServices(deps *Dependencies) services {
	m := a.cfg.Market
	cfg := service.MarketConfig{
		Currency:      m.Currency,
		LockTTL:       m.LockTTL.Duration,
		LockTimeout:   m.LockTimeout.Duration,
		BidRateLimit:  m.BidRateLimit,
		BidRateWindow: m.BidRateWindow.Duration,
	}
	var notifier service.Notifier
	if deps.Notifier != nil && deps.Notifier.Enabled() {
		notifier = deps.Notifier
	}

	transfers := service.NewTransferService(deps.Store, deps.Users, deps.Locks, deps.SignalBus, deps.Audit, notifier, cfg, a.logger)
	auctions := service.NewAuctionService(deps.Store, deps.Users, deps.Locks, transfers, deps.SignalBus, deps.Audit, notifier, cfg, a.logger)
	bids := service.NewBidService(deps.Store, deps.Users, deps.Locks, deps.RateLimiter, auctions, deps.SignalBus, deps.Audit, cfg, a.logger)
	colls := service.NewCollectionService(deps.Store, deps.Users, deps.SignalBus, deps.Audit, cfg, a.logger)
	return services{colls: colls, transfers: transfers, auctions: auctions, bids: bids}
}

// ServerMode serves the HTTP API and the live feed, and settles ended
// auctions in the background.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")
	g, ctx := errgroup.WithContext(ctx)
	svc := a.buildServices(deps)

	a.startHTTPServer(ctx, g, deps, svc)
	a.startSettler(ctx, g, deps, svc)

	return g.Wait()
}

// SettlerMode only sweeps for ended auctions. It is meant to run beside
// server processes that share a postgres store.
func (a *App) SettlerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting settler mode")
	g, ctx := errgroup.WithContext(ctx)
	svc := a.buildServices(deps)

	a.startSettler(ctx, g, deps, svc)

	return g.Wait()
}

// ArchiveMode only copies old history to object storage.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")
	if deps.Archiver == nil {
		return errors.New("app: archive mode requires s3 configuration")
	}
	g, ctx := errgroup.WithContext(ctx)

	a.startArchiver(ctx, g, deps)

	return g.Wait()
}

// FullMode runs everything in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	g, ctx := errgroup.WithContext(ctx)
	svc := a.buildServices(deps)

	a.startHTTPServer(ctx, g, deps, svc)
	a.startSettler(ctx, g, deps, svc)
	if deps.Archiver != nil {
		a.startArchiver(ctx, g, deps)
	}

	return g.Wait()
}

// startHTTPServer adds the API server and the WebSocket hub to g. The server
// is shut down gracefully when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc services) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(deps.HealthChecks, a.logger),
		Collections: handler.NewCollectionHandler(svc.colls, a.logger),
		Items:       handler.NewItemHandler(svc.auctions, svc.transfers, a.logger),
		Auctions:    handler.NewAuctionHandler(svc.auctions, a.logger),
		Bids:        handler.NewBidHandler(svc.bids, a.logger),
		Users:       handler.NewUserHandler(deps.Users, svc.transfers, svc.bids, a.logger),
		Txns:        handler.NewTransactionHandler(svc.transfers, a.logger),
	}
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)))
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startSettler adds the settlement sweeper to g.
func (a *App) startSettler(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc services) {
	m := a.cfg.Market
	settler := service.NewSettler(
		svc.auctions,
		deps.Store.Auctions(),
		m.SettleInterval.Duration,
		m.SettleBatch,
		m.SettleRetry.Duration,
		a.logger,
	)
	g.Go(func() error {
		return settler.Run(ctx)
	})
}

// startArchiver adds a loop to g that archives history older than the
// retention window, once at startup and then every archive interval.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour
	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	g.Go(func() error {
		for _, kind := range []string{"transactions", "bids"} {
			infos, err := deps.Archiver.ListArchives(ctx, kind)
			if err != nil {
				a.logger.WarnContext(ctx, "list archives failed",
					slog.String("kind", kind),
					slog.String("error", err.Error()),
				)
				continue
			}
			a.logger.InfoContext(ctx, "existing archives",
				slog.String("kind", kind),
				slog.Int("objects", len(infos)),
			)
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			a.runArchive(ctx, deps.Archiver, time.Now().UTC().Add(-retention))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	})
}

// runArchive archives both kinds of history. Failures are logged and retried
// on the next tick.
func (a *App) runArchive(ctx context.Context, archiver domain.Archiver, cutoff time.Time) {
	txns, err := archiver.ArchiveTransactions(ctx, cutoff)
	if err != nil {
		a.logger.ErrorContext(ctx, "archive transactions failed", slog.String("error", err.Error()))
	}
	bids, err := archiver.ArchiveBids(ctx, cutoff)
	if err != nil {
		a.logger.ErrorContext(ctx, "archive bids failed", slog.String("error", err.Error()))
	}
	a.logger.InfoContext(ctx, "archive run complete",
		slog.Time("cutoff", cutoff),
		slog.Int64("transactions", txns),
		slog.Int64("bids", bids),
	)
}
