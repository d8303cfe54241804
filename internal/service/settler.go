package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

// Settler periodically settles auctions whose end time has passed.
type Settler struct {
	lifecycle *AuctionService
	auctions  domain.AuctionStore
	backoff   *Backoff
	interval  time.Duration
	batch     int
	logger    *slog.Logger
}

// NewSettler creates a Settler that sweeps every interval, settling at most
// batch auctions per sweep. Auctions that fail are retried after retryAfter.
func NewSettler(
	lifecycle *AuctionService,
	auctions domain.AuctionStore,
	interval time.Duration,
	batch int,
	retryAfter time.Duration,
	logger *slog.Logger,
) *Settler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batch <= 0 {
		batch = 100
	}
	if retryAfter <= 0 {
		retryAfter = time.Minute
	}
	return &Settler{
		lifecycle: lifecycle,
		auctions:  auctions,
		backoff:   NewBackoff(retryAfter),
		interval:  interval,
		batch:     batch,
		logger:    logger.With(slog.String("component", "settler")),
	}
}

// Run sweeps until ctx is cancelled. Call in a goroutine.
func (s *Settler) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "settler started", slog.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "settlement sweep failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				s.logger.InfoContext(ctx, "settlement sweep complete", slog.Int("settled", n))
			}
			s.backoff.Cleanup()
		}
	}
}

// Sweep settles every due auction, oldest end time first, and returns how
// many it settled. Auctions settled concurrently elsewhere are skipped.
func (s *Settler) Sweep(ctx context.Context) (int, error) {
	due, err := s.auctions.ListDue(ctx, s.lifecycle.cfg.Now(), s.batch)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, auc := range due {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		if !s.backoff.Ready(auc.ID) {
			continue
		}
		_, err := s.lifecycle.Settle(ctx, auc.ID)
		switch {
		case err == nil:
			settled++
			s.backoff.Forget(auc.ID)
		case errors.Is(err, domain.ErrAlreadySettled), errors.Is(err, domain.ErrAuctionOpen):
		default:
			s.backoff.Failed(auc.ID)
			s.logger.WarnContext(ctx, "settle auction failed",
				slog.Int64("auction_id", auc.ID),
				slog.String("kind", string(domain.KindOf(err))),
				slog.String("error", err.Error()),
			)
		}
	}
	return settled, nil
}
