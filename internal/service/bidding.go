package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

// BidService admits bids against open auctions.
type BidService struct {
	store     domain.Store
	users     domain.UserDirectory
	locks     domain.LockManager
	limiter   domain.RateLimiter
	lifecycle *AuctionService
	pub       publisher
	cfg       MarketConfig
	logger    *slog.Logger
}

// NewBidService creates a BidService. limiter may be nil to disable
// per-bidder rate limiting.
func NewBidService(
	store domain.Store,
	users domain.UserDirectory,
	locks domain.LockManager,
	limiter domain.RateLimiter,
	lifecycle *AuctionService,
	bus domain.SignalBus,
	audit domain.AuditStore,
	cfg MarketConfig,
	logger *slog.Logger,
) *BidService {
	logger = logger.With(slog.String("component", "bid_service"))
	return &BidService{
		store:     store,
		users:     users,
		locks:     locks,
		limiter:   limiter,
		lifecycle: lifecycle,
		pub:       publisher{bus: bus, audit: audit, logger: logger},
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// PlaceBid admits a bid if the auction is open, the bidder is not the
// seller and amount beats the current price. The bid record and the new
// current price commit together.
func (s *BidService) PlaceBid(ctx context.Context, auctionID, bidderID int64, amount decimal.Decimal) (domain.Bid, error) {
	if err := requireUser(ctx, s.users, "bidder", bidderID); err != nil {
		return domain.Bid{}, fmt.Errorf("bid_service: place bid: %w", err)
	}
	if err := s.checkRate(ctx, bidderID); err != nil {
		return domain.Bid{}, fmt.Errorf("bid_service: place bid: %w", err)
	}

	unlock, err := s.cfg.acquire(ctx, s.locks, domain.AuctionLockKey(auctionID))
	if err != nil {
		return domain.Bid{}, fmt.Errorf("bid_service: place bid: %w", err)
	}
	defer unlock()

	var (
		bid domain.Bid
		auc domain.Auction
	)
	err = s.store.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		cur, err := tx.Auctions().GetByID(ctx, auctionID)
		if err != nil {
			return fmt.Errorf("auction %d: %w", auctionID, err)
		}
		if cur.Settled() || !s.lifecycle.IsOpen(cur) {
			return fmt.Errorf("auction %d: %w", auctionID, domain.ErrAuctionClosed)
		}
		item, err := tx.Items().GetByID(ctx, cur.ItemID)
		if err != nil {
			return fmt.Errorf("item %d: %w", cur.ItemID, err)
		}
		if bidderID == item.OwnerID {
			return domain.ErrSelfBid
		}
		if !amount.GreaterThan(cur.CurrentPrice) {
			return fmt.Errorf("auction %d: %s does not beat %s: %w",
				auctionID, amount, cur.CurrentPrice, domain.ErrBidTooLow)
		}

		bid, err = tx.Bids().Create(ctx, domain.Bid{
			AuctionID: auctionID,
			BidderID:  bidderID,
			Amount:    amount,
			Currency:  s.cfg.Currency,
			CreatedAt: s.cfg.Now(),
		})
		if err != nil {
			return fmt.Errorf("create bid: %w", err)
		}
		auc, err = s.lifecycle.advancePrice(ctx, tx, auctionID, amount)
		return err
	})
	if err != nil {
		return domain.Bid{}, fmt.Errorf("bid_service: place bid: %w", err)
	}

	s.pub.emit(ctx, domain.Event{
		Type:      domain.EventBidPlaced,
		ItemID:    auc.ItemID,
		AuctionID: auc.ID,
		At:        bid.CreatedAt,
		Payload:   bid,
	}, domain.AuctionChannel(auc.ID), domain.ItemChannel(auc.ItemID))
	s.pub.record(ctx, "bid.placed", map[string]any{
		"bid_id":     bid.ID,
		"auction_id": auc.ID,
		"bidder_id":  bidderID,
		"amount":     amount.String(),
	})
	s.logger.InfoContext(ctx, "bid placed",
		slog.Int64("bid_id", bid.ID),
		slog.Int64("auction_id", auc.ID),
		slog.Int64("bidder_id", bidderID),
		slog.String("amount", amount.String()),
	)
	return bid, nil
}

// checkRate applies the per-bidder limit. Limiter failures let the bid
// through.
func (s *BidService) checkRate(ctx context.Context, bidderID int64) error {
	if s.limiter == nil || s.cfg.BidRateLimit <= 0 {
		return nil
	}
	key := "bids:" + strconv.FormatInt(bidderID, 10)
	allowed, err := s.limiter.Allow(ctx, key, s.cfg.BidRateLimit, s.cfg.BidRateWindow)
	if err != nil {
		s.logger.WarnContext(ctx, "rate limiter unavailable",
			slog.Int64("bidder_id", bidderID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if !allowed {
		return fmt.Errorf("bidder %d: %w", bidderID, domain.ErrRateLimited)
	}
	return nil
}

// ListBids returns an auction's bids, most recent first.
func (s *BidService) ListBids(ctx context.Context, auctionID int64, opts domain.ListOpts) ([]domain.Bid, error) {
	if _, err := s.store.Auctions().GetByID(ctx, auctionID); err != nil {
		return nil, fmt.Errorf("bid_service: list bids for auction %d: %w", auctionID, err)
	}
	bids, err := s.store.Bids().ListByAuction(ctx, auctionID, opts)
	if err != nil {
		return nil, fmt.Errorf("bid_service: list bids for auction %d: %w", auctionID, err)
	}
	return bids, nil
}

// ListBidsByBidder returns a user's bids across auctions, most recent first.
func (s *BidService) ListBidsByBidder(ctx context.Context, bidderID int64, opts domain.ListOpts) ([]domain.Bid, error) {
	bids, err := s.store.Bids().ListByBidder(ctx, bidderID, opts)
	if err != nil {
		return nil, fmt.Errorf("bid_service: list bids for bidder %d: %w", bidderID, err)
	}
	return bids, nil
}
