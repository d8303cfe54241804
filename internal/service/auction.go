package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

// OpenAuctionRequest describes a new auction. SellerID, when set, must be
// the item's current owner.
type OpenAuctionRequest struct {
	ItemID        int64
	StartingPrice decimal.Decimal
	EndTime       time.Time
	SellerID      *int64
}

// AuctionService owns the item and auction lifecycle: minting, listing,
// opening auctions and settling them once they close.
type AuctionService struct {
	store     domain.Store
	users     domain.UserDirectory
	locks     domain.LockManager
	transfers *TransferService
	pub       publisher
	notifier  Notifier
	cfg       MarketConfig
	logger    *slog.Logger
}

// NewAuctionService creates an AuctionService. Winning settlements are
// delegated to transfers.
func NewAuctionService(
	store domain.Store,
	users domain.UserDirectory,
	locks domain.LockManager,
	transfers *TransferService,
	bus domain.SignalBus,
	audit domain.AuditStore,
	notifier Notifier,
	cfg MarketConfig,
	logger *slog.Logger,
) *AuctionService {
	logger = logger.With(slog.String("component", "auction_service"))
	return &AuctionService{
		store:     store,
		users:     users,
		locks:     locks,
		transfers: transfers,
		pub:       publisher{bus: bus, audit: audit, logger: logger},
		notifier:  notifier,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// MintItem creates an item owned by its creator.
func (s *AuctionService) MintItem(ctx context.Context, creatorID int64, in domain.NewItem) (domain.Item, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Item{}, fmt.Errorf("auction_service: mint: name is required: %w", domain.ErrInvalidInput)
	}
	if err := requireUser(ctx, s.users, "creator", creatorID); err != nil {
		return domain.Item{}, fmt.Errorf("auction_service: mint: %w", err)
	}
	if in.CollectionID != nil {
		// Collections are never deleted, so checking before the insert is enough.
		if _, err := s.store.Collections().GetByID(ctx, *in.CollectionID); err != nil {
			return domain.Item{}, fmt.Errorf("auction_service: mint: collection %d: %w", *in.CollectionID, err)
		}
	}

	now := s.cfg.Now()
	item, err := s.store.Items().Create(ctx, domain.Item{
		Name:         name,
		Description:  in.Description,
		ImageURL:     in.ImageURL,
		CreatorID:    creatorID,
		OwnerID:      creatorID,
		State:        domain.Minted{},
		CollectionID: in.CollectionID,
		Properties:   in.Properties,
		MintHash:     domain.MintHash(creatorID, name, now),
		CreatedAt:    now,
	})
	if err != nil {
		return domain.Item{}, fmt.Errorf("auction_service: mint: %w", err)
	}

	s.pub.emit(ctx, domain.Event{
		Type:    domain.EventItemMinted,
		ItemID:  item.ID,
		At:      now,
		Payload: item,
	}, domain.ItemChannel(item.ID))
	s.pub.record(ctx, "item.minted", map[string]any{
		"item_id":    item.ID,
		"creator_id": creatorID,
		"mint_hash":  item.MintHash,
	})
	s.logger.InfoContext(ctx, "item minted",
		slog.Int64("item_id", item.ID),
		slog.Int64("creator_id", creatorID),
	)
	return item, nil
}

// ListItem puts an item up for direct sale at price. A listed item may be
// relisted at a new price.
func (s *AuctionService) ListItem(ctx context.Context, itemID, ownerID int64, price decimal.Decimal) (domain.Item, error) {
	if !price.IsPositive() {
		return domain.Item{}, fmt.Errorf("auction_service: list item: price must be positive: %w", domain.ErrInvalidInput)
	}
	item, err := s.changeState(ctx, itemID, ownerID, func(cur domain.Item) (domain.ItemState, error) {
		switch cur.State.(type) {
		case domain.Minted, domain.Listed, nil:
			return domain.Listed{Price: price}, nil
		default:
			return nil, fmt.Errorf("item %d is %s: %w", itemID, cur.Status(), domain.ErrInvalidItemState)
		}
	})
	if err != nil {
		return domain.Item{}, fmt.Errorf("auction_service: list item: %w", err)
	}

	s.pub.emit(ctx, domain.Event{
		Type:    domain.EventItemListed,
		ItemID:  item.ID,
		At:      s.cfg.Now(),
		Payload: item,
	}, domain.ItemChannel(item.ID))
	s.pub.record(ctx, "item.listed", map[string]any{
		"item_id":  item.ID,
		"owner_id": ownerID,
		"price":    price.String(),
	})
	return item, nil
}

// UnlistItem withdraws a listed item from direct sale.
func (s *AuctionService) UnlistItem(ctx context.Context, itemID, ownerID int64) (domain.Item, error) {
	item, err := s.changeState(ctx, itemID, ownerID, func(cur domain.Item) (domain.ItemState, error) {
		if _, ok := cur.State.(domain.Listed); !ok {
			return nil, fmt.Errorf("item %d is %s: %w", itemID, cur.Status(), domain.ErrInvalidItemState)
		}
		return domain.Minted{}, nil
	})
	if err != nil {
		return domain.Item{}, fmt.Errorf("auction_service: unlist item: %w", err)
	}

	s.pub.emit(ctx, domain.Event{
		Type:    domain.EventItemUnlisted,
		ItemID:  item.ID,
		At:      s.cfg.Now(),
		Payload: item,
	}, domain.ItemChannel(item.ID))
	s.pub.record(ctx, "item.unlisted", map[string]any{
		"item_id":  item.ID,
		"owner_id": ownerID,
	})
	return item, nil
}

// changeState applies next to an item owned by ownerID under the item lock.
func (s *AuctionService) changeState(ctx context.Context, itemID, ownerID int64, next func(domain.Item) (domain.ItemState, error)) (domain.Item, error) {
	unlock, err := s.cfg.acquire(ctx, s.locks, domain.ItemLockKey(itemID))
	if err != nil {
		return domain.Item{}, err
	}
	defer unlock()

	var item domain.Item
	err = s.store.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		cur, err := tx.Items().GetByID(ctx, itemID)
		if err != nil {
			return fmt.Errorf("item %d: %w", itemID, err)
		}
		if cur.OwnerID != ownerID {
			return fmt.Errorf("item %d: user %d: %w", itemID, ownerID, domain.ErrNotOwner)
		}
		state, err := next(cur)
		if err != nil {
			return err
		}
		item, err = tx.Items().UpdateState(ctx, itemID, state)
		return err
	})
	return item, err
}

// OpenAuction starts a timed auction for an item. The item moves to
// auctioning and leaves direct sale; its listing price is kept so an
// auction that closes without bids can restore it.
func (s *AuctionService) OpenAuction(ctx context.Context, req OpenAuctionRequest) (domain.Auction, error) {
	now := s.cfg.Now()
	if !req.StartingPrice.IsPositive() {
		return domain.Auction{}, fmt.Errorf("auction_service: open auction: starting price must be positive: %w", domain.ErrInvalidInput)
	}
	if !req.EndTime.After(now) {
		return domain.Auction{}, fmt.Errorf("auction_service: open auction: end time must be in the future: %w", domain.ErrInvalidInput)
	}

	unlock, err := s.cfg.acquire(ctx, s.locks, domain.ItemLockKey(req.ItemID))
	if err != nil {
		return domain.Auction{}, fmt.Errorf("auction_service: open auction: %w", err)
	}
	defer unlock()

	var auc domain.Auction
	err = s.store.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		item, err := tx.Items().GetByID(ctx, req.ItemID)
		if err != nil {
			return fmt.Errorf("item %d: %w", req.ItemID, err)
		}
		if req.SellerID != nil && *req.SellerID != item.OwnerID {
			return fmt.Errorf("item %d: user %d: %w", item.ID, *req.SellerID, domain.ErrNotOwner)
		}
		var prior decimal.NullDecimal
		switch st := item.State.(type) {
		case domain.Minted, nil:
		case domain.Listed:
			prior = decimal.NewNullDecimal(st.Price)
		default:
			return fmt.Errorf("item %d is %s: %w", item.ID, item.Status(), domain.ErrInvalidItemState)
		}

		auc, err = tx.Auctions().Create(ctx, domain.Auction{
			ItemID:        item.ID,
			SellerID:      item.OwnerID,
			StartingPrice: req.StartingPrice,
			CurrentPrice:  req.StartingPrice,
			EndTime:       req.EndTime.UTC(),
			CreatedAt:     now,
		})
		if err != nil {
			return fmt.Errorf("create auction: %w", err)
		}
		_, err = tx.Items().UpdateState(ctx, item.ID, domain.Auctioning{AuctionID: auc.ID, PriorPrice: prior})
		return err
	})
	if err != nil {
		return domain.Auction{}, fmt.Errorf("auction_service: open auction: %w", err)
	}

	s.pub.emit(ctx, domain.Event{
		Type:      domain.EventAuctionOpened,
		ItemID:    auc.ItemID,
		AuctionID: auc.ID,
		At:        now,
		Payload:   auc,
	}, domain.AuctionChannel(auc.ID), domain.ItemChannel(auc.ItemID))
	s.pub.record(ctx, "auction.opened", map[string]any{
		"auction_id":     auc.ID,
		"item_id":        auc.ItemID,
		"seller_id":      auc.SellerID,
		"starting_price": auc.StartingPrice.String(),
		"end_time":       auc.EndTime.Format(time.RFC3339),
	})
	s.logger.InfoContext(ctx, "auction opened",
		slog.Int64("auction_id", auc.ID),
		slog.Int64("item_id", auc.ItemID),
		slog.String("starting_price", auc.StartingPrice.String()),
		slog.Time("end_time", auc.EndTime),
	)
	return auc, nil
}

// IsOpen reports whether the auction accepts bids right now.
func (s *AuctionService) IsOpen(auc domain.Auction) bool {
	return auc.IsOpen(s.cfg.Now())
}

// Status derives the auction's status at the current time.
func (s *AuctionService) Status(auc domain.Auction) domain.AuctionStatus {
	return auc.StatusAt(s.cfg.Now())
}

// advancePrice raises the auction's current price to amount. It must run
// under the auction lock; amount must beat the current price.
func (s *AuctionService) advancePrice(ctx context.Context, tx domain.Tx, auctionID int64, amount decimal.Decimal) (domain.Auction, error) {
	auc, err := tx.Auctions().GetByID(ctx, auctionID)
	if err != nil {
		return domain.Auction{}, fmt.Errorf("auction %d: %w", auctionID, err)
	}
	if !amount.GreaterThan(auc.CurrentPrice) {
		return domain.Auction{}, fmt.Errorf("auction %d: %s does not beat %s: %w",
			auctionID, amount, auc.CurrentPrice, domain.ErrStaleBid)
	}
	return tx.Auctions().UpdateCurrentPrice(ctx, auctionID, amount)
}

// Settle closes out an auction whose end time has passed. With bids, the
// item goes to the highest bidder at their amount. Without bids, the item
// returns to its pre-auction state. Settling twice fails with
// domain.ErrAlreadySettled.
func (s *AuctionService) Settle(ctx context.Context, auctionID int64) (domain.Settlement, error) {
	unlockAuction, err := s.cfg.acquire(ctx, s.locks, domain.AuctionLockKey(auctionID))
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("auction_service: settle: %w", err)
	}
	defer unlockAuction()

	head, err := s.store.Auctions().GetByID(ctx, auctionID)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("auction_service: settle auction %d: %w", auctionID, err)
	}
	unlockItem, err := s.cfg.acquire(ctx, s.locks, domain.ItemLockKey(head.ItemID))
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("auction_service: settle: %w", err)
	}
	defer unlockItem()

	var out domain.Settlement
	err = s.store.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		auc, err := closedAuction(ctx, tx, auctionID, s.cfg.Now())
		if err != nil {
			return err
		}
		top, err := tx.Bids().Highest(ctx, auctionID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			out, err = s.settleUnsold(ctx, tx, auc)
			return err
		case err != nil:
			return fmt.Errorf("highest bid: %w", err)
		}
		out, err = s.transfers.settleAuctionTx(ctx, tx, auc, top.BidderID, top.Amount)
		return err
	})
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("auction_service: settle: %w", err)
	}

	if out.Transaction != nil {
		s.transfers.afterSale(ctx, *out.Transaction, out.Item)
	}
	s.afterSettle(ctx, out)
	return out, nil
}

// settleUnsold restores the item's pre-auction state.
func (s *AuctionService) settleUnsold(ctx context.Context, tx domain.Tx, auc domain.Auction) (domain.Settlement, error) {
	item, err := tx.Items().GetByID(ctx, auc.ItemID)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("item %d: %w", auc.ItemID, err)
	}
	st, ok := item.State.(domain.Auctioning)
	if !ok || st.AuctionID != auc.ID {
		return domain.Settlement{}, fmt.Errorf("item %d is %s: %w", item.ID, item.Status(), domain.ErrInvalidItemState)
	}
	var restored domain.ItemState = domain.Minted{}
	if st.PriorPrice.Valid {
		restored = domain.Listed{Price: st.PriorPrice.Decimal}
	}
	item, err = tx.Items().UpdateState(ctx, item.ID, restored)
	if err != nil {
		return domain.Settlement{}, err
	}
	auc, err = tx.Auctions().MarkSettled(ctx, auc.ID, domain.AuctionOutcomeUnsold, nil, s.cfg.Now())
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("mark settled: %w", err)
	}
	return domain.Settlement{Auction: auc, Item: item}, nil
}

func (s *AuctionService) afterSettle(ctx context.Context, out domain.Settlement) {
	auc := out.Auction
	s.pub.emit(ctx, domain.Event{
		Type:      domain.EventAuctionSettled,
		ItemID:    auc.ItemID,
		AuctionID: auc.ID,
		At:        s.cfg.Now(),
		Payload:   out,
	}, domain.AuctionChannel(auc.ID), domain.ItemChannel(auc.ItemID))

	detail := map[string]any{
		"auction_id": auc.ID,
		"item_id":    auc.ItemID,
		"outcome":    string(auc.Outcome),
	}
	if out.Transaction != nil {
		detail["transaction_id"] = out.Transaction.ID
		detail["price"] = out.Transaction.Price.String()
	}
	s.pub.record(ctx, "auction.settled", detail)

	if s.notifier != nil && out.Transaction == nil {
		msg := fmt.Sprintf("Auction %d for %s closed without bids", auc.ID, out.Item.Name)
		if err := s.notifier.Notify(ctx, domain.EventAuctionSettled, "Auction unsold", msg); err != nil {
			s.logger.WarnContext(ctx, "notify settlement failed", slog.String("error", err.Error()))
		}
	}
	s.logger.InfoContext(ctx, "auction settled",
		slog.Int64("auction_id", auc.ID),
		slog.Int64("item_id", auc.ItemID),
		slog.String("outcome", string(auc.Outcome)),
	)
}

// GetItem returns one item.
func (s *AuctionService) GetItem(ctx context.Context, id int64) (domain.Item, error) {
	item, err := s.store.Items().GetByID(ctx, id)
	if err != nil {
		return domain.Item{}, fmt.Errorf("auction_service: get item %d: %w", id, err)
	}
	return item, nil
}

// ListItems returns items matching filter.
func (s *AuctionService) ListItems(ctx context.Context, filter domain.ItemFilter, opts domain.ListOpts) ([]domain.Item, error) {
	items, err := s.store.Items().List(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("auction_service: list items: %w", err)
	}
	return items, nil
}

// GetAuction returns one auction.
func (s *AuctionService) GetAuction(ctx context.Context, id int64) (domain.Auction, error) {
	auc, err := s.store.Auctions().GetByID(ctx, id)
	if err != nil {
		return domain.Auction{}, fmt.Errorf("auction_service: get auction %d: %w", id, err)
	}
	return auc, nil
}
