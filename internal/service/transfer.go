package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

// TransferService is the only writer of item ownership and of transactions.
type TransferService struct {
	store    domain.Store
	users    domain.UserDirectory
	locks    domain.LockManager
	pub      publisher
	notifier Notifier
	cfg      MarketConfig
	logger   *slog.Logger
}

// NewTransferService creates a TransferService. notifier may be nil.
func NewTransferService(
	store domain.Store,
	users domain.UserDirectory,
	locks domain.LockManager,
	bus domain.SignalBus,
	audit domain.AuditStore,
	notifier Notifier,
	cfg MarketConfig,
	logger *slog.Logger,
) *TransferService {
	logger = logger.With(slog.String("component", "transfer_service"))
	return &TransferService{
		store:    store,
		users:    users,
		locks:    locks,
		pub:      publisher{bus: bus, audit: audit, logger: logger},
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// DirectPurchase buys a listed item at its fixed price. The transaction and
// the ownership change commit together.
func (s *TransferService) DirectPurchase(ctx context.Context, itemID, buyerID int64) (domain.Transaction, error) {
	if err := requireUser(ctx, s.users, "buyer", buyerID); err != nil {
		return domain.Transaction{}, fmt.Errorf("transfer_service: direct purchase: %w", err)
	}

	unlock, err := s.cfg.acquire(ctx, s.locks, domain.ItemLockKey(itemID))
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transfer_service: direct purchase: %w", err)
	}
	defer unlock()

	var (
		txn  domain.Transaction
		item domain.Item
	)
	err = s.store.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		current, err := tx.Items().GetByID(ctx, itemID)
		if err != nil {
			return fmt.Errorf("item %d: %w", itemID, err)
		}
		price, ok := current.Price()
		if !ok {
			return fmt.Errorf("item %d is %s: %w", itemID, current.Status(), domain.ErrNotForSale)
		}
		if buyerID == current.OwnerID {
			return domain.ErrSelfPurchase
		}
		txn, item, err = s.recordTransfer(ctx, tx, current, buyerID, price, nil)
		return err
	})
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transfer_service: direct purchase: %w", err)
	}

	s.afterSale(ctx, txn, item)
	return txn, nil
}

// SettleAuction transfers a closed auction's item to its winning bidder.
// winnerID and finalPrice must match the highest admitted bid.
func (s *TransferService) SettleAuction(ctx context.Context, auctionID, winnerID int64, finalPrice decimal.Decimal) (domain.Settlement, error) {
	unlockAuction, err := s.cfg.acquire(ctx, s.locks, domain.AuctionLockKey(auctionID))
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("transfer_service: settle auction: %w", err)
	}
	defer unlockAuction()

	auc, err := s.store.Auctions().GetByID(ctx, auctionID)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("transfer_service: settle auction %d: %w", auctionID, err)
	}
	unlockItem, err := s.cfg.acquire(ctx, s.locks, domain.ItemLockKey(auc.ItemID))
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("transfer_service: settle auction: %w", err)
	}
	defer unlockItem()

	var out domain.Settlement
	err = s.store.Atomic(ctx, func(ctx context.Context, tx domain.Tx) error {
		auc, err := closedAuction(ctx, tx, auctionID, s.cfg.Now())
		if err != nil {
			return err
		}
		top, err := tx.Bids().Highest(ctx, auctionID)
		if err != nil {
			return fmt.Errorf("highest bid: %w", err)
		}
		if top.BidderID != winnerID || !top.Amount.Equal(finalPrice) {
			return fmt.Errorf("winner %d at %s is not the highest bid: %w",
				winnerID, finalPrice, domain.ErrInvalidInput)
		}
		out, err = s.settleAuctionTx(ctx, tx, auc, winnerID, finalPrice)
		return err
	})
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("transfer_service: settle auction: %w", err)
	}

	s.afterSale(ctx, *out.Transaction, out.Item)
	return out, nil
}

// settleAuctionTx performs the auction transfer inside an open unit of work.
func (s *TransferService) settleAuctionTx(ctx context.Context, tx domain.Tx, auc domain.Auction, winnerID int64, price decimal.Decimal) (domain.Settlement, error) {
	item, err := tx.Items().GetByID(ctx, auc.ItemID)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("item %d: %w", auc.ItemID, err)
	}
	if st, ok := item.State.(domain.Auctioning); !ok || st.AuctionID != auc.ID {
		return domain.Settlement{}, fmt.Errorf("item %d is %s: %w", item.ID, item.Status(), domain.ErrInvalidItemState)
	}
	if winnerID == item.OwnerID {
		return domain.Settlement{}, domain.ErrSelfPurchase
	}

	aucID := auc.ID
	txn, item, err := s.recordTransfer(ctx, tx, item, winnerID, price, &aucID)
	if err != nil {
		return domain.Settlement{}, err
	}
	txnID := txn.ID
	auc, err = tx.Auctions().MarkSettled(ctx, auc.ID, domain.AuctionOutcomeSold, &txnID, txn.CreatedAt)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("mark settled: %w", err)
	}
	return domain.Settlement{Auction: auc, Item: item, Transaction: &txn}, nil
}

// recordTransfer writes the transaction and moves the item to the buyer.
func (s *TransferService) recordTransfer(ctx context.Context, tx domain.Tx, item domain.Item, buyerID int64, price decimal.Decimal, auctionID *int64) (domain.Transaction, domain.Item, error) {
	at := s.cfg.Now()
	kind := domain.TransactionKindDirect
	if auctionID != nil {
		kind = domain.TransactionKindAuction
	}
	txn, err := tx.Transactions().Create(ctx, domain.Transaction{
		ItemID:    item.ID,
		AuctionID: auctionID,
		Kind:      kind,
		SellerID:  item.OwnerID,
		BuyerID:   buyerID,
		Price:     price,
		Currency:  s.cfg.Currency,
		TxHash:    domain.TransferHash(item.ID, item.OwnerID, buyerID, price, s.cfg.Currency, at),
		CreatedAt: at,
	})
	if err != nil {
		return domain.Transaction{}, domain.Item{}, fmt.Errorf("create transaction: %w", err)
	}
	item, err = tx.Items().TransferOwnership(ctx, item.ID, buyerID, domain.Sold{TransactionID: txn.ID})
	if err != nil {
		return domain.Transaction{}, domain.Item{}, fmt.Errorf("transfer item %d: %w", item.ID, err)
	}
	return txn, item, nil
}

func (s *TransferService) afterSale(ctx context.Context, txn domain.Transaction, item domain.Item) {
	evt := domain.Event{
		Type:    domain.EventItemSold,
		ItemID:  item.ID,
		At:      txn.CreatedAt,
		Payload: txn,
	}
	if txn.AuctionID != nil {
		evt.AuctionID = *txn.AuctionID
	}
	s.pub.emit(ctx, evt, domain.ItemChannel(item.ID))
	s.pub.record(ctx, "item.sold", map[string]any{
		"transaction_id": txn.ID,
		"item_id":        item.ID,
		"kind":           string(txn.Kind),
		"seller_id":      txn.SellerID,
		"buyer_id":       txn.BuyerID,
		"price":          txn.Price.String(),
		"currency":       txn.Currency,
		"tx_hash":        txn.TxHash,
	})
	if s.notifier != nil {
		msg := fmt.Sprintf("%s sold to user %d for %s %s (%s)",
			item.Name, txn.BuyerID, txn.Price, txn.Currency, txn.Kind)
		if err := s.notifier.Notify(ctx, domain.EventItemSold, "Item sold", msg); err != nil {
			s.logger.WarnContext(ctx, "notify sale failed", slog.String("error", err.Error()))
		}
	}
	s.logger.InfoContext(ctx, "item sold",
		slog.Int64("transaction_id", txn.ID),
		slog.Int64("item_id", item.ID),
		slog.Int64("buyer_id", txn.BuyerID),
		slog.String("price", txn.Price.String()),
		slog.String("kind", string(txn.Kind)),
	)
}

// GetTransaction returns one transaction.
func (s *TransferService) GetTransaction(ctx context.Context, id int64) (domain.Transaction, error) {
	txn, err := s.store.Transactions().GetByID(ctx, id)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transfer_service: get transaction %d: %w", id, err)
	}
	return txn, nil
}

// ListTransactionsByUser returns transactions where the user bought or sold,
// newest first.
func (s *TransferService) ListTransactionsByUser(ctx context.Context, userID int64, opts domain.ListOpts) ([]domain.Transaction, error) {
	txns, err := s.store.Transactions().ListByUser(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("transfer_service: list transactions for user %d: %w", userID, err)
	}
	return txns, nil
}

// closedAuction loads an auction that is ready to settle.
func closedAuction(ctx context.Context, tx domain.Tx, id int64, now time.Time) (domain.Auction, error) {
	auc, err := tx.Auctions().GetByID(ctx, id)
	if err != nil {
		return domain.Auction{}, fmt.Errorf("auction %d: %w", id, err)
	}
	if auc.Settled() {
		return domain.Auction{}, fmt.Errorf("auction %d: %w", id, domain.ErrAlreadySettled)
	}
	if auc.IsOpen(now) {
		return domain.Auction{}, fmt.Errorf("auction %d ends %s: %w", id, auc.EndTime.Format(time.RFC3339), domain.ErrAuctionOpen)
	}
	return auc, nil
}
