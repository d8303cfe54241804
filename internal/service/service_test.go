package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/adityakrmishra/BlockChainBazaar/internal/cache/local"
	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
	"github.com/adityakrmishra/BlockChainBazaar/internal/store/memory"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Notify(_ context.Context, event, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

type harness struct {
	clock     *clock
	store     *memory.Store
	bus       *local.SignalBus
	audit     *memory.AuditStore
	notifier  *recordingNotifier
	auctions  *AuctionService
	bids      *BidService
	transfers *TransferService
	colls     *CollectionService
	settler   *Settler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := memory.New(memory.WithClock(clk.Now))
	users := memory.NewUserDirectory(
		domain.User{ID: 1, DisplayName: "alice"},
		domain.User{ID: 2, DisplayName: "bob"},
		domain.User{ID: 3, DisplayName: "carol"},
	)
	locks := local.NewLockManager()
	bus := local.NewSignalBus(0)
	audit := memory.NewAuditStore()
	notifier := &recordingNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := MarketConfig{Currency: "ETH", Now: clk.Now}

	transfers := NewTransferService(store, users, locks, bus, audit, notifier, cfg, logger)
	auctions := NewAuctionService(store, users, locks, transfers, bus, audit, notifier, cfg, logger)
	bids := NewBidService(store, users, locks, local.NewRateLimiter(), auctions, bus, audit, cfg, logger)
	return &harness{
		clock:     clk,
		store:     store,
		bus:       bus,
		audit:     audit,
		notifier:  notifier,
		auctions:  auctions,
		bids:      bids,
		transfers: transfers,
		colls:     NewCollectionService(store, users, bus, audit, cfg, logger),
		settler:   NewSettler(auctions, store.Auctions(), time.Second, 10, time.Minute, logger),
	}
}

func (h *harness) mint(t *testing.T, owner int64) domain.Item {
	t.Helper()
	item, err := h.auctions.MintItem(context.Background(), owner, domain.NewItem{Name: "Genesis #1"})
	assert.NoError(t, err)
	return item
}

func (h *harness) openAuction(t *testing.T, itemID int64, start string) domain.Auction {
	t.Helper()
	auc, err := h.auctions.OpenAuction(context.Background(), OpenAuctionRequest{
		ItemID:        itemID,
		StartingPrice: decimal.RequireFromString(start),
		EndTime:       h.clock.Now().Add(time.Hour),
	})
	assert.NoError(t, err)
	return auc
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAuctionBidAndSettleScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.mint(t, 1)
	auc := h.openAuction(t, item.ID, "1.0")

	_, err := h.bids.PlaceBid(ctx, auc.ID, 2, d("1.2"))
	assert.NoError(t, err)
	got, _ := h.auctions.GetAuction(ctx, auc.ID)
	check.True(t, got.CurrentPrice.Equal(d("1.2")))

	_, err = h.bids.PlaceBid(ctx, auc.ID, 3, d("1.1"))
	check.True(t, errors.Is(err, domain.ErrBidTooLow))

	_, err = h.bids.PlaceBid(ctx, auc.ID, 3, d("1.5"))
	assert.NoError(t, err)

	_, err = h.auctions.Settle(ctx, auc.ID)
	check.True(t, errors.Is(err, domain.ErrAuctionOpen))

	h.clock.Advance(time.Hour)
	out, err := h.auctions.Settle(ctx, auc.ID)
	assert.NoError(t, err)
	assert.NotNil(t, out.Transaction)
	check.Equal(t, int64(3), out.Transaction.BuyerID)
	check.Equal(t, int64(1), out.Transaction.SellerID)
	check.True(t, out.Transaction.Price.Equal(d("1.5")))
	check.Equal(t, domain.TransactionKindAuction, out.Transaction.Kind)
	check.Equal(t, domain.AuctionOutcomeSold, out.Auction.Outcome)

	sold, err := h.auctions.GetItem(ctx, item.ID)
	assert.NoError(t, err)
	check.Equal(t, int64(3), sold.OwnerID)
	check.Equal(t, domain.ItemStatusSold, sold.Status())

	txns, err := h.transfers.ListTransactionsByUser(ctx, 3, domain.ListOpts{})
	assert.NoError(t, err)
	check.Equal(t, 1, len(txns))

	bids, err := h.bids.ListBids(ctx, auc.ID, domain.ListOpts{})
	assert.NoError(t, err)
	assert.Equal(t, 2, len(bids))
	check.True(t, bids[0].Amount.Equal(d("1.5")))
	check.True(t, bids[1].Amount.Equal(d("1.2")))

	_, err = h.auctions.Settle(ctx, auc.ID)
	check.True(t, errors.Is(err, domain.ErrAlreadySettled))
}

func TestDirectPurchaseScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.mint(t, 1)

	_, err := h.transfers.DirectPurchase(ctx, item.ID, 2)
	check.True(t, errors.Is(err, domain.ErrNotForSale))

	_, err = h.auctions.ListItem(ctx, item.ID, 1, d("2.0"))
	assert.NoError(t, err)

	_, err = h.transfers.DirectPurchase(ctx, item.ID, 1)
	check.True(t, errors.Is(err, domain.ErrSelfPurchase))

	txn, err := h.transfers.DirectPurchase(ctx, item.ID, 2)
	assert.NoError(t, err)
	check.Equal(t, domain.TransactionKindDirect, txn.Kind)
	check.True(t, txn.Price.Equal(d("2.0")))
	check.Equal(t, 66, len(txn.TxHash))

	got, _ := h.auctions.GetItem(ctx, item.ID)
	check.Equal(t, int64(2), got.OwnerID)
	check.Equal(t, domain.ItemStatusSold, got.Status())
	_, priced := got.Price()
	check.False(t, priced)

	_, err = h.transfers.DirectPurchase(ctx, item.ID, 3)
	check.True(t, errors.Is(err, domain.ErrNotForSale))
	check.Equal(t, []string{domain.EventItemSold}, h.notifier.events)
}

func TestPlaceBidRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.mint(t, 1)
	auc := h.openAuction(t, item.ID, "1.0")

	_, err := h.bids.PlaceBid(ctx, 99, 2, d("5"))
	check.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = h.bids.PlaceBid(ctx, auc.ID, 42, d("5"))
	check.True(t, errors.Is(err, domain.ErrNotFound))

	_, err = h.bids.PlaceBid(ctx, auc.ID, 1, d("5"))
	check.True(t, errors.Is(err, domain.ErrSelfBid))

	_, err = h.bids.PlaceBid(ctx, auc.ID, 2, d("1.0"))
	check.True(t, errors.Is(err, domain.ErrBidTooLow))

	h.clock.Advance(time.Hour)
	_, err = h.bids.PlaceBid(ctx, auc.ID, 2, d("1000"))
	check.True(t, errors.Is(err, domain.ErrAuctionClosed))

	bids, err := h.bids.ListBids(ctx, auc.ID, domain.ListOpts{})
	assert.NoError(t, err)
	check.Equal(t, 0, len(bids))
	got, _ := h.auctions.GetAuction(ctx, auc.ID)
	check.True(t, got.CurrentPrice.Equal(d("1.0")))
}

func TestOpenAuctionValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.mint(t, 1)

	_, err := h.auctions.OpenAuction(ctx, OpenAuctionRequest{
		ItemID: item.ID, StartingPrice: d("0"), EndTime: h.clock.Now().Add(time.Hour),
	})
	check.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = h.auctions.OpenAuction(ctx, OpenAuctionRequest{
		ItemID: item.ID, StartingPrice: d("1"), EndTime: h.clock.Now(),
	})
	check.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = h.auctions.OpenAuction(ctx, OpenAuctionRequest{
		ItemID: 99, StartingPrice: d("1"), EndTime: h.clock.Now().Add(time.Hour),
	})
	check.True(t, errors.Is(err, domain.ErrNotFound))

	seller := int64(2)
	_, err = h.auctions.OpenAuction(ctx, OpenAuctionRequest{
		ItemID: item.ID, StartingPrice: d("1"), EndTime: h.clock.Now().Add(time.Hour), SellerID: &seller,
	})
	check.True(t, errors.Is(err, domain.ErrNotOwner))

	h.openAuction(t, item.ID, "1")
	_, err = h.auctions.OpenAuction(ctx, OpenAuctionRequest{
		ItemID: item.ID, StartingPrice: d("1"), EndTime: h.clock.Now().Add(time.Hour),
	})
	check.True(t, errors.Is(err, domain.ErrInvalidItemState))

	_, err = h.transfers.DirectPurchase(ctx, item.ID, 2)
	check.True(t, errors.Is(err, domain.ErrNotForSale))
}

func TestSettleWithoutBidsRestoresListing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.mint(t, 1)
	_, err := h.auctions.ListItem(ctx, item.ID, 1, d("3"))
	assert.NoError(t, err)
	auc := h.openAuction(t, item.ID, "1")

	h.clock.Advance(2 * time.Hour)
	out, err := h.auctions.Settle(ctx, auc.ID)
	assert.NoError(t, err)
	check.Nil(t, out.Transaction)
	check.Equal(t, domain.AuctionOutcomeUnsold, out.Auction.Outcome)

	got, _ := h.auctions.GetItem(ctx, item.ID)
	check.Equal(t, int64(1), got.OwnerID)
	price, ok := got.Price()
	check.True(t, ok)
	check.True(t, price.Equal(d("3")))
}

func TestListAndUnlistRequireOwner(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.mint(t, 1)

	_, err := h.auctions.ListItem(ctx, item.ID, 2, d("1"))
	check.True(t, errors.Is(err, domain.ErrNotOwner))

	_, err = h.auctions.ListItem(ctx, item.ID, 1, d("-1"))
	check.True(t, errors.Is(err, domain.ErrInvalidInput))

	_, err = h.auctions.UnlistItem(ctx, item.ID, 1)
	check.True(t, errors.Is(err, domain.ErrInvalidItemState))

	_, err = h.auctions.ListItem(ctx, item.ID, 1, d("1"))
	assert.NoError(t, err)
	got, err := h.auctions.UnlistItem(ctx, item.ID, 1)
	assert.NoError(t, err)
	check.Equal(t, domain.ItemStatusMinted, got.Status())
}

func TestSettleAuctionRequiresHighestBid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.mint(t, 1)
	auc := h.openAuction(t, item.ID, "1")
	_, err := h.bids.PlaceBid(ctx, auc.ID, 2, d("2"))
	assert.NoError(t, err)
	h.clock.Advance(time.Hour)

	_, err = h.transfers.SettleAuction(ctx, auc.ID, 3, d("2"))
	check.True(t, errors.Is(err, domain.ErrInvalidInput))

	out, err := h.transfers.SettleAuction(ctx, auc.ID, 2, d("2"))
	assert.NoError(t, err)
	check.Equal(t, int64(2), out.Item.OwnerID)
}

func TestConcurrentBidsStayMonotonic(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.mint(t, 1)
	auc := h.openAuction(t, item.ID, "1")

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			bidder := int64(2 + i%2)
			_, err := h.bids.PlaceBid(ctx, auc.ID, bidder, decimal.NewFromInt(int64(2+i)))
			if err != nil && !errors.Is(err, domain.ErrBidTooLow) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	bids, err := h.bids.ListBids(ctx, auc.ID, domain.ListOpts{Limit: 100})
	assert.NoError(t, err)
	assert.True(t, len(bids) > 0)
	for i := 1; i < len(bids); i++ {
		check.True(t, bids[i-1].Amount.GreaterThan(bids[i].Amount))
	}
	got, _ := h.auctions.GetAuction(ctx, auc.ID)
	check.True(t, got.CurrentPrice.Equal(bids[0].Amount))
	check.True(t, got.CurrentPrice.Equal(d("41")))
}

func TestBidRateLimit(t *testing.T) {
	h := newHarness(t)
	h.bids.cfg.BidRateLimit = 1
	h.bids.cfg.BidRateWindow = time.Hour
	ctx := context.Background()
	item := h.mint(t, 1)
	auc := h.openAuction(t, item.ID, "1")

	_, err := h.bids.PlaceBid(ctx, auc.ID, 2, d("2"))
	assert.NoError(t, err)
	_, err = h.bids.PlaceBid(ctx, auc.ID, 2, d("3"))
	check.True(t, errors.Is(err, domain.ErrRateLimited))
	_, err = h.bids.PlaceBid(ctx, auc.ID, 3, d("3"))
	check.NoError(t, err)
}

func TestSettlerSweepsDueAuctions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	a := h.openAuction(t, h.mint(t, 1).ID, "1")
	b := h.openAuction(t, h.mint(t, 1).ID, "1")
	_, err := h.bids.PlaceBid(ctx, a.ID, 2, d("4"))
	assert.NoError(t, err)

	n, err := h.settler.Sweep(ctx)
	assert.NoError(t, err)
	check.Equal(t, 0, n)

	h.clock.Advance(time.Hour)
	n, err = h.settler.Sweep(ctx)
	assert.NoError(t, err)
	check.Equal(t, 2, n)

	got, _ := h.auctions.GetAuction(ctx, b.ID)
	check.Equal(t, domain.AuctionOutcomeUnsold, got.Outcome)

	n, err = h.settler.Sweep(ctx)
	assert.NoError(t, err)
	check.Equal(t, 0, n)
}

func TestEventsPublishedAfterCommit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	item := h.mint(t, 1)
	auc := h.openAuction(t, item.ID, "1")
	_, err := h.bids.PlaceBid(ctx, auc.ID, 2, d("2"))
	assert.NoError(t, err)
	_, err = h.bids.PlaceBid(ctx, auc.ID, 3, d("2"))
	check.Error(t, err)

	msgs, err := h.bus.StreamRead(ctx, domain.StreamMarketEvents, "0", 10)
	assert.NoError(t, err)
	check.Equal(t, 3, len(msgs))

	entries, err := h.audit.List(ctx, domain.ListOpts{})
	assert.NoError(t, err)
	assert.Equal(t, 3, len(entries))
	check.Equal(t, "bid.placed", entries[0].Event)
}

func TestCollectionsGroupMintedItems(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.colls.CreateCollection(ctx, 1, domain.NewCollection{Name: "  "})
	check.True(t, errors.Is(err, domain.ErrInvalidInput))
	_, err = h.colls.CreateCollection(ctx, 42, domain.NewCollection{Name: "Ghost"})
	check.True(t, errors.Is(err, domain.ErrNotFound))

	art, err := h.colls.CreateCollection(ctx, 1, domain.NewCollection{Name: "Art", BannerURL: "https://img/art.png"})
	assert.NoError(t, err)
	check.Equal(t, int64(1), art.CreatorID)

	missing := int64(99)
	_, err = h.auctions.MintItem(ctx, 1, domain.NewItem{Name: "Lost", CollectionID: &missing})
	check.True(t, errors.Is(err, domain.ErrNotFound))
	all, err := h.auctions.ListItems(ctx, domain.ItemFilter{}, domain.ListOpts{})
	assert.NoError(t, err)
	check.Equal(t, 0, len(all))

	a, err := h.auctions.MintItem(ctx, 1, domain.NewItem{Name: "A", CollectionID: &art.ID})
	assert.NoError(t, err)
	b, err := h.auctions.MintItem(ctx, 1, domain.NewItem{Name: "B", CollectionID: &art.ID})
	assert.NoError(t, err)
	h.mint(t, 1)

	_, err = h.auctions.ListItem(ctx, a.ID, 1, d("3"))
	assert.NoError(t, err)
	_, err = h.auctions.ListItem(ctx, b.ID, 1, d("2.5"))
	assert.NoError(t, err)

	stats, err := h.colls.GetCollection(ctx, art.ID)
	assert.NoError(t, err)
	check.Equal(t, 2, stats.ItemCount)
	check.True(t, stats.FloorPrice.Valid)
	check.True(t, stats.FloorPrice.Decimal.Equal(d("2.5")))

	items, err := h.colls.ListCollectionItems(ctx, art.ID, domain.ListOpts{})
	assert.NoError(t, err)
	check.Equal(t, 2, len(items))
	_, err = h.colls.ListCollectionItems(ctx, 99, domain.ListOpts{})
	check.True(t, errors.Is(err, domain.ErrNotFound))

	creator := int64(2)
	none, err := h.colls.ListCollections(ctx, domain.CollectionFilter{CreatorID: &creator}, domain.ListOpts{})
	assert.NoError(t, err)
	check.Equal(t, 0, len(none))
}

func TestRecordsCarryServiceClock(t *testing.T) {
	ctx := context.Background()
	serviceNow := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	store := memory.New(memory.WithClock(func() time.Time {
		return time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	}))
	users := memory.NewUserDirectory(domain.User{ID: 1}, domain.User{ID: 2})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := MarketConfig{Now: func() time.Time { return serviceNow }}
	locks := local.NewLockManager()

	transfers := NewTransferService(store, users, locks, nil, nil, nil, cfg, logger)
	auctions := NewAuctionService(store, users, locks, transfers, nil, nil, nil, cfg, logger)
	bids := NewBidService(store, users, locks, nil, auctions, nil, nil, cfg, logger)

	item, err := auctions.MintItem(ctx, 1, domain.NewItem{Name: "Clocked"})
	assert.NoError(t, err)
	check.Equal(t, serviceNow, item.CreatedAt)

	auc, err := auctions.OpenAuction(ctx, OpenAuctionRequest{
		ItemID:        item.ID,
		StartingPrice: d("1"),
		EndTime:       serviceNow.Add(time.Hour),
	})
	assert.NoError(t, err)
	check.Equal(t, serviceNow, auc.CreatedAt)

	bid, err := bids.PlaceBid(ctx, auc.ID, 2, d("2"))
	assert.NoError(t, err)
	check.Equal(t, serviceNow, bid.CreatedAt)
}
