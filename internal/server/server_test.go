package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/adityakrmishra/BlockChainBazaar/internal/cache/local"
	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
	"github.com/adityakrmishra/BlockChainBazaar/internal/server/handler"
	"github.com/adityakrmishra/BlockChainBazaar/internal/service"
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

type testAPI struct {
	t     *testing.T
	clock *clock
	h     http.Handler
}

func newTestAPI(t *testing.T, cfg Config) *testAPI {
	t.Helper()
	clk := &clock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New(memory.WithClock(clk.Now))
	users := memory.NewUserDirectory(
		domain.User{ID: 1, DisplayName: "alice"},
		domain.User{ID: 2, DisplayName: "bob"},
		domain.User{ID: 3, DisplayName: "carol"},
	)
	locks := local.NewLockManager()
	bus := local.NewSignalBus(100)
	audit := memory.NewAuditStore()
	limiter := local.NewRateLimiter()
	mcfg := service.MarketConfig{Currency: "ETH", Now: clk.Now}

	transfers := service.NewTransferService(store, users, locks, bus, audit, nil, mcfg, logger)
	auctions := service.NewAuctionService(store, users, locks, transfers, bus, audit, nil, mcfg, logger)
	bids := service.NewBidService(store, users, locks, nil, auctions, bus, audit, mcfg, logger)
	colls := service.NewCollectionService(store, users, bus, audit, mcfg, logger)

	handlers := Handlers{
		Health:      handler.NewHealthHandler(nil, logger),
		Collections: handler.NewCollectionHandler(colls, logger),
		Items:       handler.NewItemHandler(auctions, transfers, logger),
		Auctions:    handler.NewAuctionHandler(auctions, logger),
		Bids:        handler.NewBidHandler(bids, logger),
		Users:       handler.NewUserHandler(users, transfers, bids, logger),
		Txns:        handler.NewTransactionHandler(transfers, logger),
	}
	return &testAPI{t: t, clock: clk, h: Routes(cfg, handlers, nil, limiter, logger)}
}

func (a *testAPI) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	a.t.Helper()
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		assert.NoError(a.t, err)
		rdr = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rdr)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

type errBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func expectKind(t *testing.T, rec *httptest.ResponseRecorder, status int, kind domain.ErrorKind) {
	t.Helper()
	check.Equal(t, status, rec.Code)
	check.Equal(t, string(kind), decode[errBody](t, rec).Kind)
}

type itemBody struct {
	ID      int64   `json:"id"`
	OwnerID int64   `json:"owner_id"`
	Status  string  `json:"status"`
	Price   *string `json:"price"`
}

func (a *testAPI) mint(owner int64) itemBody {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/items", map[string]any{"creator_id": owner, "name": "Lantern"})
	assert.Equal(a.t, http.StatusCreated, rec.Code)
	return decode[itemBody](a.t, rec)
}

func itemPath(id int64, suffix string) string {
	return "/api/items/" + strconv.FormatInt(id, 10) + suffix
}

func auctionPath(id int64, suffix string) string {
	return "/api/auctions/" + strconv.FormatInt(id, 10) + suffix
}

func TestDirectPurchaseFlow(t *testing.T) {
	api := newTestAPI(t, Config{})
	item := api.mint(1)
	check.Equal(t, "minted", item.Status)

	expectKind(t, api.do(http.MethodPost, itemPath(item.ID, "/purchase"), map[string]any{"buyer_id": 2}),
		http.StatusConflict, domain.KindNotForSale)
	expectKind(t, api.do(http.MethodPost, itemPath(item.ID, "/listing"), map[string]any{"owner_id": 2, "price": "2.0"}),
		http.StatusForbidden, domain.KindNotOwner)

	rec := api.do(http.MethodPost, itemPath(item.ID, "/listing"), map[string]any{"owner_id": 1, "price": "2.0"})
	assert.Equal(t, http.StatusOK, rec.Code)
	listed := decode[itemBody](t, rec)
	check.Equal(t, "listed", listed.Status)
	assert.NotNil(t, listed.Price)
	check.Equal(t, "2", *listed.Price)

	expectKind(t, api.do(http.MethodPost, itemPath(item.ID, "/purchase"), map[string]any{"buyer_id": 1}),
		http.StatusBadRequest, domain.KindSelfPurchase)

	rec = api.do(http.MethodPost, itemPath(item.ID, "/purchase"), map[string]any{"buyer_id": 2})
	assert.Equal(t, http.StatusCreated, rec.Code)
	txn := decode[domain.Transaction](t, rec)
	check.Equal(t, int64(1), txn.SellerID)
	check.Equal(t, int64(2), txn.BuyerID)
	check.Equal(t, "2", txn.Price.String())

	receipt := decode[domain.Transaction](t, api.do(http.MethodGet, "/api/transactions/"+strconv.FormatInt(txn.ID, 10), nil))
	check.Equal(t, txn.TxHash, receipt.TxHash)
	expectKind(t, api.do(http.MethodGet, "/api/transactions/999", nil), http.StatusNotFound, domain.KindNotFound)

	got := decode[itemBody](t, api.do(http.MethodGet, itemPath(item.ID, ""), nil))
	check.Equal(t, int64(2), got.OwnerID)
	check.Equal(t, "sold", got.Status)
	check.Nil(t, got.Price)

	history := decode[struct {
		Transactions []domain.Transaction `json:"transactions"`
	}](t, api.do(http.MethodGet, "/api/users/1/transactions", nil))
	check.Equal(t, 1, len(history.Transactions))

	owned := decode[struct {
		Items []itemBody `json:"items"`
	}](t, api.do(http.MethodGet, "/api/items?owner_id=2", nil))
	check.Equal(t, 1, len(owned.Items))
}

func TestUnlistRequiresOwner(t *testing.T) {
	api := newTestAPI(t, Config{})
	item := api.mint(1)
	rec := api.do(http.MethodPost, itemPath(item.ID, "/listing"), map[string]any{"owner_id": 1, "price": "1"})
	assert.Equal(t, http.StatusOK, rec.Code)

	expectKind(t, api.do(http.MethodDelete, itemPath(item.ID, "/listing"), nil),
		http.StatusBadRequest, domain.KindInvalidInput)
	expectKind(t, api.do(http.MethodDelete, itemPath(item.ID, "/listing?owner_id=3"), nil),
		http.StatusForbidden, domain.KindNotOwner)

	rec = api.do(http.MethodDelete, itemPath(item.ID, "/listing?owner_id=1"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	check.Equal(t, "minted", decode[itemBody](t, rec).Status)
}

func TestAuctionFlow(t *testing.T) {
	api := newTestAPI(t, Config{})
	item := api.mint(1)

	rec := api.do(http.MethodPost, "/api/auctions", map[string]any{
		"item_id":        item.ID,
		"starting_price": "1.0",
		"end_time":       api.clock.Now().Add(time.Hour),
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	auc := decode[struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}](t, rec)
	check.Equal(t, "open", auc.Status)

	bidsPath := auctionPath(auc.ID, "/bids")
	rec = api.do(http.MethodPost, bidsPath, map[string]any{"bidder_id": 2, "amount": "1.2"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	expectKind(t, api.do(http.MethodPost, "/api/bids", map[string]any{"auction_id": auc.ID, "bidder_id": 3, "amount": "1.1"}),
		http.StatusConflict, domain.KindBidTooLow)
	expectKind(t, api.do(http.MethodPost, bidsPath, map[string]any{"bidder_id": 1, "amount": "9"}),
		http.StatusBadRequest, domain.KindSelfBid)
	expectKind(t, api.do(http.MethodPost, bidsPath, map[string]any{"auction_id": auc.ID + 1, "bidder_id": 3, "amount": "9"}),
		http.StatusBadRequest, domain.KindInvalidInput)

	rec = api.do(http.MethodPost, "/api/bids", map[string]any{"auction_id": auc.ID, "bidder_id": 3, "amount": 1.5})
	assert.Equal(t, http.StatusCreated, rec.Code)

	expectKind(t, api.do(http.MethodPost, auctionPath(auc.ID, "/settle"), nil),
		http.StatusConflict, domain.KindAuctionOpen)

	api.clock.Advance(time.Hour)
	expectKind(t, api.do(http.MethodPost, bidsPath, map[string]any{"bidder_id": 2, "amount": "5"}),
		http.StatusConflict, domain.KindAuctionClosed)

	rec = api.do(http.MethodPost, auctionPath(auc.ID, "/settle"), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	settled := decode[struct {
		Transaction *domain.Transaction `json:"transaction"`
	}](t, rec)
	assert.NotNil(t, settled.Transaction)
	check.Equal(t, int64(3), settled.Transaction.BuyerID)
	check.Equal(t, "1.5", settled.Transaction.Price.String())

	expectKind(t, api.do(http.MethodPost, auctionPath(auc.ID, "/settle"), nil),
		http.StatusConflict, domain.KindAlreadySettled)

	got := decode[struct {
		Status       string `json:"status"`
		CurrentPrice string `json:"current_price"`
	}](t, api.do(http.MethodGet, auctionPath(auc.ID, ""), nil))
	check.Equal(t, "settled", got.Status)
	check.Equal(t, "1.5", got.CurrentPrice)

	list := decode[struct {
		Bids []domain.Bid `json:"bids"`
	}](t, api.do(http.MethodGet, bidsPath, nil))
	assert.Equal(t, 2, len(list.Bids))
	check.Equal(t, "1.5", list.Bids[0].Amount.String())
	check.Equal(t, "1.2", list.Bids[1].Amount.String())

	mine := decode[struct {
		Bids []domain.Bid `json:"bids"`
	}](t, api.do(http.MethodGet, "/api/users/2/bids", nil))
	check.Equal(t, 1, len(mine.Bids))

	owner := decode[itemBody](t, api.do(http.MethodGet, itemPath(item.ID, ""), nil))
	check.Equal(t, int64(3), owner.OwnerID)
}

func TestNotFoundAndBadInput(t *testing.T) {
	api := newTestAPI(t, Config{})

	expectKind(t, api.do(http.MethodGet, "/api/items/99", nil), http.StatusNotFound, domain.KindNotFound)
	expectKind(t, api.do(http.MethodGet, "/api/auctions/99", nil), http.StatusNotFound, domain.KindNotFound)
	expectKind(t, api.do(http.MethodGet, "/api/auctions/99/bids", nil), http.StatusNotFound, domain.KindNotFound)
	expectKind(t, api.do(http.MethodGet, "/api/items/x", nil), http.StatusBadRequest, domain.KindInvalidInput)
	expectKind(t, api.do(http.MethodPost, "/api/items", map[string]any{"creator_id": 1}),
		http.StatusBadRequest, domain.KindInvalidInput)
	expectKind(t, api.do(http.MethodPost, "/api/items", map[string]any{"creator_id": 42, "name": "x"}),
		http.StatusNotFound, domain.KindNotFound)
	expectKind(t, api.do(http.MethodGet, "/api/items?status=burnt", nil),
		http.StatusBadRequest, domain.KindInvalidInput)
}

func TestAuthAndRequestID(t *testing.T) {
	api := newTestAPI(t, Config{APIKey: "s3cret"})

	rec := api.do(http.MethodGet, "/api/health", nil)
	check.Equal(t, http.StatusOK, rec.Code)
	check.True(t, rec.Header().Get("X-Request-ID") != "")

	rec = api.do(http.MethodGet, "/api/items", nil)
	check.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = api.do(http.MethodGet, "/api/items", nil, "Authorization", "Bearer s3cret", "X-Request-ID", "req-1")
	check.Equal(t, http.StatusOK, rec.Code)
	check.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
}

func TestRateLimitOnlyMutations(t *testing.T) {
	api := newTestAPI(t, Config{RateLimit: 1, RateWindow: time.Minute})

	api.mint(1)
	expectKind(t, api.do(http.MethodPost, "/api/items", map[string]any{"creator_id": 1, "name": "again"}),
		http.StatusTooManyRequests, domain.KindRateLimited)
	check.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/items", nil).Code)
}

func TestCORSPreflight(t *testing.T) {
	api := newTestAPI(t, Config{CORSOrigins: []string{"https://app.example"}})
	rec := api.do(http.MethodOptions, "/api/items", nil, "Origin", "https://app.example")
	check.Equal(t, http.StatusNoContent, rec.Code)
	check.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))

	check.Equal(t, "Origin", rec.Header().Get("Vary"))

	rec = api.do(http.MethodOptions, "/api/items", nil, "Origin", "https://App.Example")
	check.Equal(t, "https://App.Example", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = api.do(http.MethodOptions, "/api/items", nil, "Origin", "https://evil.example")
	check.Equal(t, "", rec.Header().Get("Access-Control-Allow-Origin"))
	check.Equal(t, "Origin", rec.Header().Get("Vary"))
}

func TestHealthReportsFailingDependency(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := handler.NewHealthHandler(map[string]handler.HealthCheck{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return io.ErrUnexpectedEOF },
	}, logger)

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	check.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[struct {
		Status       string            `json:"status"`
		Dependencies map[string]string `json:"dependencies"`
	}](t, rec)
	check.Equal(t, "degraded", body.Status)
	check.Equal(t, "ok", body.Dependencies["postgres"])
}

func TestCollectionRoutes(t *testing.T) {
	api := newTestAPI(t, Config{})

	expectKind(t, api.do(http.MethodPost, "/api/collections", map[string]any{"name": "Art"}),
		http.StatusBadRequest, domain.KindInvalidInput)
	expectKind(t, api.do(http.MethodPost, "/api/collections", map[string]any{"creator_id": 9, "name": "Art"}),
		http.StatusNotFound, domain.KindNotFound)

	rec := api.do(http.MethodPost, "/api/collections", map[string]any{"creator_id": 1, "name": "Art", "banner_url": "https://img/a.png"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	coll := decode[domain.Collection](t, rec)
	check.Equal(t, "Art", coll.Name)
	collPath := "/api/collections/" + strconv.FormatInt(coll.ID, 10)

	expectKind(t, api.do(http.MethodPost, "/api/items", map[string]any{"creator_id": 1, "name": "Lost", "collection_id": 77}),
		http.StatusNotFound, domain.KindNotFound)

	rec = api.do(http.MethodPost, "/api/items", map[string]any{"creator_id": 1, "name": "Piece", "collection_id": coll.ID})
	assert.Equal(t, http.StatusCreated, rec.Code)
	piece := decode[itemBody](t, rec)
	api.mint(1)
	rec = api.do(http.MethodPost, itemPath(piece.ID, "/listing"), map[string]any{"owner_id": 1, "price": "4"})
	assert.Equal(t, http.StatusOK, rec.Code)

	stats := decode[struct {
		ID         int64   `json:"id"`
		ItemCount  int     `json:"item_count"`
		FloorPrice *string `json:"floor_price"`
	}](t, api.do(http.MethodGet, collPath, nil))
	check.Equal(t, coll.ID, stats.ID)
	check.Equal(t, 1, stats.ItemCount)
	assert.NotNil(t, stats.FloorPrice)
	check.Equal(t, "4", *stats.FloorPrice)

	type itemList struct {
		Items []itemBody `json:"items"`
	}
	check.Equal(t, 1, len(decode[itemList](t, api.do(http.MethodGet, collPath+"/items", nil)).Items))
	check.Equal(t, 1, len(decode[itemList](t, api.do(http.MethodGet, "/api/items?collection_id="+strconv.FormatInt(coll.ID, 10), nil)).Items))
	expectKind(t, api.do(http.MethodGet, "/api/collections/404/items", nil), http.StatusNotFound, domain.KindNotFound)

	type collList struct {
		Collections []domain.Collection `json:"collections"`
	}
	check.Equal(t, 1, len(decode[collList](t, api.do(http.MethodGet, "/api/collections", nil)).Collections))
	check.Equal(t, 1, len(decode[collList](t, api.do(http.MethodGet, "/api/users/1/collections", nil)).Collections))
	check.Equal(t, 0, len(decode[collList](t, api.do(http.MethodGet, "/api/users/2/collections", nil)).Collections))
}

func TestGetUser(t *testing.T) {
	api := newTestAPI(t, Config{})

	rec := api.do(http.MethodGet, "/api/users/2", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	u := decode[domain.User](t, rec)
	check.Equal(t, "bob", u.DisplayName)

	expectKind(t, api.do(http.MethodGet, "/api/users/99", nil), http.StatusNotFound, domain.KindNotFound)
	expectKind(t, api.do(http.MethodGet, "/api/users/abc", nil), http.StatusBadRequest, domain.KindInvalidInput)
}
