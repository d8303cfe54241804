package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

// BidService is what the bid handler needs.
type BidService interface {
	PlaceBid(ctx context.Context, auctionID, bidderID int64, amount decimal.Decimal) (domain.Bid, error)
	ListBids(ctx context.Context, auctionID int64, opts domain.ListOpts) ([]domain.Bid, error)
}

// BidHandler serves bid endpoints.
type BidHandler struct {
	bids   BidService
	logger *slog.Logger
}

// NewBidHandler creates a BidHandler.
func NewBidHandler(bids BidService, logger *slog.Logger) *BidHandler {
	return &BidHandler{bids: bids, logger: logHandler(logger, "bid")}
}

type placeBidRequest struct {
	AuctionID int64           `json:"auction_id"`
	BidderID  int64           `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
}

// Place admits a bid. The auction comes from the path when present,
// otherwise from the body.
// POST /api/auctions/{id}/bids
// POST /api/bids
func (h *BidHandler) Place(w http.ResponseWriter, r *http.Request) {
	var req placeBidRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if r.PathValue("id") != "" {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		if req.AuctionID != 0 && req.AuctionID != id {
			writeError(w, r, h.logger, invalid("auction_id %d does not match path %d", req.AuctionID, id))
			return
		}
		req.AuctionID = id
	}
	if req.AuctionID <= 0 {
		writeError(w, r, h.logger, invalid("auction_id is required"))
		return
	}

	bid, err := h.bids.PlaceBid(r.Context(), req.AuctionID, req.BidderID, req.Amount)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, bid)
}

// List returns an auction's bids, most recent first.
// GET /api/auctions/{id}/bids
func (h *BidHandler) List(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	bids, err := h.bids.ListBids(r.Context(), id, parseListOpts(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if bids == nil {
		bids = []domain.Bid{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bids": bids})
}
