package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
	"github.com/adityakrmishra/BlockChainBazaar/internal/service"
)

// AuctionService is what the auction handler needs from the lifecycle.
type AuctionService interface {
	OpenAuction(ctx context.Context, req service.OpenAuctionRequest) (domain.Auction, error)
	GetAuction(ctx context.Context, id int64) (domain.Auction, error)
	Settle(ctx context.Context, auctionID int64) (domain.Settlement, error)
	Status(auc domain.Auction) domain.AuctionStatus
}

// AuctionHandler serves auction endpoints.
type AuctionHandler struct {
	auctions AuctionService
	logger   *slog.Logger
}

// NewAuctionHandler creates an AuctionHandler.
func NewAuctionHandler(auctions AuctionService, logger *slog.Logger) *AuctionHandler {
	return &AuctionHandler{auctions: auctions, logger: logHandler(logger, "auction")}
}

// auctionView adds the derived status to an auction.
type auctionView struct {
	domain.Auction
	Status domain.AuctionStatus `json:"status"`
}

type openAuctionRequest struct {
	ItemID        int64           `json:"item_id"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	EndTime       time.Time       `json:"end_time"`
	SellerID      *int64          `json:"seller_id"`
}

// Open starts an auction for an item.
// POST /api/auctions
func (h *AuctionHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req openAuctionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.ItemID <= 0 {
		writeError(w, r, h.logger, invalid("item_id is required"))
		return
	}
	auc, err := h.auctions.OpenAuction(r.Context(), service.OpenAuctionRequest{
		ItemID:        req.ItemID,
		StartingPrice: req.StartingPrice,
		EndTime:       req.EndTime,
		SellerID:      req.SellerID,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, auctionView{Auction: auc, Status: h.auctions.Status(auc)})
}

// Get returns an auction with its current status.
// GET /api/auctions/{id}
func (h *AuctionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	auc, err := h.auctions.GetAuction(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, auctionView{Auction: auc, Status: h.auctions.Status(auc)})
}

// Settle closes out an ended auction.
// POST /api/auctions/{id}/settle
func (h *AuctionHandler) Settle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out, err := h.auctions.Settle(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
