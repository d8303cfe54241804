package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

// ItemService is what the item handler needs from the auction lifecycle.
type ItemService interface {
	MintItem(ctx context.Context, creatorID int64, in domain.NewItem) (domain.Item, error)
	ListItem(ctx context.Context, itemID, ownerID int64, price decimal.Decimal) (domain.Item, error)
	UnlistItem(ctx context.Context, itemID, ownerID int64) (domain.Item, error)
	GetItem(ctx context.Context, id int64) (domain.Item, error)
	ListItems(ctx context.Context, filter domain.ItemFilter, opts domain.ListOpts) ([]domain.Item, error)
}

// PurchaseService performs fixed-price sales.
type PurchaseService interface {
	DirectPurchase(ctx context.Context, itemID, buyerID int64) (domain.Transaction, error)
}

// ItemHandler serves item endpoints.
type ItemHandler struct {
	items     ItemService
	purchases PurchaseService
	logger    *slog.Logger
}

// NewItemHandler creates an ItemHandler.
func NewItemHandler(items ItemService, purchases PurchaseService, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{items: items, purchases: purchases, logger: logHandler(logger, "item")}
}

type mintRequest struct {
	CreatorID    int64             `json:"creator_id"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	ImageURL     string            `json:"image_url"`
	CollectionID *int64            `json:"collection_id"`
	Properties   map[string]string `json:"properties"`
}

// Mint creates an item owned by its creator.
// POST /api/items
func (h *ItemHandler) Mint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.CreatorID <= 0 {
		writeError(w, r, h.logger, invalid("creator_id is required"))
		return
	}
	item, err := h.items.MintItem(r.Context(), req.CreatorID, domain.NewItem{
		Name:         req.Name,
		Description:  req.Description,
		ImageURL:     req.ImageURL,
		CollectionID: req.CollectionID,
		Properties:   req.Properties,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// List returns items filtered by owner, creator, collection or status.
// GET /api/items?owner_id=&creator_id=&collection_id=&status=&limit=&offset=
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter domain.ItemFilter
	var err error
	if filter.OwnerID, err = queryID(r, "owner_id"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if filter.CreatorID, err = queryID(r, "creator_id"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if filter.CollectionID, err = queryID(r, "collection_id"); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if st := strings.ToLower(r.URL.Query().Get("status")); st != "" {
		switch domain.ItemStatus(st) {
		case domain.ItemStatusMinted, domain.ItemStatusListed, domain.ItemStatusAuctioning, domain.ItemStatusSold:
			filter.Status = domain.ItemStatus(st)
		default:
			writeError(w, r, h.logger, invalid("unknown status %q", st))
			return
		}
	}

	items, err := h.items.ListItems(r.Context(), filter, parseListOpts(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if items == nil {
		items = []domain.Item{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// Get returns one item.
// GET /api/items/{id}
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	item, err := h.items.GetItem(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type listingRequest struct {
	OwnerID int64           `json:"owner_id"`
	Price   decimal.Decimal `json:"price"`
}

// CreateListing puts an item up for fixed-price sale.
// POST /api/items/{id}/listing
func (h *ItemHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req listingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	item, err := h.items.ListItem(r.Context(), id, req.OwnerID, req.Price)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// DeleteListing withdraws a fixed-price listing.
// DELETE /api/items/{id}/listing?owner_id=
func (h *ItemHandler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	owner, err := queryID(r, "owner_id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if owner == nil {
		writeError(w, r, h.logger, invalid("owner_id is required"))
		return
	}
	item, err := h.items.UnlistItem(r.Context(), id, *owner)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type purchaseRequest struct {
	BuyerID int64 `json:"buyer_id"`
}

// Purchase buys a listed item at its price.
// POST /api/items/{id}/purchase
func (h *ItemHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req purchaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	txn, err := h.purchases.DirectPurchase(r.Context(), id, req.BuyerID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, txn)
}
