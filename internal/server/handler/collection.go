package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

// CollectionService is the subset of the collection service used here.
type CollectionService interface {
	CreateCollection(ctx context.Context, creatorID int64, in domain.NewCollection) (domain.Collection, error)
	GetCollection(ctx context.Context, id int64) (domain.CollectionStats, error)
	ListCollections(ctx context.Context, filter domain.CollectionFilter, opts domain.ListOpts) ([]domain.Collection, error)
	ListCollectionItems(ctx context.Context, id int64, opts domain.ListOpts) ([]domain.Item, error)
}

// CollectionHandler serves collection endpoints.
type CollectionHandler struct {
	collections CollectionService
	logger      *slog.Logger
}

// NewCollectionHandler creates a CollectionHandler.
func NewCollectionHandler(collections CollectionService, logger *slog.Logger) *CollectionHandler {
	return &CollectionHandler{collections: collections, logger: logHandler(logger, "collection")}
}

type createCollectionRequest struct {
	CreatorID   int64  `json:"creator_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	BannerURL   string `json:"banner_url"`
}

// Create makes a new collection.
// POST /api/collections
func (h *CollectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCollectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if req.CreatorID <= 0 {
		writeError(w, r, h.logger, invalid("creator_id is required"))
		return
	}
	c, err := h.collections.CreateCollection(r.Context(), req.CreatorID, domain.NewCollection{
		Name:        req.Name,
		Description: req.Description,
		BannerURL:   req.BannerURL,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// List returns every collection, optionally by creator.
// GET /api/collections?creator_id=
func (h *CollectionHandler) List(w http.ResponseWriter, r *http.Request) {
	creatorID, err := queryID(r, "creator_id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.list(w, r, domain.CollectionFilter{CreatorID: creatorID})
}

// ListByCreator returns the collections a user created.
// GET /api/users/{id}/collections
func (h *CollectionHandler) ListByCreator(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.list(w, r, domain.CollectionFilter{CreatorID: &id})
}

func (h *CollectionHandler) list(w http.ResponseWriter, r *http.Request, filter domain.CollectionFilter) {
	out, err := h.collections.ListCollections(r.Context(), filter, parseListOpts(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if out == nil {
		out = []domain.Collection{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"collections": out})
}

// Get returns a collection with its item count and floor price.
// GET /api/collections/{id}
func (h *CollectionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	stats, err := h.collections.GetCollection(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Items lists the items minted into a collection.
// GET /api/collections/{id}/items
func (h *CollectionHandler) Items(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	items, err := h.collections.ListCollectionItems(r.Context(), id, parseListOpts(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if items == nil {
		items = []domain.Item{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}
