package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

// CollectionService manages item collections.
type CollectionService struct {
	store  domain.Store
	users  domain.UserDirectory
	pub    publisher
	cfg    MarketConfig
	logger *slog.Logger
}

// NewCollectionService creates a CollectionService.
func NewCollectionService(
	store domain.Store,
	users domain.UserDirectory,
	bus domain.SignalBus,
	audit domain.AuditStore,
	cfg MarketConfig,
	logger *slog.Logger,
) *CollectionService {
	logger = logger.With(slog.String("component", "collection_service"))
	return &CollectionService{
		store:  store,
		users:  users,
		pub:    publisher{bus: bus, audit: audit, logger: logger},
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// CreateCollection creates a collection owned by creatorID.
func (s *CollectionService) CreateCollection(ctx context.Context, creatorID int64, in domain.NewCollection) (domain.Collection, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Collection{}, fmt.Errorf("collection_service: create: name is required: %w", domain.ErrInvalidInput)
	}
	if err := requireUser(ctx, s.users, "creator", creatorID); err != nil {
		return domain.Collection{}, fmt.Errorf("collection_service: create: %w", err)
	}

	c, err := s.store.Collections().Create(ctx, domain.Collection{
		Name:        name,
		Description: in.Description,
		BannerURL:   in.BannerURL,
		CreatorID:   creatorID,
		CreatedAt:   s.cfg.Now(),
	})
	if err != nil {
		return domain.Collection{}, fmt.Errorf("collection_service: create: %w", err)
	}

	s.pub.emit(ctx, domain.Event{
		Type:    domain.EventCollectionCreated,
		At:      c.CreatedAt,
		Payload: c,
	})
	s.pub.record(ctx, "collection.created", map[string]any{
		"collection_id": c.ID,
		"creator_id":    creatorID,
	})
	s.logger.InfoContext(ctx, "collection created",
		slog.Int64("collection_id", c.ID),
		slog.Int64("creator_id", creatorID),
	)
	return c, nil
}

// GetCollection returns a collection with its item count and floor price.
func (s *CollectionService) GetCollection(ctx context.Context, id int64) (domain.CollectionStats, error) {
	c, err := s.store.Collections().GetByID(ctx, id)
	if err != nil {
		return domain.CollectionStats{}, fmt.Errorf("collection_service: get %d: %w", id, err)
	}
	items, err := s.store.Items().List(ctx, domain.ItemFilter{CollectionID: &id}, domain.ListOpts{})
	if err != nil {
		return domain.CollectionStats{}, fmt.Errorf("collection_service: get %d items: %w", id, err)
	}

	stats := domain.CollectionStats{Collection: c, ItemCount: len(items)}
	for _, it := range items {
		price, ok := it.Price()
		if !ok {
			continue
		}
		if !stats.FloorPrice.Valid || price.LessThan(stats.FloorPrice.Decimal) {
			stats.FloorPrice = decimal.NewNullDecimal(price)
		}
	}
	return stats, nil
}

// ListCollections returns collections matching filter.
func (s *CollectionService) ListCollections(ctx context.Context, filter domain.CollectionFilter, opts domain.ListOpts) ([]domain.Collection, error) {
	out, err := s.store.Collections().List(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("collection_service: list: %w", err)
	}
	return out, nil
}

// ListCollectionItems returns the items minted into a collection.
func (s *CollectionService) ListCollectionItems(ctx context.Context, id int64, opts domain.ListOpts) ([]domain.Item, error) {
	if _, err := s.store.Collections().GetByID(ctx, id); err != nil {
		return nil, fmt.Errorf("collection_service: items of %d: %w", id, err)
	}
	items, err := s.store.Items().List(ctx, domain.ItemFilter{CollectionID: &id}, opts)
	if err != nil {
		return nil, fmt.Errorf("collection_service: items of %d: %w", id, err)
	}
	return items, nil
}
