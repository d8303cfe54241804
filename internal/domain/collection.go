package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Collection groups items under a creator's banner. Collections are
// immutable once created.
type Collection struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	BannerURL   string    `json:"banner_url"`
	CreatorID   int64     `json:"creator_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewCollection holds the caller-supplied fields for a collection.
type NewCollection struct {
	Name        string
	Description string
	BannerURL   string
}

// CollectionFilter narrows collection listings. Nil fields do not filter.
type CollectionFilter struct {
	CreatorID *int64
}

// CollectionStats is a collection with figures derived from its items.
// FloorPrice is the lowest fixed price among listed items, null when none
// is listed.
type CollectionStats struct {
	Collection
	ItemCount  int                 `json:"item_count"`
	FloorPrice decimal.NullDecimal `json:"floor_price"`
}
