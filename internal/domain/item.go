package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ItemStatus is the projected status tag of an ItemState.
type ItemStatus string

const (
	ItemStatusMinted     ItemStatus = "minted"
	ItemStatusListed     ItemStatus = "listed"
	ItemStatusAuctioning ItemStatus = "auctioning"
	ItemStatusSold       ItemStatus = "sold"
)

// ItemState is the closed set of states an item can be in. Each variant
// carries only the fields that are meaningful in that state.
type ItemState interface {
	Status() ItemStatus
	isItemState()
}

// Minted is an item held by its owner and not offered for sale.
type Minted struct{}

// Listed is an item offered for direct purchase at a fixed price.
type Listed struct {
	Price decimal.Decimal
}

// Auctioning is an item bound to one unsettled auction. PriorPrice holds the
// listing price the item had before the auction opened, if any.
type Auctioning struct {
	AuctionID  int64
	PriorPrice decimal.NullDecimal
}

// Sold is an item whose last sale completed in the referenced transaction.
type Sold struct {
	TransactionID int64
}

func (Minted) Status() ItemStatus     { return ItemStatusMinted }
func (Listed) Status() ItemStatus     { return ItemStatusListed }
func (Auctioning) Status() ItemStatus { return ItemStatusAuctioning }
func (Sold) Status() ItemStatus       { return ItemStatusSold }

func (Minted) isItemState()     {}
func (Listed) isItemState()     {}
func (Auctioning) isItemState() {}
func (Sold) isItemState()       {}

// StateColumns is the flat relational projection of an ItemState.
type StateColumns struct {
	Status        ItemStatus
	Price         decimal.NullDecimal
	AuctionID     *int64
	TransactionID *int64
}

// Columns flattens s for storage.
func Columns(s ItemState) StateColumns {
	switch v := s.(type) {
	case Listed:
		return StateColumns{Status: ItemStatusListed, Price: decimal.NewNullDecimal(v.Price)}
	case Auctioning:
		id := v.AuctionID
		return StateColumns{Status: ItemStatusAuctioning, Price: v.PriorPrice, AuctionID: &id}
	case Sold:
		id := v.TransactionID
		return StateColumns{Status: ItemStatusSold, TransactionID: &id}
	default:
		return StateColumns{Status: ItemStatusMinted}
	}
}

// StateFromColumns rebuilds an ItemState from its stored projection. It
// rejects combinations that no variant can represent.
func StateFromColumns(c StateColumns) (ItemState, error) {
	switch c.Status {
	case ItemStatusMinted:
		return Minted{}, nil
	case ItemStatusListed:
		if !c.Price.Valid {
			return nil, fmt.Errorf("item state: listed without price")
		}
		return Listed{Price: c.Price.Decimal}, nil
	case ItemStatusAuctioning:
		if c.AuctionID == nil {
			return nil, fmt.Errorf("item state: auctioning without auction")
		}
		return Auctioning{AuctionID: *c.AuctionID, PriorPrice: c.Price}, nil
	case ItemStatusSold:
		if c.TransactionID == nil {
			return nil, fmt.Errorf("item state: sold without transaction")
		}
		return Sold{TransactionID: *c.TransactionID}, nil
	default:
		return nil, fmt.Errorf("item state: unknown status %q", c.Status)
	}
}

// Item is a listable digital asset.
type Item struct {
	ID           int64
	Name         string
	Description  string
	ImageURL     string
	CreatorID    int64
	OwnerID      int64
	State        ItemState
	CollectionID *int64
	Properties   map[string]string
	TokenID      string
	MintHash     string
	CreatedAt    time.Time
}

// Status is shorthand for the item's projected status.
func (i Item) Status() ItemStatus {
	if i.State == nil {
		return ItemStatusMinted
	}
	return i.State.Status()
}

// Price returns the fixed sale price, present only while the item is listed.
func (i Item) Price() (decimal.Decimal, bool) {
	if l, ok := i.State.(Listed); ok {
		return l.Price, true
	}
	return decimal.Decimal{}, false
}

type itemJSON struct {
	ID           int64               `json:"id"`
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	ImageURL     string              `json:"image_url"`
	CreatorID    int64               `json:"creator_id"`
	OwnerID      int64               `json:"owner_id"`
	Status       ItemStatus          `json:"status"`
	Price        decimal.NullDecimal `json:"price"`
	AuctionID    *int64              `json:"auction_id,omitempty"`
	CollectionID *int64              `json:"collection_id,omitempty"`
	Properties   map[string]string   `json:"properties,omitempty"`
	TokenID      string              `json:"token_id"`
	MintHash     string              `json:"mint_hash"`
	CreatedAt    time.Time           `json:"created_at"`
}

// MarshalJSON renders the item with its state projected to status, price
// and auction_id. Price is null unless the item is listed.
func (i Item) MarshalJSON() ([]byte, error) {
	out := itemJSON{
		ID:           i.ID,
		Name:         i.Name,
		Description:  i.Description,
		ImageURL:     i.ImageURL,
		CreatorID:    i.CreatorID,
		OwnerID:      i.OwnerID,
		Status:       i.Status(),
		CollectionID: i.CollectionID,
		Properties:   i.Properties,
		TokenID:      i.TokenID,
		MintHash:     i.MintHash,
		CreatedAt:    i.CreatedAt,
	}
	if p, ok := i.Price(); ok {
		out.Price = decimal.NewNullDecimal(p)
	}
	if a, ok := i.State.(Auctioning); ok {
		id := a.AuctionID
		out.AuctionID = &id
	}
	return json.Marshal(out)
}

// NewItem holds the caller-supplied fields for minting.
type NewItem struct {
	Name         string
	Description  string
	ImageURL     string
	CollectionID *int64
	Properties   map[string]string
}
