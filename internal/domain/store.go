package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ItemFilter narrows item listings. Nil fields do not filter.
type ItemFilter struct {
	OwnerID      *int64
	CreatorID    *int64
	CollectionID *int64
	Status       ItemStatus
}

// CollectionStore persists collections.
type CollectionStore interface {
	Create(ctx context.Context, c Collection) (Collection, error)
	GetByID(ctx context.Context, id int64) (Collection, error)
	// List returns collections in id order.
	List(ctx context.Context, filter CollectionFilter, opts ListOpts) ([]Collection, error)
}

// ItemStore persists items. Status and ownership change only through the
// named update operations.
type ItemStore interface {
	Create(ctx context.Context, item Item) (Item, error)
	GetByID(ctx context.Context, id int64) (Item, error)
	List(ctx context.Context, filter ItemFilter, opts ListOpts) ([]Item, error)
	UpdateState(ctx context.Context, id int64, state ItemState) (Item, error)
	TransferOwnership(ctx context.Context, id int64, ownerID int64, state ItemState) (Item, error)
}

// AuctionStore persists auctions.
type AuctionStore interface {
	Create(ctx context.Context, auction Auction) (Auction, error)
	GetByID(ctx context.Context, id int64) (Auction, error)
	// ListDue returns unsettled auctions whose end time is at or before now,
	// oldest end time first.
	ListDue(ctx context.Context, now time.Time, limit int) ([]Auction, error)
	UpdateCurrentPrice(ctx context.Context, id int64, price decimal.Decimal) (Auction, error)
	MarkSettled(ctx context.Context, id int64, outcome AuctionOutcome, transactionID *int64, at time.Time) (Auction, error)
}

// BidStore persists the append-only bid history.
type BidStore interface {
	Create(ctx context.Context, bid Bid) (Bid, error)
	// Highest returns the highest admitted bid, or ErrNotFound if none.
	Highest(ctx context.Context, auctionID int64) (Bid, error)
	// ListByAuction returns bids most recent first. Admitted amounts are
	// strictly increasing, so this is also highest first.
	ListByAuction(ctx context.Context, auctionID int64, opts ListOpts) ([]Bid, error)
	ListByBidder(ctx context.Context, bidderID int64, opts ListOpts) ([]Bid, error)
	ListBefore(ctx context.Context, before time.Time) ([]Bid, error)
}

// TransactionStore persists completed transfers.
type TransactionStore interface {
	Create(ctx context.Context, txn Transaction) (Transaction, error)
	GetByID(ctx context.Context, id int64) (Transaction, error)
	// ListByUser returns transactions where the user is buyer or seller,
	// newest first.
	ListByUser(ctx context.Context, userID int64, opts ListOpts) ([]Transaction, error)
	ListBefore(ctx context.Context, before time.Time) ([]Transaction, error)
}

// UserDirectory resolves user identities owned by an external service.
type UserDirectory interface {
	GetUser(ctx context.Context, id int64) (User, error)
}

// Tx exposes the entity stores bound to one unit of work.
type Tx interface {
	Collections() CollectionStore
	Items() ItemStore
	Auctions() AuctionStore
	Bids() BidStore
	Transactions() TransactionStore
}

// Store is the authoritative entity store. Reads through the embedded Tx
// see only committed state. Atomic runs fn as one unit of work: every write
// made through the Tx passed to fn becomes visible together, or none does if
// fn returns an error.
type Store interface {
	Tx
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
