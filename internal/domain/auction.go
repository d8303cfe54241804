package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionOutcome records how a settled auction ended.
type AuctionOutcome string

const (
	AuctionOutcomeSold   AuctionOutcome = "sold"
	AuctionOutcomeUnsold AuctionOutcome = "unsold"
)

// AuctionStatus is the derived lifecycle position of an auction at a point in
// time.
type AuctionStatus string

const (
	AuctionStatusOpen    AuctionStatus = "open"
	AuctionStatusClosed  AuctionStatus = "closed"
	AuctionStatusSettled AuctionStatus = "settled"
)

// Auction is a time-boxed sale of exactly one item.
type Auction struct {
	ID            int64           `json:"id"`
	ItemID        int64           `json:"item_id"`
	SellerID      int64           `json:"seller_id"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	EndTime       time.Time       `json:"end_time"`
	CreatedAt     time.Time       `json:"created_at"`
	SettledAt     *time.Time      `json:"settled_at,omitempty"`
	Outcome       AuctionOutcome  `json:"outcome,omitempty"`
	TransactionID *int64          `json:"transaction_id,omitempty"`
}

// IsOpen reports whether the auction accepts bids at now. The end time
// itself is already closed.
func (a Auction) IsOpen(now time.Time) bool {
	return now.Before(a.EndTime)
}

// Settled reports whether settlement has already run.
func (a Auction) Settled() bool {
	return a.SettledAt != nil
}

// StatusAt derives the auction's status at now.
func (a Auction) StatusAt(now time.Time) AuctionStatus {
	switch {
	case a.Settled():
		return AuctionStatusSettled
	case a.IsOpen(now):
		return AuctionStatusOpen
	default:
		return AuctionStatusClosed
	}
}

// Settlement is the outcome of settling one auction. Transaction is nil when
// the auction closed without bids.
type Settlement struct {
	Auction     Auction      `json:"auction"`
	Item        Item         `json:"item"`
	Transaction *Transaction `json:"transaction,omitempty"`
}
