package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bid is an admitted offer against an open auction. Bids are never mutated.
type Bid struct {
	ID        int64           `json:"id"`
	AuctionID int64           `json:"auction_id"`
	BidderID  int64           `json:"bidder_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"created_at"`
}
