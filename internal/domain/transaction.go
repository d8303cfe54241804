package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind distinguishes the two transfer paths.
type TransactionKind string

const (
	TransactionKindDirect  TransactionKind = "direct"
	TransactionKindAuction TransactionKind = "auction"
)

// Transaction records one completed ownership transfer.
type Transaction struct {
	ID        int64           `json:"id"`
	ItemID    int64           `json:"item_id"`
	AuctionID *int64          `json:"auction_id,omitempty"`
	Kind      TransactionKind `json:"kind"`
	SellerID  int64           `json:"seller_id"`
	BuyerID   int64           `json:"buyer_id"`
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	TxHash    string          `json:"tx_hash"`
	CreatedAt time.Time       `json:"created_at"`
}

// User is the read-only identity record the core consults for existence and
// ownership checks.
type User struct {
	ID            int64  `json:"id"`
	DisplayName   string `json:"display_name"`
	WalletAddress string `json:"wallet_address,omitempty"`
}
