package domain

import (
	"strconv"
	"time"
)

// Event types published on the signal bus.
const (
	EventCollectionCreated = "collection_created"
	EventItemMinted        = "item_minted"
	EventItemListed        = "item_listed"
	EventItemUnlisted      = "item_unlisted"
	EventAuctionOpened     = "auction_opened"
	EventBidPlaced         = "bid_placed"
	EventItemSold          = "item_sold"
	EventAuctionSettled    = "auction_settled"
)

// Bus channel and stream names.
const (
	ChannelMarket      = "market"
	StreamMarketEvents = "market:events"
)

// AuctionChannel is the pub/sub channel carrying one auction's events.
func AuctionChannel(id int64) string { return "auction:" + strconv.FormatInt(id, 10) }

// ItemChannel is the pub/sub channel carrying one item's events.
func ItemChannel(id int64) string { return "item:" + strconv.FormatInt(id, 10) }

// Event is the envelope published for every committed marketplace change.
type Event struct {
	Type      string    `json:"type"`
	ItemID    int64     `json:"item_id,omitempty"`
	AuctionID int64     `json:"auction_id,omitempty"`
	At        time.Time `json:"at"`
	Payload   any       `json:"payload"`
}
