package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrAuctionClosed    = errors.New("auction has ended")
	ErrSelfBid          = errors.New("owner cannot bid on own item")
	ErrBidTooLow        = errors.New("bid must exceed current price")
	ErrNotForSale       = errors.New("item is not for sale")
	ErrSelfPurchase     = errors.New("owner cannot purchase own item")
	ErrInvalidItemState = errors.New("operation not permitted in current item state")
	ErrStaleBid         = errors.New("amount does not exceed current price")
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotOwner         = errors.New("caller does not own item")
	ErrAuctionOpen      = errors.New("auction is still open")
	ErrAlreadySettled   = errors.New("auction already settled")
	ErrRateLimited      = errors.New("rate limited")
	ErrLockHeld         = errors.New("lock already held")
)

// ErrorKind is the stable tag surfaced to API clients for a failure.
type ErrorKind string

const (
	KindNotFound         ErrorKind = "NotFound"
	KindAuctionClosed    ErrorKind = "AuctionClosed"
	KindSelfBid          ErrorKind = "SelfBid"
	KindBidTooLow        ErrorKind = "BidTooLow"
	KindNotForSale       ErrorKind = "NotForSale"
	KindSelfPurchase     ErrorKind = "SelfPurchase"
	KindInvalidItemState ErrorKind = "InvalidItemState"
	KindStaleBid         ErrorKind = "StaleBid"
	KindInvalidInput     ErrorKind = "InvalidInput"
	KindNotOwner         ErrorKind = "NotOwner"
	KindAuctionOpen      ErrorKind = "AuctionOpen"
	KindAlreadySettled   ErrorKind = "AlreadySettled"
	KindRateLimited      ErrorKind = "RateLimited"
	KindLockHeld         ErrorKind = "LockHeld"
	KindInternal         ErrorKind = "Internal"
)

var errorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrNotFound, KindNotFound},
	{ErrAuctionClosed, KindAuctionClosed},
	{ErrSelfBid, KindSelfBid},
	{ErrBidTooLow, KindBidTooLow},
	{ErrNotForSale, KindNotForSale},
	{ErrSelfPurchase, KindSelfPurchase},
	{ErrInvalidItemState, KindInvalidItemState},
	{ErrStaleBid, KindStaleBid},
	{ErrInvalidInput, KindInvalidInput},
	{ErrNotOwner, KindNotOwner},
	{ErrAuctionOpen, KindAuctionOpen},
	{ErrAlreadySettled, KindAlreadySettled},
	{ErrRateLimited, KindRateLimited},
	{ErrLockHeld, KindLockHeld},
}

// KindOf returns the tag of the first known sentinel wrapped by err, or
// KindInternal when err does not wrap one.
func KindOf(err error) ErrorKind {
	for _, ek := range errorKinds {
		if errors.Is(err, ek.err) {
			return ek.kind
		}
	}
	return KindInternal
}
