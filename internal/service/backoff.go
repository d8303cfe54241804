package service

import (
	"sync"
	"time"
)

// Backoff remembers auctions whose settlement failed so the sweeper does not
// retry them on every tick. It is safe for concurrent use.
type Backoff struct {
	failed map[int64]time.Time // auctionID -> last failure
	ttl    time.Duration
	now    func() time.Time
	mu     sync.Mutex
}

// NewBackoff creates a Backoff that holds an auction back for ttl after each
// failure.
func NewBackoff(ttl time.Duration) *Backoff {
	return &Backoff{
		failed: make(map[int64]time.Time),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Failed records a settlement failure for auctionID.
func (b *Backoff) Failed(auctionID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failed[auctionID] = b.now()
}

// Ready reports whether auctionID may be attempted now.
func (b *Backoff) Ready(auctionID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	last, ok := b.failed[auctionID]
	if !ok {
		return true
	}
	if b.now().Sub(last) >= b.ttl {
		delete(b.failed, auctionID)
		return true
	}
	return false
}

// Forget clears auctionID, typically after it settles.
func (b *Backoff) Forget(auctionID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failed, auctionID)
}

// Cleanup removes entries older than the TTL.
func (b *Backoff) Cleanup() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	for id, ts := range b.failed {
		if now.Sub(ts) >= b.ttl {
			delete(b.failed, id)
		}
	}
}
