package domain

import (
	"context"
	"strconv"
	"time"
)

// RateLimiter provides rate limiting keyed by caller.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides mutual exclusion keyed by entity. Acquire blocks until
// the lock is obtained or ctx is done, in which case it returns an error
// wrapping ErrLockHeld.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// AuctionLockKey is the lock key serializing work on one auction.
func AuctionLockKey(id int64) string { return "auction:" + strconv.FormatInt(id, 10) }

// ItemLockKey is the lock key serializing work on one item.
func ItemLockKey(id int64) string { return "item:" + strconv.FormatInt(id, 10) }

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
