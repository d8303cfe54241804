package redis

import (
	"strings"
	"testing"

	"github.com/peterldowns/testy/check"
)

func TestKeyNamespaces(t *testing.T) {
	check.Equal(t, "lock:auction:4", lockKey("auction:4"))
	check.Equal(t, "ratelimit:bids:9", rateLimitKey("bids:9"))
}

func TestHasPattern(t *testing.T) {
	check.True(t, hasPattern("auction:*"))
	check.True(t, hasPattern("item:[12]"))
	check.False(t, hasPattern("market"))
	check.False(t, hasPattern("auction:12"))
}

func TestSlidingWindowScriptEmbedded(t *testing.T) {
	check.True(t, strings.Contains(slidingWindowLua, "ZREMRANGEBYSCORE"))
	check.True(t, strings.Contains(slidingWindowLua, "return {0, count}"))
}
