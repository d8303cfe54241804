package local

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

func TestLockManagerSerializesSameKey(t *testing.T) {
	lm := NewLockManager()
	ctx := context.Background()

	var (
		mu      sync.Mutex
		inside  int
		maxSeen int
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := lm.Acquire(ctx, "auction:1", time.Second)
			if err != nil {
				t.Error(err)
				return
			}
			defer unlock()
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()
	check.Equal(t, 1, maxSeen)
	check.Equal(t, 0, len(lm.locks))
}

func TestLockManagerIndependentKeys(t *testing.T) {
	lm := NewLockManager()
	ctx := context.Background()

	unlockA, err := lm.Acquire(ctx, "auction:1", time.Second)
	assert.NoError(t, err)
	defer unlockA()

	short, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	unlockB, err := lm.Acquire(short, "auction:2", time.Second)
	assert.NoError(t, err)
	unlockB()
}

func TestLockManagerTimesOutWithLockHeld(t *testing.T) {
	lm := NewLockManager()
	ctx := context.Background()

	unlock, err := lm.Acquire(ctx, "item:1", time.Second)
	assert.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = lm.Acquire(short, "item:1", time.Second)
	check.True(t, errors.Is(err, domain.ErrLockHeld))

	unlock()
	unlock()
	again, err := lm.Acquire(ctx, "item:1", time.Second)
	assert.NoError(t, err)
	again()
}

func TestSignalBusPatternSubscribe(t *testing.T) {
	bus := NewSignalBus(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, "auction:*")
	assert.NoError(t, err)

	assert.NoError(t, bus.Publish(ctx, "item:1", []byte("skip")))
	assert.NoError(t, bus.Publish(ctx, "auction:7", []byte("hit")))

	select {
	case got := <-ch:
		check.Equal(t, "hit", string(got))
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}

	cancel()
	for range ch {
	}
}

func TestSignalBusStreamReadAfterID(t *testing.T) {
	bus := NewSignalBus(2)
	ctx := context.Background()

	for _, p := range []string{"a", "b", "c"} {
		assert.NoError(t, bus.StreamAppend(ctx, "market:events", []byte(p)))
	}

	msgs, err := bus.StreamRead(ctx, "market:events", "0", 10)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(msgs))
	check.Equal(t, "b", string(msgs[0].Payload))
	check.Equal(t, "2-0", msgs[0].ID)

	msgs, err = bus.StreamRead(ctx, "market:events", "2-0", 10)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(msgs))
	check.Equal(t, "c", string(msgs[0].Payload))

	msgs, err = bus.StreamRead(ctx, "market:events", "$", 10)
	assert.NoError(t, err)
	check.Equal(t, 0, len(msgs))
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	rl := NewRateLimiter()
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "bidder:2", 3, time.Second)
		assert.NoError(t, err)
		check.True(t, ok)
	}
	ok, _ := rl.Allow(ctx, "bidder:2", 3, time.Second)
	check.False(t, ok)

	ok, _ = rl.Allow(ctx, "bidder:3", 3, time.Second)
	check.True(t, ok)

	now = now.Add(1100 * time.Millisecond)
	ok, _ = rl.Allow(ctx, "bidder:2", 3, time.Second)
	check.True(t, ok)
}
