// Package local implements the domain cache interfaces inside one process.
// It backs single-node deployments and tests; the redis package provides the
// same contracts across processes.
package local

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

// LockManager is a keyed mutex. Each key gets a one-slot channel that is
// created on first use and dropped when the last waiter leaves.
type LockManager struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	slot chan struct{}
	refs int
}

// NewLockManager creates an empty LockManager.
func NewLockManager() *LockManager {
	return &LockManager{locks: make(map[string]*keyLock)}
}

// Acquire blocks until key is free or ctx is done. The ttl is ignored: a
// local holder cannot vanish without running its deferred unlock.
func (lm *LockManager) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	lm.mu.Lock()
	kl, ok := lm.locks[key]
	if !ok {
		kl = &keyLock{slot: make(chan struct{}, 1)}
		lm.locks[key] = kl
	}
	kl.refs++
	lm.mu.Unlock()

	select {
	case kl.slot <- struct{}{}:
	case <-ctx.Done():
		lm.release(key, kl)
		return nil, fmt.Errorf("local: acquire lock %s: %w", key, domain.ErrLockHeld)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-kl.slot
			lm.release(key, kl)
		})
	}, nil
}

func (lm *LockManager) release(key string, kl *keyLock) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(lm.locks, key)
	}
}

var _ domain.LockManager = (*LockManager)(nil)
