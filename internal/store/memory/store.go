// Package memory implements the domain store interfaces in process memory.
// It is the default backend and the one used by tests.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

// Store holds every entity table behind one RWMutex. Writers run inside
// Atomic, which journals each write so a failed unit of work is rolled back
// before the lock is released.
type Store struct {
	mu  sync.RWMutex
	now func() time.Time

	collections map[int64]domain.Collection
	items       map[int64]domain.Item
	auctions    map[int64]domain.Auction
	bids        map[int64]domain.Bid
	bidsByAuc   map[int64][]int64
	txns        map[int64]domain.Transaction

	collectionSeq, itemSeq, auctionSeq, bidSeq, txnSeq int64
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the clock used for creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		now:         nowUTC,
		collections: make(map[int64]domain.Collection),
		items:       make(map[int64]domain.Item),
		auctions:    make(map[int64]domain.Auction),
		bids:        make(map[int64]domain.Bid),
		bidsByAuc:   make(map[int64][]int64),
		txns:        make(map[int64]domain.Transaction),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// unit is the state of one in-flight Atomic call. A nil unit means a
// standalone call that takes the store lock itself.
type unit struct {
	undo []func()
}

func (u *unit) record(fn func()) {
	u.undo = append(u.undo, fn)
}

func (u *unit) rollback() {
	for i := len(u.undo) - 1; i >= 0; i-- {
		u.undo[i]()
	}
	u.undo = nil
}

// view binds the entity stores to a unit. All entity stores share it.
type view struct {
	s *Store
	u *unit
}

func (v view) Collections() domain.CollectionStore   { return collectionStore(v) }
func (v view) Items() domain.ItemStore               { return itemStore(v) }
func (v view) Auctions() domain.AuctionStore         { return auctionStore(v) }
func (v view) Bids() domain.BidStore                 { return bidStore(v) }
func (v view) Transactions() domain.TransactionStore { return txnStore(v) }

// Collections returns the committed collection table.
func (s *Store) Collections() domain.CollectionStore { return view{s: s}.Collections() }

// Items returns the committed item table.
func (s *Store) Items() domain.ItemStore { return view{s: s}.Items() }

// Auctions returns the committed auction table.
func (s *Store) Auctions() domain.AuctionStore { return view{s: s}.Auctions() }

// Bids returns the committed bid table.
func (s *Store) Bids() domain.BidStore { return view{s: s}.Bids() }

// Transactions returns the committed transaction table.
func (s *Store) Transactions() domain.TransactionStore { return view{s: s}.Transactions() }

// Atomic runs fn with the store write lock held. If fn returns an error every
// write it made is undone, so readers never observe partial state.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u := &unit{}
	if err := fn(ctx, view{s: s, u: u}); err != nil {
		u.rollback()
		return err
	}
	return nil
}

// read runs fn under the read lock unless the caller already holds the write
// lock through a unit.
func (v view) read(fn func()) {
	if v.u == nil {
		v.s.mu.RLock()
		defer v.s.mu.RUnlock()
	}
	fn()
}

// write runs fn under the write lock unless a unit already holds it. Outside
// a unit there is nothing to roll back, so the journal is discarded.
func (v view) write(fn func(u *unit) error) error {
	if v.u != nil {
		return fn(v.u)
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	u := &unit{}
	if err := fn(u); err != nil {
		u.rollback()
		return err
	}
	return nil
}

func cloneItem(it domain.Item) domain.Item {
	it.Properties = maps.Clone(it.Properties)
	if it.CollectionID != nil {
		c := *it.CollectionID
		it.CollectionID = &c
	}
	return it
}

// page applies limit/offset to an already ordered slice.
func page[T any](rows []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(rows) {
			return nil
		}
		rows = rows[opts.Offset:]
	}
	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}
	return rows
}

func inWindow(ts time.Time, opts domain.ListOpts) bool {
	if opts.Since != nil && ts.Before(*opts.Since) {
		return false
	}
	if opts.Until != nil && ts.After(*opts.Until) {
		return false
	}
	return true
}

// sortedKeys returns map keys in ascending order.
func sortedKeys[V any](m map[int64]V) []int64 {
	keys := slices.Collect(maps.Keys(m))
	slices.Sort(keys)
	return keys
}

var _ domain.Store = (*Store)(nil)

func nowUTC() time.Time { return time.Now().UTC() }
