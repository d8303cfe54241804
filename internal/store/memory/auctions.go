package memory

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

type auctionStore view

func (st auctionStore) Create(_ context.Context, a domain.Auction) (domain.Auction, error) {
	s := st.s
	err := view(st).write(func(u *unit) error {
		s.auctionSeq++
		a.ID = s.auctionSeq
		if a.CreatedAt.IsZero() {
			a.CreatedAt = s.now()
		}
		s.auctions[a.ID] = a
		id := a.ID
		u.record(func() {
			delete(s.auctions, id)
			s.auctionSeq--
		})
		return nil
	})
	return a, err
}

func (st auctionStore) GetByID(_ context.Context, id int64) (domain.Auction, error) {
	var (
		a  domain.Auction
		ok bool
	)
	view(st).read(func() { a, ok = st.s.auctions[id] })
	if !ok {
		return domain.Auction{}, domain.ErrNotFound
	}
	return a, nil
}

func (st auctionStore) ListDue(_ context.Context, now time.Time, limit int) ([]domain.Auction, error) {
	var out []domain.Auction
	view(st).read(func() {
		for _, a := range st.s.auctions {
			if a.Settled() || a.IsOpen(now) {
				continue
			}
			out = append(out, a)
		}
	})
	slices.SortFunc(out, func(a, b domain.Auction) int {
		if c := a.EndTime.Compare(b.EndTime); c != 0 {
			return c
		}
		return int(a.ID - b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (st auctionStore) UpdateCurrentPrice(_ context.Context, id int64, price decimal.Decimal) (domain.Auction, error) {
	return st.update(id, func(a *domain.Auction) { a.CurrentPrice = price })
}

func (st auctionStore) MarkSettled(_ context.Context, id int64, outcome domain.AuctionOutcome, transactionID *int64, at time.Time) (domain.Auction, error) {
	return st.update(id, func(a *domain.Auction) {
		a.SettledAt = &at
		a.Outcome = outcome
		a.TransactionID = transactionID
	})
}

func (st auctionStore) update(id int64, mutate func(*domain.Auction)) (domain.Auction, error) {
	s := st.s
	var out domain.Auction
	err := view(st).write(func(u *unit) error {
		prev, ok := s.auctions[id]
		if !ok {
			return domain.ErrNotFound
		}
		next := prev
		mutate(&next)
		s.auctions[id] = next
		u.record(func() { s.auctions[id] = prev })
		out = next
		return nil
	})
	return out, err
}
