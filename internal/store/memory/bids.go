package memory

import (
	"context"
	"slices"
	"time"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

type bidStore view

func (st bidStore) Create(_ context.Context, b domain.Bid) (domain.Bid, error) {
	s := st.s
	err := view(st).write(func(u *unit) error {
		if _, ok := s.auctions[b.AuctionID]; !ok {
			return domain.ErrNotFound
		}
		s.bidSeq++
		b.ID = s.bidSeq
		if b.CreatedAt.IsZero() {
			b.CreatedAt = s.now()
		}
		s.bids[b.ID] = b
		s.bidsByAuc[b.AuctionID] = append(s.bidsByAuc[b.AuctionID], b.ID)
		id, auc := b.ID, b.AuctionID
		u.record(func() {
			ids := s.bidsByAuc[auc]
			s.bidsByAuc[auc] = ids[:len(ids)-1]
			delete(s.bids, id)
			s.bidSeq--
		})
		return nil
	})
	return b, err
}

func (st bidStore) Highest(_ context.Context, auctionID int64) (domain.Bid, error) {
	var (
		b  domain.Bid
		ok bool
	)
	view(st).read(func() {
		ids := st.s.bidsByAuc[auctionID]
		if len(ids) == 0 {
			return
		}
		b, ok = st.s.bids[ids[len(ids)-1]]
	})
	if !ok {
		return domain.Bid{}, domain.ErrNotFound
	}
	return b, nil
}

func (st bidStore) ListByAuction(_ context.Context, auctionID int64, opts domain.ListOpts) ([]domain.Bid, error) {
	var out []domain.Bid
	view(st).read(func() {
		ids := st.s.bidsByAuc[auctionID]
		for i := len(ids) - 1; i >= 0; i-- {
			b := st.s.bids[ids[i]]
			if inWindow(b.CreatedAt, opts) {
				out = append(out, b)
			}
		}
	})
	return page(out, opts), nil
}

func (st bidStore) ListByBidder(_ context.Context, bidderID int64, opts domain.ListOpts) ([]domain.Bid, error) {
	var out []domain.Bid
	view(st).read(func() {
		for _, b := range st.s.bids {
			if b.BidderID == bidderID && inWindow(b.CreatedAt, opts) {
				out = append(out, b)
			}
		}
	})
	slices.SortFunc(out, func(a, b domain.Bid) int { return int(b.ID - a.ID) })
	return page(out, opts), nil
}

func (st bidStore) ListBefore(_ context.Context, before time.Time) ([]domain.Bid, error) {
	var out []domain.Bid
	view(st).read(func() {
		for _, id := range sortedKeys(st.s.bids) {
			if b := st.s.bids[id]; b.CreatedAt.Before(before) {
				out = append(out, b)
			}
		}
	})
	return out, nil
}
