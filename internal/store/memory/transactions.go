package memory

import (
	"context"
	"slices"
	"time"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

type txnStore view

func (st txnStore) Create(_ context.Context, t domain.Transaction) (domain.Transaction, error) {
	s := st.s
	err := view(st).write(func(u *unit) error {
		s.txnSeq++
		t.ID = s.txnSeq
		if t.CreatedAt.IsZero() {
			t.CreatedAt = s.now()
		}
		s.txns[t.ID] = t
		id := t.ID
		u.record(func() {
			delete(s.txns, id)
			s.txnSeq--
		})
		return nil
	})
	return t, err
}

func (st txnStore) GetByID(_ context.Context, id int64) (domain.Transaction, error) {
	var (
		t  domain.Transaction
		ok bool
	)
	view(st).read(func() { t, ok = st.s.txns[id] })
	if !ok {
		return domain.Transaction{}, domain.ErrNotFound
	}
	return t, nil
}

func (st txnStore) ListByUser(_ context.Context, userID int64, opts domain.ListOpts) ([]domain.Transaction, error) {
	var out []domain.Transaction
	view(st).read(func() {
		for _, t := range st.s.txns {
			if (t.BuyerID == userID || t.SellerID == userID) && inWindow(t.CreatedAt, opts) {
				out = append(out, t)
			}
		}
	})
	slices.SortFunc(out, func(a, b domain.Transaction) int { return int(b.ID - a.ID) })
	return page(out, opts), nil
}

func (st txnStore) ListBefore(_ context.Context, before time.Time) ([]domain.Transaction, error) {
	var out []domain.Transaction
	view(st).read(func() {
		for _, id := range sortedKeys(st.s.txns) {
			if t := st.s.txns[id]; t.CreatedAt.Before(before) {
				out = append(out, t)
			}
		}
	})
	return out, nil
}
