package memory

import (
	"context"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

type collectionStore view

func (st collectionStore) Create(_ context.Context, c domain.Collection) (domain.Collection, error) {
	s := st.s
	err := view(st).write(func(u *unit) error {
		s.collectionSeq++
		c.ID = s.collectionSeq
		if c.CreatedAt.IsZero() {
			c.CreatedAt = s.now()
		}
		s.collections[c.ID] = c
		id := c.ID
		u.record(func() {
			delete(s.collections, id)
			s.collectionSeq--
		})
		return nil
	})
	return c, err
}

func (st collectionStore) GetByID(_ context.Context, id int64) (domain.Collection, error) {
	var (
		c  domain.Collection
		ok bool
	)
	view(st).read(func() { c, ok = st.s.collections[id] })
	if !ok {
		return domain.Collection{}, domain.ErrNotFound
	}
	return c, nil
}

func (st collectionStore) List(_ context.Context, filter domain.CollectionFilter, opts domain.ListOpts) ([]domain.Collection, error) {
	var out []domain.Collection
	view(st).read(func() {
		for _, id := range sortedKeys(st.s.collections) {
			c := st.s.collections[id]
			if filter.CreatorID != nil && c.CreatorID != *filter.CreatorID {
				continue
			}
			if !inWindow(c.CreatedAt, opts) {
				continue
			}
			out = append(out, c)
		}
	})
	return page(out, opts), nil
}
