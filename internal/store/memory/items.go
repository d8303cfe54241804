package memory

import (
	"context"
	"fmt"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

type itemStore view

func (st itemStore) Create(_ context.Context, item domain.Item) (domain.Item, error) {
	s := st.s
	err := view(st).write(func(u *unit) error {
		s.itemSeq++
		item.ID = s.itemSeq
		if item.CreatedAt.IsZero() {
			item.CreatedAt = s.now()
		}
		if item.State == nil {
			item.State = domain.Minted{}
		}
		if item.TokenID == "" {
			item.TokenID = fmt.Sprintf("%d", item.ID)
		}
		item = cloneItem(item)
		s.items[item.ID] = item
		id := item.ID
		u.record(func() {
			delete(s.items, id)
			s.itemSeq--
		})
		return nil
	})
	return cloneItem(item), err
}

func (st itemStore) GetByID(_ context.Context, id int64) (domain.Item, error) {
	var (
		item domain.Item
		ok   bool
	)
	view(st).read(func() { item, ok = st.s.items[id] })
	if !ok {
		return domain.Item{}, domain.ErrNotFound
	}
	return cloneItem(item), nil
}

func (st itemStore) List(_ context.Context, filter domain.ItemFilter, opts domain.ListOpts) ([]domain.Item, error) {
	var out []domain.Item
	view(st).read(func() {
		for _, id := range sortedKeys(st.s.items) {
			it := st.s.items[id]
			if filter.OwnerID != nil && it.OwnerID != *filter.OwnerID {
				continue
			}
			if filter.CreatorID != nil && it.CreatorID != *filter.CreatorID {
				continue
			}
			if filter.CollectionID != nil && (it.CollectionID == nil || *it.CollectionID != *filter.CollectionID) {
				continue
			}
			if filter.Status != "" && it.Status() != filter.Status {
				continue
			}
			if !inWindow(it.CreatedAt, opts) {
				continue
			}
			out = append(out, cloneItem(it))
		}
	})
	return page(out, opts), nil
}

func (st itemStore) UpdateState(ctx context.Context, id int64, state domain.ItemState) (domain.Item, error) {
	return st.update(id, func(it *domain.Item) { it.State = state })
}

func (st itemStore) TransferOwnership(ctx context.Context, id int64, ownerID int64, state domain.ItemState) (domain.Item, error) {
	return st.update(id, func(it *domain.Item) {
		it.OwnerID = ownerID
		it.State = state
	})
}

func (st itemStore) update(id int64, mutate func(*domain.Item)) (domain.Item, error) {
	s := st.s
	var out domain.Item
	err := view(st).write(func(u *unit) error {
		prev, ok := s.items[id]
		if !ok {
			return domain.ErrNotFound
		}
		next := cloneItem(prev)
		mutate(&next)
		s.items[id] = next
		u.record(func() { s.items[id] = prev })
		out = cloneItem(next)
		return nil
	})
	return out, err
}
