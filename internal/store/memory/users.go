package memory

import (
	"context"
	"sync"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

// UserDirectory is a fixed set of users, typically seeded from config.
type UserDirectory struct {
	mu    sync.RWMutex
	users map[int64]domain.User
}

// NewUserDirectory creates a directory holding users.
func NewUserDirectory(users ...domain.User) *UserDirectory {
	d := &UserDirectory{users: make(map[int64]domain.User, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

// Add registers or replaces a user.
func (d *UserDirectory) Add(u domain.User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

// GetUser returns the user with id or domain.ErrNotFound.
func (d *UserDirectory) GetUser(_ context.Context, id int64) (domain.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

// AuditStore keeps the audit log in a slice.
type AuditStore struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	seq     int64
}

// NewAuditStore creates an empty AuditStore.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

// Log appends an entry.
func (a *AuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	a.entries = append(a.entries, domain.AuditEntry{
		ID:        a.seq,
		Event:     event,
		Detail:    detail,
		CreatedAt: nowUTC(),
	})
	return nil
}

// List returns entries newest first.
func (a *AuditStore) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AuditEntry, 0, len(a.entries))
	for i := len(a.entries) - 1; i >= 0; i-- {
		if inWindow(a.entries[i].CreatedAt, opts) {
			out = append(out, a.entries[i])
		}
	}
	return page(out, opts), nil
}

var (
	_ domain.UserDirectory = (*UserDirectory)(nil)
	_ domain.AuditStore    = (*AuditStore)(nil)
)
