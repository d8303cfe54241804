package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

// UserDirectory implements domain.UserDirectory over the users table.
type UserDirectory struct {
	pool *pgxpool.Pool
}

// NewUserDirectory creates a UserDirectory backed by the given pool.
func NewUserDirectory(pool *pgxpool.Pool) *UserDirectory {
	return &UserDirectory{pool: pool}
}

// GetUser returns the user or domain.ErrNotFound.
func (d *UserDirectory) GetUser(ctx context.Context, id int64) (domain.User, error) {
	const query = `SELECT id, display_name, wallet_address FROM users WHERE id = $1`
	var u domain.User
	err := d.pool.QueryRow(ctx, query, id).Scan(&u.ID, &u.DisplayName, &u.WalletAddress)
	if err != nil {
		return domain.User{}, fmt.Errorf("postgres: get user %d: %w", id, notFound(err))
	}
	return u, nil
}

// Seed upserts users in one batch.
func (d *UserDirectory) Seed(ctx context.Context, users []domain.User) error {
	if len(users) == 0 {
		return nil
	}
	const query = `
		INSERT INTO users (id, display_name, wallet_address)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			display_name   = EXCLUDED.display_name,
			wallet_address = EXCLUDED.wallet_address`

	batch := &pgx.Batch{}
	for _, u := range users {
		batch.Queue(query, u.ID, u.DisplayName, u.WalletAddress)
	}
	br := d.pool.SendBatch(ctx, batch)
	defer br.Close()
	for _, u := range users {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: seed user %d: %w", u.ID, err)
		}
	}
	return nil
}

var _ domain.UserDirectory = (*UserDirectory)(nil)
