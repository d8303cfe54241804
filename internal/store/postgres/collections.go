package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

const collectionColumns = `id, name, description, banner_url, creator_id, created_at`

// CollectionStore implements domain.CollectionStore using PostgreSQL.
type CollectionStore struct {
	view
}

// Create inserts a collection.
func (s *CollectionStore) Create(ctx context.Context, c domain.Collection) (domain.Collection, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO collections (name, description, banner_url, creator_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + collectionColumns
	out, err := scanCollection(s.q.QueryRow(ctx, query,
		c.Name, c.Description, c.BannerURL, c.CreatorID, c.CreatedAt,
	))
	if err != nil {
		return domain.Collection{}, fmt.Errorf("postgres: create collection: %w", err)
	}
	return out, nil
}

// GetByID returns a single collection. Collections are never updated, so
// the row is not locked.
func (s *CollectionStore) GetByID(ctx context.Context, id int64) (domain.Collection, error) {
	query := `SELECT ` + collectionColumns + ` FROM collections WHERE id = $1`
	c, err := scanCollection(s.q.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Collection{}, fmt.Errorf("postgres: get collection %d: %w", id, notFound(err))
	}
	return c, nil
}

// List returns collections matching f in id order.
func (s *CollectionStore) List(ctx context.Context, f domain.CollectionFilter, opts domain.ListOpts) ([]domain.Collection, error) {
	query := `SELECT ` + collectionColumns + ` FROM collections WHERE 1=1`
	var args []any
	if f.CreatorID != nil {
		query, args = filter(query, args, "creator_id = $%d", *f.CreatorID)
	}
	query, args = window(query, args, "created_at", opts)
	query += " ORDER BY id ASC"
	query, args = paginate(query, args, opts)

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list collections: %w", err)
	}
	out, err := collect(rows, scanCollection)
	if err != nil {
		return nil, fmt.Errorf("postgres: list collections: %w", err)
	}
	return out, nil
}

func scanCollection(row scanner) (domain.Collection, error) {
	var c domain.Collection
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.BannerURL, &c.CreatorID, &c.CreatedAt)
	return c, err
}
