package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

const itemColumns = `id, name, description, image_url, creator_id, owner_id,
	status, price::text, auction_id, transaction_id, collection_id,
	properties, token_id, mint_hash, created_at`

// ItemStore implements domain.ItemStore using PostgreSQL.
type ItemStore struct {
	view
}

// Create inserts an item. An empty TokenID defaults to the item id.
func (s *ItemStore) Create(ctx context.Context, item domain.Item) (domain.Item, error) {
	if item.State == nil {
		item.State = domain.Minted{}
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	props, err := json.Marshal(orEmpty(item.Properties))
	if err != nil {
		return domain.Item{}, fmt.Errorf("postgres: marshal item properties: %w", err)
	}
	cols := domain.Columns(item.State)

	query := `
		WITH next AS (SELECT nextval(pg_get_serial_sequence('items', 'id')) AS id)
		INSERT INTO items (
			id, name, description, image_url, creator_id, owner_id,
			status, price, auction_id, transaction_id, collection_id,
			properties, token_id, mint_hash, created_at
		)
		SELECT
			next.id, $1, $2, $3, $4, $5,
			$6, $7::numeric, $8, $9, $10,
			$11, COALESCE(NULLIF($12, ''), next.id::text), $13, $14
		FROM next
		RETURNING ` + itemColumns

	out, err := scanItem(s.q.QueryRow(ctx, query,
		item.Name, item.Description, item.ImageURL, item.CreatorID, item.OwnerID,
		string(cols.Status), nullDecimalArg(cols.Price), cols.AuctionID, cols.TransactionID, item.CollectionID,
		props, item.TokenID, item.MintHash, item.CreatedAt,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			err = domain.ErrNotFound
		}
		return domain.Item{}, fmt.Errorf("postgres: create item: %w", err)
	}
	return out, nil
}

// GetByID returns a single item.
func (s *ItemStore) GetByID(ctx context.Context, id int64) (domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1` + s.lock()
	item, err := scanItem(s.q.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Item{}, fmt.Errorf("postgres: get item %d: %w", id, notFound(err))
	}
	return item, nil
}

// List returns items matching f in id order.
func (s *ItemStore) List(ctx context.Context, f domain.ItemFilter, opts domain.ListOpts) ([]domain.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE 1=1`
	var args []any
	if f.OwnerID != nil {
		query, args = filter(query, args, "owner_id = $%d", *f.OwnerID)
	}
	if f.CreatorID != nil {
		query, args = filter(query, args, "creator_id = $%d", *f.CreatorID)
	}
	if f.CollectionID != nil {
		query, args = filter(query, args, "collection_id = $%d", *f.CollectionID)
	}
	if f.Status != "" {
		query, args = filter(query, args, "status = $%d", string(f.Status))
	}
	query, args = window(query, args, "created_at", opts)
	query += " ORDER BY id ASC"
	query, args = paginate(query, args, opts)

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list items: %w", err)
	}
	items, err := collect(rows, scanItem)
	if err != nil {
		return nil, fmt.Errorf("postgres: list items: %w", err)
	}
	return items, nil
}

// UpdateState replaces the item's state columns.
func (s *ItemStore) UpdateState(ctx context.Context, id int64, state domain.ItemState) (domain.Item, error) {
	cols := domain.Columns(state)
	query := `
		UPDATE items SET
			status = $2, price = $3::numeric, auction_id = $4,
			transaction_id = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + itemColumns
	item, err := scanItem(s.q.QueryRow(ctx, query,
		id, string(cols.Status), nullDecimalArg(cols.Price), cols.AuctionID, cols.TransactionID,
	))
	if err != nil {
		return domain.Item{}, fmt.Errorf("postgres: update item %d state: %w", id, notFound(err))
	}
	return item, nil
}

// TransferOwnership sets the owner and state together.
func (s *ItemStore) TransferOwnership(ctx context.Context, id int64, ownerID int64, state domain.ItemState) (domain.Item, error) {
	cols := domain.Columns(state)
	query := `
		UPDATE items SET
			owner_id = $2, status = $3, price = $4::numeric, auction_id = $5,
			transaction_id = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + itemColumns
	item, err := scanItem(s.q.QueryRow(ctx, query,
		id, ownerID, string(cols.Status), nullDecimalArg(cols.Price), cols.AuctionID, cols.TransactionID,
	))
	if err != nil {
		return domain.Item{}, fmt.Errorf("postgres: transfer item %d: %w", id, notFound(err))
	}
	return item, nil
}

func scanItem(row scanner) (domain.Item, error) {
	var (
		it     domain.Item
		status string
		price  *string
		props  []byte
		cols   domain.StateColumns
	)
	err := row.Scan(
		&it.ID, &it.Name, &it.Description, &it.ImageURL, &it.CreatorID, &it.OwnerID,
		&status, &price, &cols.AuctionID, &cols.TransactionID, &it.CollectionID,
		&props, &it.TokenID, &it.MintHash, &it.CreatedAt,
	)
	if err != nil {
		return domain.Item{}, err
	}
	cols.Status = domain.ItemStatus(status)
	if cols.Price, err = parseNullDecimal(price); err != nil {
		return domain.Item{}, err
	}
	if it.State, err = domain.StateFromColumns(cols); err != nil {
		return domain.Item{}, fmt.Errorf("item %d: %w", it.ID, err)
	}
	if len(props) > 0 {
		if err := json.Unmarshal(props, &it.Properties); err != nil {
			return domain.Item{}, fmt.Errorf("item %d properties: %w", it.ID, err)
		}
		if len(it.Properties) == 0 {
			it.Properties = nil
		}
	}
	return it, nil
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
