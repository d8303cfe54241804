package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

const transactionColumns = `id, item_id, auction_id, kind, seller_id, buyer_id,
	price::text, currency, tx_hash, created_at`

// TransactionStore implements domain.TransactionStore using PostgreSQL.
type TransactionStore struct {
	view
}

// Create records a completed transfer.
func (s *TransactionStore) Create(ctx context.Context, t domain.Transaction) (domain.Transaction, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO transactions (item_id, auction_id, kind, seller_id, buyer_id, price, currency, tx_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9)
		RETURNING ` + transactionColumns
	out, err := scanTransaction(s.q.QueryRow(ctx, query,
		t.ItemID, t.AuctionID, string(t.Kind), t.SellerID, t.BuyerID,
		decimalArg(t.Price), t.Currency, t.TxHash, t.CreatedAt,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			err = domain.ErrNotFound
		}
		return domain.Transaction{}, fmt.Errorf("postgres: create transaction for item %d: %w", t.ItemID, err)
	}
	return out, nil
}

// GetByID returns a single transaction.
func (s *TransactionStore) GetByID(ctx context.Context, id int64) (domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	t, err := scanTransaction(s.q.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("postgres: get transaction %d: %w", id, notFound(err))
	}
	return t, nil
}

// ListByUser returns transactions the user bought or sold, newest first.
func (s *TransactionStore) ListByUser(ctx context.Context, userID int64, opts domain.ListOpts) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE (buyer_id = $1 OR seller_id = $1)`
	args := []any{userID}
	query, args = window(query, args, "created_at", opts)
	query += " ORDER BY id DESC"
	query, args = paginate(query, args, opts)

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions for user %d: %w", userID, err)
	}
	txns, err := collect(rows, scanTransaction)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions for user %d: %w", userID, err)
	}
	return txns, nil
}

// ListBefore returns transactions created before the cutoff, oldest first.
func (s *TransactionStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE created_at < $1 ORDER BY id ASC`
	rows, err := s.q.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions before: %w", err)
	}
	txns, err := collect(rows, scanTransaction)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions before: %w", err)
	}
	return txns, nil
}

func scanTransaction(row scanner) (domain.Transaction, error) {
	var (
		t     domain.Transaction
		kind  string
		price string
	)
	err := row.Scan(
		&t.ID, &t.ItemID, &t.AuctionID, &kind, &t.SellerID, &t.BuyerID,
		&price, &t.Currency, &t.TxHash, &t.CreatedAt,
	)
	if err != nil {
		return domain.Transaction{}, err
	}
	t.Kind = domain.TransactionKind(kind)
	if t.Price, err = parseDecimal(price); err != nil {
		return domain.Transaction{}, err
	}
	return t, nil
}
