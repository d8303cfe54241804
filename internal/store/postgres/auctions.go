package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

const auctionColumns = `id, item_id, seller_id, starting_price::text, current_price::text,
	end_time, created_at, settled_at, outcome, transaction_id`

// AuctionStore implements domain.AuctionStore using PostgreSQL.
type AuctionStore struct {
	view
}

// Create inserts an auction.
func (s *AuctionStore) Create(ctx context.Context, a domain.Auction) (domain.Auction, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO auctions (item_id, seller_id, starting_price, current_price, end_time, created_at)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5, $6)
		RETURNING ` + auctionColumns
	out, err := scanAuction(s.q.QueryRow(ctx, query,
		a.ItemID, a.SellerID, decimalArg(a.StartingPrice), decimalArg(a.CurrentPrice), a.EndTime, a.CreatedAt,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			err = domain.ErrNotFound
		}
		return domain.Auction{}, fmt.Errorf("postgres: create auction for item %d: %w", a.ItemID, err)
	}
	return out, nil
}

// GetByID returns a single auction.
func (s *AuctionStore) GetByID(ctx context.Context, id int64) (domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1` + s.lock()
	a, err := scanAuction(s.q.QueryRow(ctx, query, id))
	if err != nil {
		return domain.Auction{}, fmt.Errorf("postgres: get auction %d: %w", id, notFound(err))
	}
	return a, nil
}

// ListDue returns unsettled auctions whose end time has passed.
func (s *AuctionStore) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Auction, error) {
	query := `
		SELECT ` + auctionColumns + `
		FROM auctions
		WHERE settled_at IS NULL AND end_time <= $1
		ORDER BY end_time ASC, id ASC`
	args := []any{now}
	query, args = paginate(query, args, domain.ListOpts{Limit: limit})

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list due auctions: %w", err)
	}
	out, err := collect(rows, scanAuction)
	if err != nil {
		return nil, fmt.Errorf("postgres: list due auctions: %w", err)
	}
	return out, nil
}

// UpdateCurrentPrice sets the auction's current price.
func (s *AuctionStore) UpdateCurrentPrice(ctx context.Context, id int64, price decimal.Decimal) (domain.Auction, error) {
	query := `UPDATE auctions SET current_price = $2::numeric WHERE id = $1 RETURNING ` + auctionColumns
	a, err := scanAuction(s.q.QueryRow(ctx, query, id, decimalArg(price)))
	if err != nil {
		return domain.Auction{}, fmt.Errorf("postgres: update auction %d price: %w", id, notFound(err))
	}
	return a, nil
}

// MarkSettled records the settlement. It fails with domain.ErrAlreadySettled
// if the auction was settled before.
func (s *AuctionStore) MarkSettled(ctx context.Context, id int64, outcome domain.AuctionOutcome, transactionID *int64, at time.Time) (domain.Auction, error) {
	query := `
		UPDATE auctions SET settled_at = $2, outcome = $3, transaction_id = $4
		WHERE id = $1 AND settled_at IS NULL
		RETURNING ` + auctionColumns
	a, err := scanAuction(s.q.QueryRow(ctx, query, id, at, string(outcome), transactionID))
	if err == nil {
		return a, nil
	}
	err = notFound(err)
	if errors.Is(err, domain.ErrNotFound) {
		var exists bool
		if qerr := s.q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM auctions WHERE id = $1)`, id).Scan(&exists); qerr == nil && exists {
			err = domain.ErrAlreadySettled
		}
	}
	return domain.Auction{}, fmt.Errorf("postgres: settle auction %d: %w", id, err)
}

func scanAuction(row scanner) (domain.Auction, error) {
	var (
		a                 domain.Auction
		starting, current string
		outcome           string
	)
	err := row.Scan(
		&a.ID, &a.ItemID, &a.SellerID, &starting, &current,
		&a.EndTime, &a.CreatedAt, &a.SettledAt, &outcome, &a.TransactionID,
	)
	if err != nil {
		return domain.Auction{}, err
	}
	a.Outcome = domain.AuctionOutcome(outcome)
	if a.StartingPrice, err = parseDecimal(starting); err != nil {
		return domain.Auction{}, err
	}
	if a.CurrentPrice, err = parseDecimal(current); err != nil {
		return domain.Auction{}, err
	}
	return a, nil
}
