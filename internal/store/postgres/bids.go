package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

const bidColumns = `id, auction_id, bidder_id, amount::text, currency, created_at`

// BidStore implements domain.BidStore using PostgreSQL.
type BidStore struct {
	view
}

// Create appends a bid. A missing auction is reported as domain.ErrNotFound.
func (s *BidStore) Create(ctx context.Context, b domain.Bid) (domain.Bid, error) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO bids (auction_id, bidder_id, amount, currency, created_at)
		VALUES ($1, $2, $3::numeric, $4, $5)
		RETURNING ` + bidColumns
	out, err := scanBid(s.q.QueryRow(ctx, query,
		b.AuctionID, b.BidderID, decimalArg(b.Amount), b.Currency, b.CreatedAt,
	))
	if err != nil {
		if isForeignKeyViolation(err) {
			err = domain.ErrNotFound
		}
		return domain.Bid{}, fmt.Errorf("postgres: create bid on auction %d: %w", b.AuctionID, err)
	}
	return out, nil
}

// Highest returns the auction's highest bid.
func (s *BidStore) Highest(ctx context.Context, auctionID int64) (domain.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE auction_id = $1 ORDER BY amount DESC, id DESC LIMIT 1`
	b, err := scanBid(s.q.QueryRow(ctx, query, auctionID))
	if err != nil {
		return domain.Bid{}, fmt.Errorf("postgres: highest bid on auction %d: %w", auctionID, notFound(err))
	}
	return b, nil
}

// ListByAuction returns the auction's bids, most recent first.
func (s *BidStore) ListByAuction(ctx context.Context, auctionID int64, opts domain.ListOpts) ([]domain.Bid, error) {
	return s.list(ctx, "auction_id", auctionID, opts)
}

// ListByBidder returns the bidder's bids, most recent first.
func (s *BidStore) ListByBidder(ctx context.Context, bidderID int64, opts domain.ListOpts) ([]domain.Bid, error) {
	return s.list(ctx, "bidder_id", bidderID, opts)
}

func (s *BidStore) list(ctx context.Context, col string, id int64, opts domain.ListOpts) ([]domain.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE ` + col + ` = $1`
	args := []any{id}
	query, args = window(query, args, "created_at", opts)
	query += " ORDER BY id DESC"
	query, args = paginate(query, args, opts)

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bids by %s: %w", col, err)
	}
	bids, err := collect(rows, scanBid)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bids by %s: %w", col, err)
	}
	return bids, nil
}

// ListBefore returns bids created before the cutoff, oldest first.
func (s *BidStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE created_at < $1 ORDER BY id ASC`
	rows, err := s.q.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bids before: %w", err)
	}
	bids, err := collect(rows, scanBid)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bids before: %w", err)
	}
	return bids, nil
}

func scanBid(row scanner) (domain.Bid, error) {
	var (
		b      domain.Bid
		amount string
	)
	if err := row.Scan(&b.ID, &b.AuctionID, &b.BidderID, &amount, &b.Currency, &b.CreatedAt); err != nil {
		return domain.Bid{}, err
	}
	var err error
	if b.Amount, err = parseDecimal(amount); err != nil {
		return domain.Bid{}, err
	}
	return b, nil
}
