package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

// querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// scanner abstracts pgx.Row and pgx.Rows for shared scan helpers.
type scanner interface {
	Scan(dest ...any) error
}

// Store implements domain.Store on PostgreSQL. Reads outside Atomic go
// straight to the pool; inside Atomic they run in one transaction and lock
// the rows they read.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

type view struct {
	q         querier
	forUpdate bool
}

func (v view) Collections() domain.CollectionStore   { return &CollectionStore{view: v} }
func (v view) Items() domain.ItemStore               { return &ItemStore{view: v} }
func (v view) Auctions() domain.AuctionStore         { return &AuctionStore{view: v} }
func (v view) Bids() domain.BidStore                 { return &BidStore{view: v} }
func (v view) Transactions() domain.TransactionStore { return &TransactionStore{view: v} }

// lock returns the row-locking suffix for single-row reads.
func (v view) lock() string {
	if v.forUpdate {
		return " FOR UPDATE"
	}
	return ""
}

func (s *Store) Collections() domain.CollectionStore   { return view{q: s.pool}.Collections() }
func (s *Store) Items() domain.ItemStore               { return view{q: s.pool}.Items() }
func (s *Store) Auctions() domain.AuctionStore         { return view{q: s.pool}.Auctions() }
func (s *Store) Bids() domain.BidStore                 { return view{q: s.pool}.Bids() }
func (s *Store) Transactions() domain.TransactionStore { return view{q: s.pool}.Transactions() }

// Atomic runs fn in a single read-committed transaction. Rows read through
// the Tx are locked until commit.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	if err := fn(ctx, view{q: tx, forUpdate: true}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// notFound maps pgx.ErrNoRows to domain.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

// isForeignKeyViolation reports whether err is a 23503 error.
func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

// Numeric columns travel as text so no precision is lost on either side.

func decimalArg(d decimal.Decimal) string { return d.String() }

func nullDecimalArg(d decimal.NullDecimal) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.String()
	return &s
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("postgres: parse numeric %q: %w", s, err)
	}
	return d, nil
}

func parseNullDecimal(s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := parseDecimal(*s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

// filter appends "AND <cond>" with the next positional argument. cond holds
// a single %d verb for the placeholder index.
func filter(query string, args []any, cond string, val any) (string, []any) {
	args = append(args, val)
	return query + " AND " + fmt.Sprintf(cond, len(args)), args
}

// window applies ListOpts.Since and Until to col.
func window(query string, args []any, col string, opts domain.ListOpts) (string, []any) {
	if opts.Since != nil {
		query, args = filter(query, args, col+" >= $%d", *opts.Since)
	}
	if opts.Until != nil {
		query, args = filter(query, args, col+" <= $%d", *opts.Until)
	}
	return query, args
}

// paginate appends LIMIT and OFFSET clauses.
func paginate(query string, args []any, opts domain.ListOpts) (string, []any) {
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

// collect scans every row with scan.
func collect[T any](rows pgx.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

var _ domain.Store = (*Store)(nil)
