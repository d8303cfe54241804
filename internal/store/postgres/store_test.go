package postgres

import (
	"strings"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

func TestDSN(t *testing.T) {
	check.Equal(t, "postgres://u:p@db:5432/bazaar?sslmode=disable", DSN(ClientConfig{
		Host: "db", Database: "bazaar", User: "u", Password: "p",
	}))
	check.Equal(t, "postgres://explicit", DSN(ClientConfig{DSN: "postgres://explicit", Host: "ignored"}))
}

func TestQueryBuilders(t *testing.T) {
	since := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	query := "SELECT 1 FROM bids WHERE auction_id = $1"
	args := []any{int64(7)}

	query, args = window(query, args, "created_at", domain.ListOpts{Since: &since})
	query, args = paginate(query, args, domain.ListOpts{Limit: 10, Offset: 20})

	check.Equal(t, "SELECT 1 FROM bids WHERE auction_id = $1 AND created_at >= $2 LIMIT $3 OFFSET $4", query)
	check.Equal(t, []any{int64(7), since, 10, 20}, args)
}

func TestNumericRoundTrip(t *testing.T) {
	check.Nil(t, nullDecimalArg(decimal.NullDecimal{}))

	arg := nullDecimalArg(decimal.NewNullDecimal(decimal.RequireFromString("1.500000000000000000")))
	assert.NotNil(t, arg)

	back, err := parseNullDecimal(arg)
	assert.NoError(t, err)
	check.True(t, back.Valid)
	check.True(t, back.Decimal.Equal(decimal.RequireFromString("1.5")))

	_, err = parseDecimal("not-a-number")
	check.Error(t, err)
}

func TestMigrationsEmbedded(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/001_init.sql")
	assert.NoError(t, err)
	for _, table := range []string{"items", "auctions", "bids", "transactions", "audit_log", "users"} {
		check.True(t, strings.Contains(string(data), "CREATE TABLE IF NOT EXISTS "+table+" ("))
	}

	data, err = migrationsFS.ReadFile("migrations/002_collections.sql")
	assert.NoError(t, err)
	check.True(t, strings.Contains(string(data), "CREATE TABLE IF NOT EXISTS collections ("))
	check.True(t, strings.Contains(string(data), "REFERENCES collections (id)"))
}
