package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestWriteErrorMapsKinds(t *testing.T) {
	tests := []struct {
		err    error
		status int
		kind   domain.ErrorKind
	}{
		{domain.ErrNotFound, http.StatusNotFound, domain.KindNotFound},
		{domain.ErrInvalidInput, http.StatusBadRequest, domain.KindInvalidInput},
		{domain.ErrSelfBid, http.StatusBadRequest, domain.KindSelfBid},
		{domain.ErrSelfPurchase, http.StatusBadRequest, domain.KindSelfPurchase},
		{domain.ErrNotOwner, http.StatusForbidden, domain.KindNotOwner},
		{domain.ErrAuctionClosed, http.StatusConflict, domain.KindAuctionClosed},
		{domain.ErrBidTooLow, http.StatusConflict, domain.KindBidTooLow},
		{domain.ErrStaleBid, http.StatusConflict, domain.KindStaleBid},
		{domain.ErrNotForSale, http.StatusConflict, domain.KindNotForSale},
		{domain.ErrInvalidItemState, http.StatusConflict, domain.KindInvalidItemState},
		{domain.ErrAuctionOpen, http.StatusConflict, domain.KindAuctionOpen},
		{domain.ErrAlreadySettled, http.StatusConflict, domain.KindAlreadySettled},
		{domain.ErrRateLimited, http.StatusTooManyRequests, domain.KindRateLimited},
		{domain.ErrLockHeld, http.StatusServiceUnavailable, domain.KindLockHeld},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			writeError(rec, req, discard(), fmt.Errorf("svc: op: %w", tt.err))

			check.Equal(t, tt.status, rec.Code)
			var body errorResponse
			assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			check.Equal(t, tt.kind, body.Kind)
			check.True(t, strings.Contains(body.Error, tt.err.Error()))
		})
	}
}

func TestWriteErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	writeError(rec, req, discard(), errors.New("pq: connection refused to 10.0.0.5"))

	check.Equal(t, http.StatusInternalServerError, rec.Code)
	var body errorResponse
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	check.Equal(t, domain.KindInternal, body.Kind)
	check.Equal(t, "internal server error", body.Error)
}

func TestDecodeJSON(t *testing.T) {
	var dst purchaseRequest

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"buyer_id": 4}`))
	assert.NoError(t, decodeJSON(req, &dst))
	check.Equal(t, int64(4), dst.BuyerID)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"buyer": 4}`))
	check.True(t, errors.Is(decodeJSON(req, &dst), domain.ErrInvalidInput))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(``))
	check.True(t, errors.Is(decodeJSON(req, &dst), domain.ErrInvalidInput))
}

func TestParseListOpts(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=9999&offset=-3&since=2026-01-02T03:04:05Z&until=bogus", nil)
	opts := parseListOpts(req)
	check.Equal(t, 500, opts.Limit)
	check.Equal(t, 0, opts.Offset)
	assert.NotNil(t, opts.Since)
	check.Equal(t, 2026, opts.Since.Year())
	check.Nil(t, opts.Until)
}

func TestPathAndQueryIDs(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/items/abc?owner_id=0", nil)
	req.SetPathValue("id", "abc")

	_, err := pathID(req, "id")
	check.True(t, errors.Is(err, domain.ErrInvalidInput))
	_, err = queryID(req, "owner_id")
	check.True(t, errors.Is(err, domain.ErrInvalidInput))

	missing, err := queryID(req, "creator_id")
	check.NoError(t, err)
	check.Nil(t, missing)

	req.SetPathValue("id", "12")
	id, err := pathID(req, "id")
	check.NoError(t, err)
	check.Equal(t, int64(12), id)
}
