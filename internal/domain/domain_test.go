package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

func TestKindOfUnwrapsSentinels(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{ErrNotFound, KindNotFound},
		{fmt.Errorf("bid_service: place bid: %w", ErrBidTooLow), KindBidTooLow},
		{fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", ErrAuctionClosed)), KindAuctionClosed},
		{ErrSelfPurchase, KindSelfPurchase},
		{ErrStaleBid, KindStaleBid},
		{fmt.Errorf("boom"), KindInternal},
	}
	for _, tc := range cases {
		t.Run(string(tc.want), func(t *testing.T) {
			check.Equal(t, tc.want, KindOf(tc.err))
		})
	}
}

func TestAuctionOpenBoundary(t *testing.T) {
	end := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	a := Auction{EndTime: end}

	check.True(t, a.IsOpen(end.Add(-time.Nanosecond)))
	check.False(t, a.IsOpen(end))
	check.False(t, a.IsOpen(end.Add(time.Second)))

	check.Equal(t, AuctionStatusOpen, a.StatusAt(end.Add(-time.Minute)))
	check.Equal(t, AuctionStatusClosed, a.StatusAt(end))

	settled := end.Add(time.Minute)
	a.SettledAt = &settled
	check.Equal(t, AuctionStatusSettled, a.StatusAt(end))
}

func TestStateColumnsRoundTrip(t *testing.T) {
	price := decimal.RequireFromString("2.5")
	states := []ItemState{
		Minted{},
		Listed{Price: price},
		Auctioning{AuctionID: 7, PriorPrice: decimal.NewNullDecimal(price)},
		Auctioning{AuctionID: 8},
		Sold{TransactionID: 3},
	}
	for _, s := range states {
		t.Run(string(s.Status()), func(t *testing.T) {
			got, err := StateFromColumns(Columns(s))
			assert.NoError(t, err)
			check.Equal(t, s.Status(), got.Status())
			switch want := s.(type) {
			case Listed:
				check.True(t, want.Price.Equal(got.(Listed).Price))
			case Auctioning:
				g := got.(Auctioning)
				check.Equal(t, want.AuctionID, g.AuctionID)
				check.Equal(t, want.PriorPrice.Valid, g.PriorPrice.Valid)
			case Sold:
				check.Equal(t, want.TransactionID, got.(Sold).TransactionID)
			}
		})
	}
}

func TestStateFromColumnsRejectsIllegalRows(t *testing.T) {
	_, err := StateFromColumns(StateColumns{Status: ItemStatusListed})
	check.Error(t, err)
	_, err = StateFromColumns(StateColumns{Status: ItemStatusAuctioning})
	check.Error(t, err)
	_, err = StateFromColumns(StateColumns{Status: "burned"})
	check.Error(t, err)
}

func TestItemJSONProjectsState(t *testing.T) {
	item := Item{ID: 1, OwnerID: 4, State: Listed{Price: decimal.RequireFromString("2")}}
	raw, err := json.Marshal(item)
	assert.NoError(t, err)
	check.True(t, strings.Contains(string(raw), `"status":"listed"`))
	check.True(t, strings.Contains(string(raw), `"price":"2"`))

	item.State = Auctioning{AuctionID: 9, PriorPrice: decimal.NewNullDecimal(decimal.RequireFromString("2"))}
	raw, err = json.Marshal(item)
	assert.NoError(t, err)
	check.True(t, strings.Contains(string(raw), `"price":null`))
	check.True(t, strings.Contains(string(raw), `"auction_id":9`))
}

func TestTransferHashIsStable(t *testing.T) {
	at := time.Unix(1700000000, 0)
	p := decimal.RequireFromString("1.5")
	h1 := TransferHash(1, 2, 3, p, "ETH", at)
	h2 := TransferHash(1, 2, 3, p, "ETH", at)
	check.Equal(t, h1, h2)
	check.Equal(t, 66, len(h1))
	check.True(t, strings.HasPrefix(h1, "0x"))
	check.NotEqual(t, h1, TransferHash(1, 2, 4, p, "ETH", at))
}
