package natsbus

import (
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestSubjectMapping(t *testing.T) {
	check.Equal(t, "bazaar.auction.7", subject("bazaar", "auction:7"))
	check.Equal(t, "bazaar.auction.*", subject("bazaar", "auction:*"))
	check.Equal(t, "bazaar.market", subject("bazaar", "market"))
	check.Equal(t, "bazaar.stream.market.events", subject("bazaar.stream", "market:events"))
}

func TestStreamName(t *testing.T) {
	check.Equal(t, "MARKET_EVENTS", streamName("market:events"))
	check.Equal(t, "BIDS_2026", streamName("bids.2026"))
}

func TestStreamIDs(t *testing.T) {
	seq, err := parseID("42-0")
	assert.NoError(t, err)
	check.Equal(t, uint64(42), seq)

	seq, err = parseID("0")
	assert.NoError(t, err)
	check.Equal(t, uint64(0), seq)

	_, err = parseID("abc")
	check.Error(t, err)

	check.Equal(t, "7-0", formatID(7))
}
