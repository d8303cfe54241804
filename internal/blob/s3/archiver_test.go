package s3blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
	"github.com/adityakrmishra/BlockChainBazaar/internal/store/memory"
)

type memBlobs struct {
	objects map[string][]byte
}

func (m *memBlobs) Put(_ context.Context, path string, data io.Reader, _ string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.objects[path] = b
	return nil
}

func (m *memBlobs) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return m.Put(ctx, path, data, "")
}

func (m *memBlobs) Get(_ context.Context, path string) (io.ReadCloser, error) {
	b, ok := m.objects[path]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *memBlobs) List(_ context.Context, prefix string) ([]domain.BlobInfo, error) {
	var out []domain.BlobInfo
	for p, b := range m.objects {
		if strings.HasPrefix(p, prefix) {
			out = append(out, domain.BlobInfo{Path: p, Size: int64(len(b))})
		}
	}
	return out, nil
}

func (m *memBlobs) Exists(_ context.Context, path string) (bool, error) {
	_, ok := m.objects[path]
	return ok, nil
}

func TestArchiveTransactions(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	audit := memory.NewAuditStore()
	blobs := &memBlobs{objects: map[string][]byte{}}
	old := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, at := range []time.Time{old, old.Add(time.Hour), cutoff.Add(time.Hour)} {
		_, err := store.Transactions().Create(ctx, domain.Transaction{
			ItemID:    int64(i + 1),
			Kind:      domain.TransactionKindDirect,
			SellerID:  1,
			BuyerID:   2,
			Price:     decimal.NewFromInt(int64(i + 1)),
			Currency:  "ETH",
			CreatedAt: at,
		})
		assert.NoError(t, err)
	}

	arch := NewArchiver(blobs, blobs, store.Transactions(), store.Bids(), audit, slog.New(slog.NewTextHandler(io.Discard, nil)))
	n, err := arch.ArchiveTransactions(ctx, cutoff)
	assert.NoError(t, err)
	check.Equal(t, int64(2), n)

	path := "archive/transactions/2026-03/20260301T000000Z.jsonl"
	body, ok := blobs.objects[path]
	assert.True(t, ok)
	check.Equal(t, 2, strings.Count(string(body), "\n"))

	n, err = arch.ArchiveTransactions(ctx, cutoff)
	assert.NoError(t, err)
	check.Equal(t, int64(0), n)

	entries, err := audit.List(ctx, domain.ListOpts{})
	assert.NoError(t, err)
	assert.Equal(t, 1, len(entries))
	check.Equal(t, "archive.transactions", entries[0].Event)

	n, err = arch.ArchiveBids(ctx, cutoff)
	assert.NoError(t, err)
	check.Equal(t, int64(0), n)

	infos, err := arch.ListArchives(ctx, "transactions")
	assert.NoError(t, err)
	assert.Equal(t, 1, len(infos))
	check.Equal(t, path, infos[0].Path)

	restored, err := arch.ReadTransactions(ctx, path)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(restored))
	check.True(t, restored[0].Price.Equal(decimal.NewFromInt(1)))
	check.Equal(t, int64(2), restored[1].ItemID)

	_, err = arch.ReadBids(ctx, "archive/bids/missing.jsonl")
	check.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestNormaliseEndpoint(t *testing.T) {
	check.Equal(t, "https://s3.local", normaliseEndpoint("s3.local", true))
	check.Equal(t, "http://s3.local", normaliseEndpoint("s3.local", false))
	check.Equal(t, "https://s3.example.com", normaliseEndpoint("https://s3.example.com", false))
}
