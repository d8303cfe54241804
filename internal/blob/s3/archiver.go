package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adityakrmishra/BlockChainBazaar/internal/domain"
)

const jsonlContentType = "application/x-ndjson"

// TransactionArchiveStore lists transactions for archival.
type TransactionArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Transaction, error)
}

// BidArchiveStore lists bids for archival.
type BidArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Bid, error)
}

// ArchiveImpl implements domain.Archiver. It copies history older than a
// cutoff to JSONL objects; it never deletes from the entity store.
type ArchiveImpl struct {
	writer       domain.BlobWriter
	reader       domain.BlobReader
	transactions TransactionArchiveStore
	bids         BidArchiveStore
	audit        domain.AuditStore
	logger       *slog.Logger
}

// NewArchiver creates an ArchiveImpl. reader may be nil, in which case
// existing archive objects are overwritten.
func NewArchiver(
	writer domain.BlobWriter,
	reader domain.BlobReader,
	transactions TransactionArchiveStore,
	bids BidArchiveStore,
	audit domain.AuditStore,
	logger *slog.Logger,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer:       writer,
		reader:       reader,
		transactions: transactions,
		bids:         bids,
		audit:        audit,
		logger:       logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveTransactions uploads every transaction created before the cutoff
// and returns how many were written.
func (a *ArchiveImpl) ArchiveTransactions(ctx context.Context, before time.Time) (int64, error) {
	txns, err := a.transactions.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive transactions query: %w", err)
	}
	return archive(ctx, a, "transactions", before, txns)
}

// ArchiveBids uploads every bid placed before the cutoff and returns how many
// were written.
func (a *ArchiveImpl) ArchiveBids(ctx context.Context, before time.Time) (int64, error) {
	bids, err := a.bids.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive bids query: %w", err)
	}
	return archive(ctx, a, "bids", before, bids)
}

func archive[T any](ctx context.Context, a *ArchiveImpl, kind string, before time.Time, records []T) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	path := archivePath(kind, before)
	if a.reader != nil {
		exists, err := a.reader.Exists(ctx, path)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive %s: %w", kind, err)
		}
		if exists {
			a.logger.InfoContext(ctx, "archive already present", slog.String("path", path))
			return 0, nil
		}
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
	}
	if int64(len(buf)) > minPartSize {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
	}

	count := int64(len(records))
	if err := a.audit.Log(ctx, "archive."+kind, map[string]any{
		"path":   path,
		"count":  count,
		"bytes":  len(buf),
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive %s audit log: %w", kind, err)
	}
	a.logger.InfoContext(ctx, "archive written",
		slog.String("path", path),
		slog.Int64("count", count),
	)
	return count, nil
}

// ListArchives returns the archive objects written for kind ("transactions"
// or "bids"), in the order the store lists them.
func (a *ArchiveImpl) ListArchives(ctx context.Context, kind string) ([]domain.BlobInfo, error) {
	if a.reader == nil {
		return nil, errors.New("s3blob: list archives: no reader configured")
	}
	infos, err := a.reader.List(ctx, "archive/"+kind+"/")
	if err != nil {
		return nil, fmt.Errorf("s3blob: list archives: %w", err)
	}
	return infos, nil
}

// ReadTransactions decodes a transactions archive written by
// ArchiveTransactions.
func (a *ArchiveImpl) ReadTransactions(ctx context.Context, path string) ([]domain.Transaction, error) {
	return readArchive[domain.Transaction](ctx, a.reader, path)
}

// ReadBids decodes a bids archive written by ArchiveBids.
func (a *ArchiveImpl) ReadBids(ctx context.Context, path string) ([]domain.Bid, error) {
	return readArchive[domain.Bid](ctx, a.reader, path)
}

func readArchive[T any](ctx context.Context, reader domain.BlobReader, path string) ([]T, error) {
	if reader == nil {
		return nil, errors.New("s3blob: read archive: no reader configured")
	}
	body, err := reader.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("s3blob: read archive: %w", err)
	}
	defer body.Close()

	var out []T
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec T
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("s3blob: read archive %s line %d: %w", path, len(out)+1, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("s3blob: read archive %s: %w", path, err)
	}
	return out, nil
}

// archivePath partitions archives by cutoff month and names each file by the
// exact cutoff, e.g. archive/bids/2026-03/20260301T000000Z.jsonl.
func archivePath(kind string, before time.Time) string {
	before = before.UTC()
	return fmt.Sprintf("archive/%s/%s/%s.jsonl", kind, before.Format("2006-01"), before.Format("20060102T150405Z"))
}

// marshalJSONL encodes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*ArchiveImpl)(nil)
