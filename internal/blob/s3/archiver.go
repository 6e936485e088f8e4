package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tradeleague/internal/domain"
)

// ArchiverConfig bounds an archival run.
type ArchiverConfig struct {
	// Retention is how long terminal records stay in the primary store.
	Retention time.Duration
	// BatchSize caps how many records one object holds.
	BatchSize int
	// Prefix is the object key prefix, e.g. "archive/transactions".
	Prefix string
}

// Archiver exports terminal transaction records older than the retention
// window to blob storage as JSONL, then prunes them from the primary store.
// An object is only pruned after its upload succeeded.
type Archiver struct {
	writer domain.BlobWriter
	store  domain.TransactionStore
	cfg    ArchiverConfig
	logger *slog.Logger

	now func() time.Time
}

// NewArchiver creates an Archiver.
func NewArchiver(writer domain.BlobWriter, store domain.TransactionStore, cfg ArchiverConfig, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		store:  store,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "archiver")),
		now:    time.Now,
	}
}

// Run archives every batch of expired terminal records until none remain.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := a.now().UTC().Add(-a.cfg.Retention)

	var archived int
	for {
		records, err := a.store.ListTerminalBefore(ctx, cutoff, a.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("s3blob: list expired records: %w", err)
		}
		if len(records) == 0 {
			break
		}

		if err := a.archiveBatch(ctx, records); err != nil {
			return err
		}
		archived += len(records)

		if len(records) < a.cfg.BatchSize {
			break
		}
	}

	a.logger.InfoContext(ctx, "archival run complete",
		slog.Int("archived", archived),
		slog.Time("cutoff", cutoff),
	)
	return nil
}

func (a *Archiver) archiveBatch(ctx context.Context, records []domain.TransactionRecord) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("s3blob: encode record %s: %w", rec.ID, err)
		}
		ids = append(ids, rec.ID)
	}

	path := a.objectPath()
	if err := a.writer.Put(ctx, path, &buf, "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: upload archive %s: %w", path, err)
	}

	if err := a.store.DeleteByIDs(ctx, ids); err != nil {
		// The object is already uploaded; a retry next run re-archives the
		// same rows harmlessly.
		return fmt.Errorf("s3blob: prune archived records: %w", err)
	}

	a.logger.InfoContext(ctx, "batch archived",
		slog.String("path", path),
		slog.Int("records", len(ids)),
	)
	return nil
}

// objectPath builds a date-partitioned key with a unique timestamp suffix.
func (a *Archiver) objectPath() string {
	now := a.now().UTC()
	return fmt.Sprintf("%s/%s/transactions-%d.jsonl",
		a.cfg.Prefix, now.Format("2006/01/02"), now.UnixNano())
}
