package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tradeleague/internal/domain"
)

// captureWriter records uploaded objects in memory.
type captureWriter struct {
	objects map[string][]byte
	types   map[string]string
}

func newCaptureWriter() *captureWriter {
	return &captureWriter{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (w *captureWriter) Put(_ context.Context, path string, data io.Reader, contentType string) error {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(data); err != nil {
		return err
	}
	w.objects[path] = buf.Bytes()
	w.types[path] = contentType
	return nil
}

// archiveStore is an in-memory transaction store for archiver tests.
type archiveStore struct {
	records map[string]domain.TransactionRecord
}

func (s *archiveStore) Upsert(_ context.Context, rec domain.TransactionRecord) error {
	s.records[rec.ID] = rec
	return nil
}

func (s *archiveStore) GetByID(_ context.Context, id string) (domain.TransactionRecord, error) {
	rec, ok := s.records[id]
	if !ok {
		return domain.TransactionRecord{}, domain.ErrNotFound
	}
	return rec, nil
}

func (s *archiveStore) ListByUser(context.Context, string, domain.ListOpts) ([]domain.TransactionRecord, error) {
	return nil, nil
}

func (s *archiveStore) ListUnreconciled(context.Context, int) ([]domain.TransactionRecord, error) {
	return nil, nil
}

func (s *archiveStore) MarkReconciled(context.Context, string) error { return nil }

func (s *archiveStore) ListTerminalBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.TransactionRecord, error) {
	var out []domain.TransactionRecord
	for _, rec := range s.records {
		if rec.Terminal() && rec.UpdatedAt.Before(cutoff) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *archiveStore) DeleteByIDs(_ context.Context, ids []string) error {
	for _, id := range ids {
		delete(s.records, id)
	}
	return nil
}

func terminalRecord(id string, age time.Duration) domain.TransactionRecord {
	ts := time.Now().UTC().Add(-age)
	return domain.TransactionRecord{
		ID:        id,
		UserID:    "user-1",
		Kind:      domain.KindPayment,
		Amount:    10,
		Status:    domain.StatusSuccess,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func TestArchiverExportsAndPrunes(t *testing.T) {
	store := &archiveStore{records: map[string]domain.TransactionRecord{}}
	store.records["old-1"] = terminalRecord("old-1", 48*time.Hour)
	store.records["old-2"] = terminalRecord("old-2", 72*time.Hour)
	store.records["fresh"] = terminalRecord("fresh", time.Hour)
	pending := terminalRecord("pending", 96*time.Hour)
	pending.Status = domain.StatusPending
	store.records["pending"] = pending

	writer := newCaptureWriter()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := NewArchiver(writer, store, ArchiverConfig{
		Retention: 24 * time.Hour,
		BatchSize: 100,
		Prefix:    "archive/transactions",
	}, logger)

	require.NoError(t, a.Run(context.Background()))

	// One object holding both expired terminal records, as JSONL.
	require.Len(t, writer.objects, 1)
	for path, data := range writer.objects {
		require.True(t, strings.HasPrefix(path, "archive/transactions/"))
		require.True(t, strings.HasSuffix(path, ".jsonl"))
		require.Equal(t, "application/x-ndjson", writer.types[path])

		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		require.Len(t, lines, 2)
		var rec domain.TransactionRecord
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
		require.Equal(t, "old-2", rec.ID) // oldest first
	}

	// Expired records are pruned; fresh and pending rows stay.
	require.NotContains(t, store.records, "old-1")
	require.NotContains(t, store.records, "old-2")
	require.Contains(t, store.records, "fresh")
	require.Contains(t, store.records, "pending")
}

func TestArchiverNoExpiredRecords(t *testing.T) {
	store := &archiveStore{records: map[string]domain.TransactionRecord{
		"fresh": terminalRecord("fresh", time.Hour),
	}}
	writer := newCaptureWriter()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := NewArchiver(writer, store, ArchiverConfig{
		Retention: 24 * time.Hour,
		BatchSize: 100,
		Prefix:    "archive/transactions",
	}, logger)

	require.NoError(t, a.Run(context.Background()))
	require.Empty(t, writer.objects)
	require.Contains(t, store.records, "fresh")
}
