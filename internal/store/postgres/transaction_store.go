package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tradeleague/internal/domain"
)

// TransactionStore implements domain.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *pgxpool.Pool
}

// NewTransactionStore creates a TransactionStore backed by the given pool.
func NewTransactionStore(pool *pgxpool.Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

const transactionSelectCols = `id, user_id, kind, amount, remote_ref, status,
	fail_reason, description, created_at, updated_at`

func scanTransactionRows(rows pgx.Rows) ([]domain.TransactionRecord, error) {
	var records []domain.TransactionRecord
	for rows.Next() {
		var rec domain.TransactionRecord
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.Kind, &rec.Amount, &rec.RemoteRef,
			&rec.Status, &rec.FailReason, &rec.Description,
			&rec.CreatedAt, &rec.UpdatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Upsert inserts a record or replaces its mutable fields by id.
func (s *TransactionStore) Upsert(ctx context.Context, rec domain.TransactionRecord) error {
	const query = `
		INSERT INTO transactions (
			id, user_id, kind, amount, remote_ref, status,
			fail_reason, description, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			remote_ref = EXCLUDED.remote_ref,
			status = EXCLUDED.status,
			fail_reason = EXCLUDED.fail_reason,
			updated_at = EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.UserID, rec.Kind, rec.Amount, rec.RemoteRef,
		rec.Status, rec.FailReason, rec.Description,
		rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert transaction %s: %w", rec.ID, err)
	}
	return nil
}

// GetByID returns the record with the given id.
func (s *TransactionStore) GetByID(ctx context.Context, id string) (domain.TransactionRecord, error) {
	query := fmt.Sprintf("SELECT %s FROM transactions WHERE id = $1", transactionSelectCols)

	var rec domain.TransactionRecord
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&rec.ID, &rec.UserID, &rec.Kind, &rec.Amount, &rec.RemoteRef,
		&rec.Status, &rec.FailReason, &rec.Description,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TransactionRecord{}, domain.ErrNotFound
		}
		return domain.TransactionRecord{}, fmt.Errorf("postgres: get transaction %s: %w", id, err)
	}
	return rec, nil
}

// ListByUser returns a user's records, most recent first.
func (s *TransactionStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.TransactionRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, transactionSelectCols)

	rows, err := s.pool.Query(ctx, query, userID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list transactions for %s: %w", userID, err)
	}
	defer rows.Close()

	records, err := scanTransactionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan transactions: %w", err)
	}
	return records, nil
}

// ListUnreconciled returns timed-out failures with a known remote reference
// that have not been re-checked yet.
func (s *TransactionStore) ListUnreconciled(ctx context.Context, limit int) ([]domain.TransactionRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM transactions
		WHERE status = 'failed'
		  AND fail_reason = 'timeout'
		  AND remote_ref <> ''
		  AND NOT reconciled
		ORDER BY updated_at ASC
		LIMIT $1`, transactionSelectCols)

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list unreconciled: %w", err)
	}
	defer rows.Close()

	records, err := scanTransactionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan unreconciled: %w", err)
	}
	return records, nil
}

// MarkReconciled flags a record so it leaves the reconciliation sweep set.
func (s *TransactionStore) MarkReconciled(ctx context.Context, id string) error {
	const query = `UPDATE transactions SET reconciled = TRUE WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("postgres: mark reconciled %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListTerminalBefore returns settled and failed records last updated before
// the cutoff, oldest first, for archival.
func (s *TransactionStore) ListTerminalBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.TransactionRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM transactions
		WHERE status IN ('success', 'failed')
		  AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2`, transactionSelectCols)

	rows, err := s.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list terminal before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	defer rows.Close()

	records, err := scanTransactionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan terminal records: %w", err)
	}
	return records, nil
}

// DeleteByIDs removes records after they have been archived.
func (s *TransactionStore) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	const query = `DELETE FROM transactions WHERE id = ANY($1)`
	if _, err := s.pool.Exec(ctx, query, ids); err != nil {
		return fmt.Errorf("postgres: delete %d transactions: %w", len(ids), err)
	}
	return nil
}
