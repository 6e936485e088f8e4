package domain

import (
	"context"
	"io"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// TransactionStore persists per-user transaction history, most recent first.
type TransactionStore interface {
	Upsert(ctx context.Context, rec TransactionRecord) error
	GetByID(ctx context.Context, id string) (TransactionRecord, error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]TransactionRecord, error)
	// ListUnreconciled returns failed records with reason "timeout" and a
	// known remote reference that have not yet been re-checked against the
	// remote ledger.
	ListUnreconciled(ctx context.Context, limit int) ([]TransactionRecord, error)
	MarkReconciled(ctx context.Context, id string) error
	// ListTerminalBefore returns terminal records last updated before the
	// cutoff, for archival.
	ListTerminalBefore(ctx context.Context, cutoff time.Time, limit int) ([]TransactionRecord, error)
	DeleteByIDs(ctx context.Context, ids []string) error
}

// LeagueStore reads sponsored league listings.
type LeagueStore interface {
	GetByID(ctx context.Context, id string) (League, error)
	List(ctx context.Context, opts ListOpts) ([]League, error)
	AddParticipant(ctx context.Context, id string) error
}

// VaultStore reads managed vault listings.
type VaultStore interface {
	GetByID(ctx context.Context, id string) (Vault, error)
	List(ctx context.Context, opts ListOpts) ([]Vault, error)
	AddFollower(ctx context.Context, id string, amount float64) error
}

// MarketStore reads prediction market listings.
type MarketStore interface {
	GetByID(ctx context.Context, id string) (PredictionMarket, error)
	ListOpen(ctx context.Context, opts ListOpts) ([]PredictionMarket, error)
	AddStake(ctx context.Context, id string, outcomeIndex int, amount float64) error
}

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
