package domain

import "time"

// TransactionKind identifies the user action that initiated a transaction.
type TransactionKind string

const (
	KindLeagueEntry     TransactionKind = "league_entry"
	KindVaultFollow     TransactionKind = "vault_follow"
	KindPredictionStake TransactionKind = "prediction_stake"
	KindPayment         TransactionKind = "payment"
)

// TransactionStatus tracks the lifecycle of a transaction record. Pending and
// the terminal states are mutually exclusive per id; once terminal, the record
// is immutable.
type TransactionStatus string

const (
	StatusPending TransactionStatus = "pending"
	StatusSuccess TransactionStatus = "success"
	StatusFailed  TransactionStatus = "failed"
)

// TransactionRecord is the durable, identifiable wrapper around a single
// ledger mutation and its paired on-chain settlement.
type TransactionRecord struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	Kind        TransactionKind   `json:"kind"`
	Amount      float64           `json:"amount"`
	RemoteRef   string            `json:"remote_ref"` // settlement hash, empty until known
	Status      TransactionStatus `json:"status"`
	FailReason  string            `json:"fail_reason,omitempty"`
	Description string            `json:"description"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Terminal reports whether the record has reached Success or Failed.
func (r TransactionRecord) Terminal() bool {
	return r.Status == StatusSuccess || r.Status == StatusFailed
}

// TransferIntent is the input to the settlement pipeline: move Amount from
// Payer to Payee on the remote ledger.
type TransferIntent struct {
	Payer  string
	Payee  string
	Amount float64
}
