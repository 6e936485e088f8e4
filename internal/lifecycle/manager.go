// Package lifecycle drives a transaction from optimistic deduction through
// asynchronous settlement to a terminal record. The pattern is a saga with a
// single compensating action: deduct first, settle in the background, credit
// back on any settlement failure.
package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/tradeleague/internal/domain"
	"github.com/alanyoungcy/tradeleague/internal/ledger"
)

// Settler turns a transfer intent into a confirmed remote reference. On a
// confirmation timeout it returns the submitted hash alongside the error.
type Settler interface {
	Settle(ctx context.Context, intent domain.TransferIntent) (string, error)
}

// Notifier receives operator alerts for failed settlements. Optional;
// implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, title, message string)
}

// Config identifies the account the manager operates for.
type Config struct {
	UserID string
	// Payer and Payee are the remote ledger addresses for settlements.
	Payer string
	Payee string
}

// Manager owns the pending set and most-recent-first transaction history for
// one account. Begin returns as soon as the optimistic deduction lands;
// settlement runs in a tracked goroutine and re-enters through Complete or
// Abort, which are idempotent and mutually exclusive per id.
type Manager struct {
	cfg      Config
	ledger   *ledger.Ledger
	settler  Settler
	store    domain.TransactionStore // optional
	bus      domain.EventBus         // optional
	notifier Notifier                // optional
	logger   *slog.Logger

	mu      sync.Mutex
	history []*domain.TransactionRecord // head = most recent
	index   map[string]*domain.TransactionRecord
	pending map[string]struct{}

	wg sync.WaitGroup
}

// New creates a Manager. store, bus, and notifier may each be nil.
func New(cfg Config, ldg *ledger.Ledger, settler Settler, store domain.TransactionStore, bus domain.EventBus, notifier Notifier, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		ledger:   ldg,
		settler:  settler,
		store:    store,
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "lifecycle")),
		index:    make(map[string]*domain.TransactionRecord),
		pending:  make(map[string]struct{}),
	}
}

// Begin records a pending transaction, optimistically deducts its amount, and
// starts settlement in the background. It returns the transaction id
// immediately after the deduction. When the balance does not cover the
// amount the record is flipped to failed synchronously and
// domain.ErrInsufficientFunds is returned; the settler is never invoked.
func (m *Manager) Begin(ctx context.Context, kind domain.TransactionKind, amount float64, description string) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("lifecycle: non-positive amount %v", amount)
	}

	now := time.Now().UTC()
	rec := &domain.TransactionRecord{
		ID:          uuid.NewString(),
		UserID:      m.cfg.UserID,
		Kind:        kind,
		Amount:      amount,
		Status:      domain.StatusPending,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	m.mu.Lock()
	m.history = append([]*domain.TransactionRecord{rec}, m.history...)
	m.index[rec.ID] = rec
	m.pending[rec.ID] = struct{}{}
	m.mu.Unlock()

	if !m.ledger.Deduct(amount) {
		m.finish(ctx, rec.ID, "", domain.StatusFailed, "insufficient funds", false)
		return rec.ID, domain.ErrInsufficientFunds
	}

	m.persist(ctx, rec.ID)
	m.logger.InfoContext(ctx, "transaction started",
		slog.String("transaction_id", rec.ID),
		slog.String("kind", string(kind)),
		slog.Float64("amount", amount),
	)

	// Settlement outlives the originating request.
	settleCtx := context.WithoutCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.settle(settleCtx, rec.ID, amount)
	}()

	return rec.ID, nil
}

func (m *Manager) settle(ctx context.Context, id string, amount float64) {
	hash, err := m.settler.Settle(ctx, domain.TransferIntent{
		Payer:  m.cfg.Payer,
		Payee:  m.cfg.Payee,
		Amount: amount,
	})
	if err != nil {
		m.logger.WarnContext(ctx, "settlement failed",
			slog.String("transaction_id", id),
			slog.String("error", err.Error()),
		)
		// A timed-out settlement still carries its hash so the
		// reconciler can re-check it against the remote ledger.
		m.abort(ctx, id, domain.FailureReason(err), hash)
		return
	}
	m.Complete(ctx, id, hash)
}

// Complete marks a pending transaction successful with its remote reference.
// Calling it for an id that is not pending is a no-op.
func (m *Manager) Complete(ctx context.Context, id, remoteRef string) {
	m.finish(ctx, id, remoteRef, domain.StatusSuccess, "", false)
}

// Abort marks a pending transaction failed and credits the deducted amount
// back. Calling it for an id that is not pending is a no-op.
func (m *Manager) Abort(ctx context.Context, id, reason string) {
	m.abort(ctx, id, reason, "")
}

func (m *Manager) abort(ctx context.Context, id, reason, remoteRef string) {
	m.finish(ctx, id, remoteRef, domain.StatusFailed, reason, true)
}

// finish is the single transition out of the pending set. The pending-set
// membership check makes Complete and Abort idempotent and mutually
// exclusive per id.
func (m *Manager) finish(ctx context.Context, id, remoteRef string, status domain.TransactionStatus, reason string, refund bool) {
	m.mu.Lock()
	if _, ok := m.pending[id]; !ok {
		m.mu.Unlock()
		return
	}
	delete(m.pending, id)

	rec := m.index[id]
	rec.Status = status
	rec.RemoteRef = remoteRef
	rec.FailReason = reason
	rec.UpdatedAt = time.Now().UTC()
	snapshot := *rec
	m.mu.Unlock()

	if refund {
		m.ledger.Credit(snapshot.Amount)
	}

	if m.store != nil {
		if err := m.store.Upsert(ctx, snapshot); err != nil {
			m.logger.ErrorContext(ctx, "transaction record not persisted",
				slog.String("transaction_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	m.publishTerminal(ctx, snapshot)
	m.notifyTerminal(ctx, snapshot)

	m.logger.InfoContext(ctx, "transaction finished",
		slog.String("transaction_id", id),
		slog.String("status", string(status)),
		slog.String("remote_ref", remoteRef),
		slog.String("fail_reason", reason),
	)
}

func (m *Manager) publishTerminal(ctx context.Context, rec domain.TransactionRecord) {
	if m.bus == nil {
		return
	}
	event := "transaction_settled"
	if rec.Status == domain.StatusFailed {
		event = "transaction_failed"
	}
	payload, err := json.Marshal(map[string]any{
		"event":       event,
		"transaction": rec,
		"balance":     m.ledger.Balance(),
	})
	if err != nil {
		return
	}
	if err := m.bus.Publish(ctx, domain.ChannelTransactions, payload); err != nil {
		m.logger.WarnContext(ctx, "transaction event publish failed",
			slog.String("transaction_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (m *Manager) notifyTerminal(ctx context.Context, rec domain.TransactionRecord) {
	if m.notifier == nil {
		return
	}
	if rec.Status != domain.StatusFailed {
		return
	}
	m.notifier.Notify(ctx, "Transaction Failed",
		fmt.Sprintf("%s for %.2f failed: %s", rec.Kind, rec.Amount, rec.FailReason))
}

// persist writes the current state of a record to the store, if one is wired.
func (m *Manager) persist(ctx context.Context, id string) {
	if m.store == nil {
		return
	}
	m.mu.Lock()
	rec, ok := m.index[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	snapshot := *rec
	m.mu.Unlock()

	if err := m.store.Upsert(ctx, snapshot); err != nil {
		m.logger.ErrorContext(ctx, "transaction record not persisted",
			slog.String("transaction_id", id),
			slog.String("error", err.Error()),
		)
	}
}

// Get returns the record for id.
func (m *Manager) Get(id string) (domain.TransactionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.index[id]
	if !ok {
		return domain.TransactionRecord{}, domain.ErrNotFound
	}
	return *rec, nil
}

// History returns the in-memory transaction history, most recent first.
func (m *Manager) History() []domain.TransactionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.TransactionRecord, len(m.history))
	for i, rec := range m.history {
		out[i] = *rec
	}
	return out
}

// Pending returns the ids currently awaiting settlement.
func (m *Manager) Pending() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.pending))
	for id := range m.pending {
		out = append(out, id)
	}
	return out
}

// Wait blocks until every in-flight settlement goroutine has finished. Used
// during shutdown.
func (m *Manager) Wait() {
	m.wg.Wait()
}
