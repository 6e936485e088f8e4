package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tradeleague/internal/domain"
	"github.com/alanyoungcy/tradeleague/internal/ledger"
	"github.com/alanyoungcy/tradeleague/internal/platform/aptos"
)

// ReconcilerConfig bounds a reconciliation sweep.
type ReconcilerConfig struct {
	Interval  time.Duration
	BatchSize int
}

// Notifier receives operator alerts when a sweep corrects a local record.
// Optional; implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, title, message string)
}

// Reconciler re-checks transactions that timed out during confirmation
// polling. A timed-out transaction was refunded locally but may still have
// committed remotely; the sweep resolves that ambiguity by querying the
// remote ledger for the recorded reference.
type Reconciler struct {
	store    domain.TransactionStore
	client   *aptos.Client
	ledger   *ledger.Ledger
	bus      domain.EventBus
	notifier Notifier
	cfg      ReconcilerConfig
	logger   *slog.Logger
}

// NewReconciler creates a reconciler. bus may be nil when no event fan-out is
// wired.
func NewReconciler(store domain.TransactionStore, client *aptos.Client, ldg *ledger.Ledger, bus domain.EventBus, cfg ReconcilerConfig, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		client: client,
		ledger: ldg,
		bus:    bus,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "reconciler")),
	}
}

// WithNotifier attaches an operator-alert sink for corrected records.
func (r *Reconciler) WithNotifier(n Notifier) *Reconciler {
	r.notifier = n
	return r
}

// Run sweeps on the configured interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Sweep(ctx); err != nil {
				r.logger.ErrorContext(ctx, "reconciliation sweep failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Sweep runs a single reconciliation pass. Records whose remote state is
// still pending are left for a later sweep.
func (r *Reconciler) Sweep(ctx context.Context) error {
	records, err := r.store.ListUnreconciled(ctx, r.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("reconciler: list unreconciled: %w", err)
	}

	for _, rec := range records {
		if err := r.reconcile(ctx, rec); err != nil {
			r.logger.WarnContext(ctx, "record not reconciled",
				slog.String("transaction_id", rec.ID),
				slog.String("remote_ref", rec.RemoteRef),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

func (r *Reconciler) reconcile(ctx context.Context, rec domain.TransactionRecord) error {
	state, err := r.client.TransactionByHash(ctx, rec.RemoteRef)
	if err != nil {
		return fmt.Errorf("remote lookup: %w", err)
	}

	switch state {
	case aptos.TxPending:
		// Still unresolved remotely; pick it up next sweep.
		return nil

	case aptos.TxSuccess:
		// The transfer committed after the local refund. Re-apply the
		// deduction and flip the record to success.
		if !r.ledger.Deduct(rec.Amount) {
			r.logger.WarnContext(ctx, "insufficient balance to re-apply reconciled deduction",
				slog.String("transaction_id", rec.ID),
				slog.Float64("amount", rec.Amount),
			)
		}
		rec.Status = domain.StatusSuccess
		rec.FailReason = ""
		rec.UpdatedAt = time.Now().UTC()
		if err := r.store.Upsert(ctx, rec); err != nil {
			return fmt.Errorf("update record: %w", err)
		}
		r.publishReconciled(ctx, rec)
		if r.notifier != nil {
			r.notifier.Notify(ctx, "Transaction Reconciled",
				fmt.Sprintf("%s for %.2f committed remotely after timeout (%s)", rec.Kind, rec.Amount, rec.RemoteRef))
		}
		r.logger.InfoContext(ctx, "timed-out transaction confirmed remotely",
			slog.String("transaction_id", rec.ID),
			slog.String("remote_ref", rec.RemoteRef),
		)

	case aptos.TxFailed:
		// Definitive remote failure; the local refund already stands.
		r.logger.InfoContext(ctx, "timed-out transaction failed remotely",
			slog.String("transaction_id", rec.ID),
			slog.String("remote_ref", rec.RemoteRef),
		)
	}

	if err := r.store.MarkReconciled(ctx, rec.ID); err != nil {
		return fmt.Errorf("mark reconciled: %w", err)
	}
	return nil
}

func (r *Reconciler) publishReconciled(ctx context.Context, rec domain.TransactionRecord) {
	if r.bus == nil {
		return
	}
	payload, err := json.Marshal(map[string]any{
		"event":       "transaction_reconciled",
		"transaction": rec,
		"balance":     r.ledger.Balance(),
	})
	if err != nil {
		return
	}
	if err := r.bus.Publish(ctx, domain.ChannelTransactions, payload); err != nil {
		r.logger.WarnContext(ctx, "reconciliation event publish failed",
			slog.String("error", err.Error()),
		)
	}
}
