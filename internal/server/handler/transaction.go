package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tradeleague/internal/domain"
)

// TransactionService is what the action handlers need from the lifecycle
// manager. Declared locally so the handler package does not depend on the
// concrete implementation.
type TransactionService interface {
	Begin(ctx context.Context, kind domain.TransactionKind, amount float64, description string) (string, error)
	Get(id string) (domain.TransactionRecord, error)
	History() []domain.TransactionRecord
	Pending() []string
}

// TransactionHandler serves transaction history endpoints. When a store is
// wired history reads come from it; otherwise the in-memory history serves.
type TransactionHandler struct {
	txs    TransactionService
	store  domain.TransactionStore // optional
	userID string
	logger *slog.Logger
}

// NewTransactionHandler creates a TransactionHandler. store may be nil.
func NewTransactionHandler(txs TransactionService, store domain.TransactionStore, userID string, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{
		txs:    txs,
		store:  store,
		userID: userID,
		logger: logger,
	}
}

// listTransactionsResponse wraps the list endpoint output with metadata.
type listTransactionsResponse struct {
	Transactions []domain.TransactionRecord `json:"transactions"`
	Pending      []string                   `json:"pending"`
	Limit        int                        `json:"limit"`
	Offset       int                        `json:"offset"`
}

// ListTransactions returns the transaction history, most recent first.
// GET /api/transactions?limit=50&offset=0
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	records, err := h.listHistory(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list transactions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	writeJSON(w, http.StatusOK, listTransactionsResponse{
		Transactions: records,
		Pending:      h.txs.Pending(),
		Limit:        opts.Limit,
		Offset:       opts.Offset,
	})
}

func (h *TransactionHandler) listHistory(ctx context.Context, opts domain.ListOpts) ([]domain.TransactionRecord, error) {
	if h.store != nil {
		return h.store.ListByUser(ctx, h.userID, opts)
	}

	history := h.txs.History()
	if opts.Offset >= len(history) {
		return []domain.TransactionRecord{}, nil
	}
	history = history[opts.Offset:]
	if opts.Limit < len(history) {
		history = history[:opts.Limit]
	}
	return history, nil
}

// GetTransaction returns a single transaction by its ID.
// GET /api/transactions/{id}
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing transaction id")
		return
	}

	rec, err := h.txs.Get(id)
	if err != nil && h.store != nil {
		rec, err = h.store.GetByID(r.Context(), id)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "transaction not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get transaction failed",
			slog.String("transaction_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get transaction")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}
