package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tradeleague/internal/domain"
)

// PaymentHandler serves direct wallet-to-wallet payments.
type PaymentHandler struct {
	txs    TransactionService
	logger *slog.Logger
}

// NewPaymentHandler creates a PaymentHandler.
func NewPaymentHandler(txs TransactionService, logger *slog.Logger) *PaymentHandler {
	return &PaymentHandler{
		txs:    txs,
		logger: logger,
	}
}

// paymentRequest describes the payment to send.
type paymentRequest struct {
	Amount float64 `json:"amount"`
	Memo   string  `json:"memo"`
}

// SendPayment starts a payment transaction.
// POST /api/payments
func (h *PaymentHandler) SendPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	desc := req.Memo
	if desc == "" {
		desc = fmt.Sprintf("Sent payment of %.2f", req.Amount)
	}

	txID, err := h.txs.Begin(r.Context(), domain.KindPayment, req.Amount, desc)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			writeError(w, http.StatusPaymentRequired, "insufficient funds")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: send payment failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to send payment")
		return
	}

	writeJSON(w, http.StatusAccepted, joinResponse{
		TransactionID: txID,
		Status:        string(domain.StatusPending),
	})
}
