package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tradeleague/internal/domain"
)

// BalanceReader exposes the ledger state the portfolio endpoint serves.
type BalanceReader interface {
	Snapshot() domain.BalanceSnapshot
}

// PortfolioHandler serves the balance and allocation view.
type PortfolioHandler struct {
	ledger BalanceReader
	logger *slog.Logger
}

// NewPortfolioHandler creates a PortfolioHandler.
func NewPortfolioHandler(ledger BalanceReader, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		ledger: ledger,
		logger: logger,
	}
}

// GetPortfolio returns the current balance with its derived allocation.
// GET /api/portfolio
func (h *PortfolioHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ledger.Snapshot())
}
