package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tradeleague/internal/domain"
)

// MarketHandler serves prediction market endpoints.
type MarketHandler struct {
	markets domain.MarketStore
	txs     TransactionService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(markets domain.MarketStore, txs TransactionService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		txs:     txs,
		logger:  logger,
	}
}

// listMarketsResponse wraps the list endpoint output with metadata.
type listMarketsResponse struct {
	Markets []domain.PredictionMarket `json:"markets"`
	Limit   int                       `json:"limit"`
	Offset  int                       `json:"offset"`
}

// ListMarkets returns open prediction markets with pagination.
// GET /api/markets?limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	markets, err := h.markets.ListOpen(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: markets,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetMarket returns a single market by its ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	market, err := h.markets.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get market failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get market")
		return
	}

	writeJSON(w, http.StatusOK, market)
}

// placePredictionRequest stakes an amount on one outcome of a market.
type placePredictionRequest struct {
	OutcomeIndex int     `json:"outcome_index"`
	Amount       float64 `json:"amount"`
}

// PlacePrediction stakes on a market outcome and starts settlement.
// POST /api/markets/{id}/predictions
func (h *MarketHandler) PlacePrediction(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	var req placePredictionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	market, err := h.markets.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get market failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get market")
		return
	}

	if market.Resolved {
		writeError(w, http.StatusConflict, "market already resolved")
		return
	}
	if req.OutcomeIndex < 0 || req.OutcomeIndex >= len(market.Outcomes) {
		writeError(w, http.StatusBadRequest, "outcome index out of range")
		return
	}

	outcome := market.Outcomes[req.OutcomeIndex]
	desc := fmt.Sprintf("Staked on %q: %s", market.Question, outcome.Label)
	txID, err := h.txs.Begin(r.Context(), domain.KindPredictionStake, req.Amount, desc)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			writeError(w, http.StatusPaymentRequired, "insufficient funds")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: place prediction failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to place prediction")
		return
	}

	if err := h.markets.AddStake(r.Context(), id, req.OutcomeIndex, req.Amount); err != nil {
		h.logger.WarnContext(r.Context(), "handler: market stake not updated",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, http.StatusAccepted, joinResponse{
		TransactionID: txID,
		Status:        string(domain.StatusPending),
	})
}
