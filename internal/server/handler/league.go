package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tradeleague/internal/domain"
)

// LeagueHandler serves sponsored league endpoints.
type LeagueHandler struct {
	leagues domain.LeagueStore
	txs     TransactionService
	logger  *slog.Logger
}

// NewLeagueHandler creates a LeagueHandler.
func NewLeagueHandler(leagues domain.LeagueStore, txs TransactionService, logger *slog.Logger) *LeagueHandler {
	return &LeagueHandler{
		leagues: leagues,
		txs:     txs,
		logger:  logger,
	}
}

// listLeaguesResponse wraps the list endpoint output with metadata.
type listLeaguesResponse struct {
	Leagues []domain.League `json:"leagues"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListLeagues returns public leagues with pagination.
// GET /api/leagues?limit=50&offset=0
func (h *LeagueHandler) ListLeagues(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	leagues, err := h.leagues.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list leagues failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list leagues")
		return
	}

	writeJSON(w, http.StatusOK, listLeaguesResponse{
		Leagues: leagues,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetLeague returns a single league by its ID.
// GET /api/leagues/{id}
func (h *LeagueHandler) GetLeague(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing league id")
		return
	}

	league, err := h.leagues.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "league not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get league failed",
			slog.String("league_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get league")
		return
	}

	writeJSON(w, http.StatusOK, league)
}

// joinResponse acknowledges a started transaction.
type joinResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// JoinLeague pays the entry fee and starts settlement. The response arrives
// before settlement completes; the outcome is pushed on the transactions
// channel.
// POST /api/leagues/{id}/join
func (h *LeagueHandler) JoinLeague(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing league id")
		return
	}

	league, err := h.leagues.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "league not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get league failed",
			slog.String("league_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get league")
		return
	}

	if league.MaxParticipants > 0 && league.Participants >= league.MaxParticipants {
		writeError(w, http.StatusConflict, "league is full")
		return
	}

	desc := fmt.Sprintf("Entered %s", league.Name)
	txID, err := h.txs.Begin(r.Context(), domain.KindLeagueEntry, league.EntryFee, desc)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			writeError(w, http.StatusPaymentRequired, "insufficient funds")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: join league failed",
			slog.String("league_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to join league")
		return
	}

	if err := h.leagues.AddParticipant(r.Context(), id); err != nil {
		// The entry transaction is already in flight; participation count
		// drift is tolerable and logged.
		h.logger.WarnContext(r.Context(), "handler: participant count not updated",
			slog.String("league_id", id),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, http.StatusAccepted, joinResponse{
		TransactionID: txID,
		Status:        string(domain.StatusPending),
	})
}
