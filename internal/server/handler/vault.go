package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/tradeleague/internal/domain"
)

// VaultHandler serves managed vault endpoints.
type VaultHandler struct {
	vaults domain.VaultStore
	txs    TransactionService
	logger *slog.Logger
}

// NewVaultHandler creates a VaultHandler.
func NewVaultHandler(vaults domain.VaultStore, txs TransactionService, logger *slog.Logger) *VaultHandler {
	return &VaultHandler{
		vaults: vaults,
		txs:    txs,
		logger: logger,
	}
}

// listVaultsResponse wraps the list endpoint output with metadata.
type listVaultsResponse struct {
	Vaults []domain.Vault `json:"vaults"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// ListVaults returns vaults with pagination.
// GET /api/vaults?limit=50&offset=0
func (h *VaultHandler) ListVaults(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	vaults, err := h.vaults.List(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list vaults failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list vaults")
		return
	}

	writeJSON(w, http.StatusOK, listVaultsResponse{
		Vaults: vaults,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	})
}

// GetVault returns a single vault by its ID.
// GET /api/vaults/{id}
func (h *VaultHandler) GetVault(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing vault id")
		return
	}

	vault, err := h.vaults.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "vault not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get vault failed",
			slog.String("vault_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get vault")
		return
	}

	writeJSON(w, http.StatusOK, vault)
}

// followVaultRequest is the deposit a follower commits to the vault.
type followVaultRequest struct {
	Amount float64 `json:"amount"`
}

// FollowVault deposits into a vault and starts settlement.
// POST /api/vaults/{id}/follow
func (h *VaultHandler) FollowVault(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing vault id")
		return
	}

	var req followVaultRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	vault, err := h.vaults.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "vault not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get vault failed",
			slog.String("vault_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get vault")
		return
	}

	desc := fmt.Sprintf("Followed %s", vault.Name)
	txID, err := h.txs.Begin(r.Context(), domain.KindVaultFollow, req.Amount, desc)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			writeError(w, http.StatusPaymentRequired, "insufficient funds")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: follow vault failed",
			slog.String("vault_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to follow vault")
		return
	}

	if err := h.vaults.AddFollower(r.Context(), id, req.Amount); err != nil {
		h.logger.WarnContext(r.Context(), "handler: follower count not updated",
			slog.String("vault_id", id),
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, http.StatusAccepted, joinResponse{
		TransactionID: txID,
		Status:        string(domain.StatusPending),
	})
}
