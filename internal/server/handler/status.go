package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/tradeleague/internal/server/ws"
)

// ConnectionStats reports the hub's registry counts.
type ConnectionStats interface {
	Stats() ws.Stats
}

// StatusHandler serves a process status snapshot.
type StatusHandler struct {
	hub       ConnectionStats
	txs       TransactionService
	startedAt time.Time
	logger    *slog.Logger
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(hub ConnectionStats, txs TransactionService, startedAt time.Time, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		hub:       hub,
		txs:       txs,
		startedAt: startedAt,
		logger:    logger,
	}
}

// GetStatus reports uptime, connection counts, and in-flight settlements.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	uptime := int64(time.Since(h.startedAt).Seconds())
	if uptime < 0 {
		uptime = 0
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"uptime_seconds":       uptime,
		"connections":          h.hub.Stats(),
		"pending_transactions": len(h.txs.Pending()),
	})
}
