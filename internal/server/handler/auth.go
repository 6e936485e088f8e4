package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// TokenIssuer mints signed tokens for the WebSocket auth handshake.
type TokenIssuer interface {
	IssueToken(userID string, ttl time.Duration) (string, error)
}

// AuthHandler serves development token issuance. The route sits behind the
// API key middleware like every other endpoint.
type AuthHandler struct {
	issuer TokenIssuer
	ttl    time.Duration
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler minting tokens valid for ttl.
func NewAuthHandler(issuer TokenIssuer, ttl time.Duration, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		issuer: issuer,
		ttl:    ttl,
		logger: logger,
	}
}

// tokenRequest names the user the token is minted for.
type tokenRequest struct {
	UserID string `json:"user_id"`
}

// tokenResponse carries the minted token and its expiry.
type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IssueToken mints a token for the requested user.
// POST /api/auth/token
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	token, err := h.issuer.IssueToken(req.UserID, h.ttl)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: token issuance failed",
			slog.String("user_id", req.UserID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(h.ttl),
	})
}
