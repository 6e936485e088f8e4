package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrExpiredPayload    = errors.New("payload expired before submission")
	ErrConfirmationTimeout = errors.New("confirmation polling timed out")
	ErrSigningFailed     = errors.New("signing failed")
	ErrRateLimited       = errors.New("rate limited")
)

// SubmissionError is returned when the remote ledger rejects a signed
// transaction with a non-2xx status. The response body is captured for
// diagnostics.
type SubmissionError struct {
	Status int
	Body   string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission rejected (HTTP %d): %s", e.Status, e.Body)
}

// FailureReason maps a settlement error onto the short human-readable reason
// recorded on an aborted transaction. Confirmation timeouts are reported as
// "timeout" so the reconciler can find them later.
func FailureReason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfirmationTimeout):
		return "timeout"
	case errors.Is(err, ErrExpiredPayload):
		return "payload expired"
	default:
		var se *SubmissionError
		if errors.As(err, &se) {
			return fmt.Sprintf("rejected (HTTP %d)", se.Status)
		}
		return err.Error()
	}
}
