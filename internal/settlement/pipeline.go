// Package settlement turns a transfer intent into a confirmed remote
// settlement reference: sequence fetch, payload construction, canonical
// encoding, signing, submission, and bounded confirmation polling. Failures
// are deterministic and never retried internally; retry is a caller decision.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/tradeleague/internal/crypto"
	"github.com/alanyoungcy/tradeleague/internal/domain"
	"github.com/alanyoungcy/tradeleague/internal/platform/aptos"
)

// baseUnitExponent converts display currency into the remote ledger's base
// unit: 1 unit = 10^8 base units.
const baseUnitExponent = 8

// Config holds the pipeline's payload parameters.
type Config struct {
	// TransferFunction is the on-chain entry function, e.g. "0x1::coin::transfer".
	TransferFunction string
	// CoinType is the transferred coin's type argument.
	CoinType string
	// MaxGasAmount and GasUnitPrice bound the gas spend, as decimal values.
	MaxGasAmount uint64
	GasUnitPrice uint64
	// ExpiryWindow is how long a constructed payload stays valid.
	ExpiryWindow time.Duration
	// PollInterval and PollAttempts bound confirmation polling.
	PollInterval time.Duration
	PollAttempts int
}

// Pipeline executes settlements against a fullnode using the payer's signer.
type Pipeline struct {
	client *aptos.Client
	signer *crypto.Signer
	cfg    Config
	logger *slog.Logger

	// now is overridable in tests.
	now func() time.Time
}

// NewPipeline creates a settlement pipeline.
func NewPipeline(client *aptos.Client, signer *crypto.Signer, cfg Config, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		client: client,
		signer: signer,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "settlement")),
		now:    time.Now,
	}
}

// Settle runs the full pipeline for the intent. On success it returns the
// remote reference hash. On confirmation timeout it returns the hash
// alongside domain.ErrConfirmationTimeout so the caller can track the
// reference for later reconciliation; all other failures return an empty
// hash.
func (p *Pipeline) Settle(ctx context.Context, intent domain.TransferIntent) (string, error) {
	// Step 1: sequence fetch.
	seq, err := p.client.AccountSequence(ctx, intent.Payer)
	if err != nil {
		return "", fmt.Errorf("settlement: sequence fetch: %w", err)
	}

	// Step 2: payload construction.
	baseUnits, err := ToBaseUnits(intent.Amount)
	if err != nil {
		return "", fmt.Errorf("settlement: %w", err)
	}
	expiresAt := p.now().Add(p.cfg.ExpiryWindow)
	sub := aptos.Submission{
		Sender:                  intent.Payer,
		SequenceNumber:          strconv.FormatUint(seq, 10),
		MaxGasAmount:            strconv.FormatUint(p.cfg.MaxGasAmount, 10),
		GasUnitPrice:            strconv.FormatUint(p.cfg.GasUnitPrice, 10),
		ExpirationTimestampSecs: strconv.FormatInt(expiresAt.Unix(), 10),
		Payload: aptos.EntryFunction{
			Type:          "entry_function_payload",
			Function:      p.cfg.TransferFunction,
			TypeArguments: []string{p.cfg.CoinType},
			Arguments:     []string{intent.Payee, strconv.FormatUint(baseUnits, 10)},
		},
	}

	// Step 3: canonical signable encoding.
	signingBytes, err := p.client.EncodeSubmission(ctx, sub)
	if err != nil {
		return "", fmt.Errorf("settlement: encoding request: %w", err)
	}

	// Step 4: signing.
	sub.Signature = &aptos.Ed25519Signature{
		Type:      "ed25519_signature",
		PublicKey: p.signer.PublicKeyHex(),
		Signature: p.signer.Sign(signingBytes),
	}

	// Step 5: submission. An expired payload is rejected locally first.
	if !p.now().Before(expiresAt) {
		return "", domain.ErrExpiredPayload
	}
	hash, err := p.client.Submit(ctx, sub)
	if err != nil {
		return "", fmt.Errorf("settlement: submission: %w", err)
	}

	p.logger.InfoContext(ctx, "transaction submitted",
		slog.String("hash", hash),
		slog.Uint64("base_units", baseUnits),
	)

	// Step 6: confirmation polling.
	if err := p.awaitConfirmation(ctx, hash); err != nil {
		if errors.Is(err, domain.ErrConfirmationTimeout) {
			return hash, err
		}
		return "", err
	}
	return hash, nil
}

// awaitConfirmation polls the transaction by hash on a fixed interval up to
// the configured attempt count. Exhausting the attempts without a terminal
// remote state is a timeout, distinct from on-chain failure.
func (p *Pipeline) awaitConfirmation(ctx context.Context, hash string) error {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= p.cfg.PollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("settlement: confirmation polling: %w", ctx.Err())
		case <-ticker.C:
		}

		state, err := p.client.TransactionByHash(ctx, hash)
		if err != nil {
			p.logger.WarnContext(ctx, "confirmation poll failed",
				slog.String("hash", hash),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			continue
		}

		switch state {
		case aptos.TxSuccess:
			return nil
		case aptos.TxFailed:
			return fmt.Errorf("settlement: transaction %s aborted on-chain", hash)
		}
	}
	return domain.ErrConfirmationTimeout
}

// ToBaseUnits converts a display amount to remote base units using a fixed
// 10^8 multiplier. The conversion truncates, never rounds up, so the signed
// payload can never move more than authorized.
func ToBaseUnits(amount float64) (uint64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("negative amount %v", amount)
	}
	d := decimal.NewFromFloat(amount).Shift(baseUnitExponent).Truncate(0)
	if !d.BigInt().IsUint64() {
		return 0, fmt.Errorf("amount %v overflows base units", amount)
	}
	return d.BigInt().Uint64(), nil
}
