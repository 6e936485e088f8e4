package settlement

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tradeleague/internal/crypto"
	"github.com/alanyoungcy/tradeleague/internal/domain"
	"github.com/alanyoungcy/tradeleague/internal/platform/aptos"
)

const testSeed = "b37a61f467d0d226b671bfc8a842fb3036f7be8b55beaa66c168154053b40a0d"

// fakeFullnode is a scriptable stand-in for the remote ledger REST API.
type fakeFullnode struct {
	submitStatus int    // status code for POST /transactions
	submitHash   string // hash returned on accepted submissions
	txSuccess    bool   // terminal state reported by by_hash
	txCommitted  bool   // whether by_hash returns a committed transaction
	pollsBefore  int32  // by_hash calls answered 404 before committing

	submissions atomic.Int32
	polls       atomic.Int32
	lastSubmit  atomic.Value // aptos.Submission
}

func (f *fakeFullnode) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /accounts/{address}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"sequence_number": "5"})
	})
	mux.HandleFunc("POST /transactions/encode_submission", func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		json.NewEncoder(w).Encode("0xdeadbeef")
	})
	mux.HandleFunc("POST /transactions", func(w http.ResponseWriter, r *http.Request) {
		f.submissions.Add(1)
		var sub aptos.Submission
		json.NewDecoder(r.Body).Decode(&sub)
		f.lastSubmit.Store(sub)
		if f.submitStatus != http.StatusAccepted {
			w.WriteHeader(f.submitStatus)
			io.WriteString(w, `{"message":"mempool rejected the transaction"}`)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"hash": f.submitHash})
	})
	mux.HandleFunc("GET /transactions/by_hash/{hash}", func(w http.ResponseWriter, r *http.Request) {
		n := f.polls.Add(1)
		if !f.txCommitted || n <= f.pollsBefore {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"hash":    r.PathValue("hash"),
			"success": f.txSuccess,
		})
	})
	return mux
}

func newTestPipeline(t *testing.T, node *fakeFullnode) (*Pipeline, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(node.handler())
	t.Cleanup(srv.Close)

	signer, err := crypto.NewSigner(testSeed)
	require.NoError(t, err)

	cfg := Config{
		TransferFunction: "0x1::coin::transfer",
		CoinType:         "0x1::aptos_coin::AptosCoin",
		MaxGasAmount:     2000,
		GasUnitPrice:     100,
		ExpiryWindow:     600 * time.Second,
		PollInterval:     2 * time.Millisecond,
		PollAttempts:     10,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPipeline(aptos.NewClient(srv.URL), signer, cfg, logger), srv
}

func testIntent() domain.TransferIntent {
	return domain.TransferIntent{
		Payer:  "0x1111111111111111111111111111111111111111111111111111111111111111",
		Payee:  "0x2222222222222222222222222222222222222222222222222222222222222222",
		Amount: 25.0,
	}
}

func TestSettleConfirmed(t *testing.T) {
	node := &fakeFullnode{
		submitStatus: http.StatusAccepted,
		submitHash:   "0xabc",
		txCommitted:  true,
		txSuccess:    true,
		pollsBefore:  2,
	}
	p, _ := newTestPipeline(t, node)

	hash, err := p.Settle(context.Background(), testIntent())
	require.NoError(t, err)
	require.Equal(t, "0xabc", hash)

	sub := node.lastSubmit.Load().(aptos.Submission)
	require.Equal(t, "5", sub.SequenceNumber)
	require.Equal(t, "2000", sub.MaxGasAmount)
	require.Equal(t, "100", sub.GasUnitPrice)
	require.Equal(t, "entry_function_payload", sub.Payload.Type)
	require.Equal(t, []string{"0x1::aptos_coin::AptosCoin"}, sub.Payload.TypeArguments)
	// 25.0 display units at 10^8 base units each.
	require.Equal(t, "2500000000", sub.Payload.Arguments[1])
	require.NotNil(t, sub.Signature)
	require.Equal(t, "ed25519_signature", sub.Signature.Type)
	require.True(t, strings.HasPrefix(sub.Signature.Signature, "0x"))
}

func TestSettleSubmissionRejected(t *testing.T) {
	node := &fakeFullnode{submitStatus: http.StatusInternalServerError}
	p, _ := newTestPipeline(t, node)

	hash, err := p.Settle(context.Background(), testIntent())
	require.Empty(t, hash)

	var subErr *domain.SubmissionError
	require.ErrorAs(t, err, &subErr)
	require.Equal(t, http.StatusInternalServerError, subErr.Status)
	require.Contains(t, subErr.Body, "mempool rejected")
	require.Equal(t, int32(0), node.polls.Load())
}

func TestSettleConfirmationTimeout(t *testing.T) {
	node := &fakeFullnode{
		submitStatus: http.StatusAccepted,
		submitHash:   "0xdef",
		txCommitted:  false,
	}
	p, _ := newTestPipeline(t, node)

	hash, err := p.Settle(context.Background(), testIntent())
	require.ErrorIs(t, err, domain.ErrConfirmationTimeout)
	// The hash is still returned so the caller can reconcile later.
	require.Equal(t, "0xdef", hash)
	require.Equal(t, int32(10), node.polls.Load())
	require.Equal(t, "timeout", domain.FailureReason(err))
}

func TestSettleAbortedOnChain(t *testing.T) {
	node := &fakeFullnode{
		submitStatus: http.StatusAccepted,
		submitHash:   "0xbad",
		txCommitted:  true,
		txSuccess:    false,
	}
	p, _ := newTestPipeline(t, node)

	hash, err := p.Settle(context.Background(), testIntent())
	require.Error(t, err)
	require.NotErrorIs(t, err, domain.ErrConfirmationTimeout)
	require.Empty(t, hash)
	require.Contains(t, err.Error(), "aborted on-chain")
}

func TestSettleExpiredBeforeSubmit(t *testing.T) {
	node := &fakeFullnode{submitStatus: http.StatusAccepted, submitHash: "0xabc"}
	p, _ := newTestPipeline(t, node)

	// First now() call stamps the payload; the second, at the pre-submit
	// check, lands past the expiry window.
	base := time.Now()
	calls := 0
	p.now = func() time.Time {
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(p.cfg.ExpiryWindow + time.Second)
	}

	hash, err := p.Settle(context.Background(), testIntent())
	require.ErrorIs(t, err, domain.ErrExpiredPayload)
	require.Empty(t, hash)
	require.Equal(t, int32(0), node.submissions.Load())
}

func TestSettleCancelledDuringPolling(t *testing.T) {
	node := &fakeFullnode{
		submitStatus: http.StatusAccepted,
		submitHash:   "0xabc",
		txCommitted:  false,
	}
	p, _ := newTestPipeline(t, node)
	p.cfg.PollInterval = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := p.Settle(ctx, testIntent())
	require.ErrorIs(t, err, context.Canceled)
}

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		want   uint64
	}{
		{"whole", 100, 10_000_000_000},
		{"fractional", 0.5, 50_000_000},
		{"truncates below base unit", 0.000000019, 1},
		{"zero", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToBaseUnits(tt.amount)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	_, err := ToBaseUnits(-1)
	require.Error(t, err)
}

func TestToBaseUnitsNeverRoundsUp(t *testing.T) {
	// Float amounts that do not divide cleanly must truncate toward zero so
	// the signed payload never exceeds the deducted balance.
	got, err := ToBaseUnits(0.1 + 0.2) // 0.30000000000000004
	require.NoError(t, err)
	require.Equal(t, uint64(30_000_000), got)
}
