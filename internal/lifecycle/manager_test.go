package lifecycle

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tradeleague/internal/domain"
	"github.com/alanyoungcy/tradeleague/internal/ledger"
)

type fakeSettler struct {
	hash  string
	err   error
	calls atomic.Int32
}

func (s *fakeSettler) Settle(context.Context, domain.TransferIntent) (string, error) {
	s.calls.Add(1)
	return s.hash, s.err
}

// blockingSettler holds every settlement until released.
type blockingSettler struct {
	release chan struct{}
	hash    string
}

func (s *blockingSettler) Settle(ctx context.Context, _ domain.TransferIntent) (string, error) {
	select {
	case <-s.release:
		return s.hash, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type captureBus struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func newCaptureBus() *captureBus {
	return &captureBus{messages: make(map[string][][]byte)}
}

func (b *captureBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages[channel] = append(b.messages[channel], payload)
	return nil
}

func (b *captureBus) Subscribe(context.Context, string) (<-chan domain.BusMessage, error) {
	ch := make(chan domain.BusMessage)
	close(ch)
	return ch, nil
}

func (b *captureBus) events(t *testing.T, channel string) []string {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var names []string
	for _, raw := range b.messages[channel] {
		var env struct {
			Event string `json:"event"`
		}
		require.NoError(t, json.Unmarshal(raw, &env))
		names = append(names, env.Event)
	}
	return names
}

func newTestManager(t *testing.T, balance float64, settler Settler, bus domain.EventBus) (*Manager, *ledger.Ledger) {
	t.Helper()
	ldg, err := ledger.New(balance, []domain.TokenAllocation{
		{Symbol: "APT", Name: "Aptos", Weight: 100},
	})
	require.NoError(t, err)

	cfg := Config{
		UserID: "user-1",
		Payer:  "0xpayer",
		Payee:  "0xpayee",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, ldg, settler, nil, bus, nil, logger), ldg
}

func TestBeginSettlesSuccessfully(t *testing.T) {
	settler := &fakeSettler{hash: "0xabc"}
	bus := newCaptureBus()
	m, ldg := newTestManager(t, 100, settler, bus)

	id, err := m.Begin(context.Background(), domain.KindLeagueEntry, 25, "Entered Aptos Traders League")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	// Optimistic deduction lands before settlement completes.
	require.InDelta(t, 75, ldg.Balance(), 1e-9)

	m.Wait()

	rec, err := m.Get(id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusSuccess, rec.Status)
	require.Equal(t, "0xabc", rec.RemoteRef)
	require.InDelta(t, 75, ldg.Balance(), 1e-9)
	require.Empty(t, m.Pending())
	require.Equal(t, []string{"transaction_settled"}, bus.events(t, domain.ChannelTransactions))
}

func TestBeginInsufficientFunds(t *testing.T) {
	settler := &fakeSettler{hash: "0xabc"}
	bus := newCaptureBus()
	m, ldg := newTestManager(t, 10, settler, bus)

	id, err := m.Begin(context.Background(), domain.KindVaultFollow, 50, "Followed Momentum Vault")
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	m.Wait()

	// The failure is fully local: no settlement attempt, no balance change.
	require.Equal(t, int32(0), settler.calls.Load())
	require.InDelta(t, 10, ldg.Balance(), 1e-9)

	rec, err := m.Get(id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, rec.Status)
	require.Equal(t, "insufficient funds", rec.FailReason)
	require.Equal(t, float64(50), rec.Amount)
	require.Empty(t, m.Pending())
	require.Equal(t, []string{"transaction_failed"}, bus.events(t, domain.ChannelTransactions))
}

func TestBeginRollsBackOnRejection(t *testing.T) {
	settler := &fakeSettler{err: &domain.SubmissionError{Status: http.StatusInternalServerError, Body: "boom"}}
	bus := newCaptureBus()
	m, ldg := newTestManager(t, 100, settler, bus)

	id, err := m.Begin(context.Background(), domain.KindPredictionStake, 40, "Staked on APT above $10")
	require.NoError(t, err)
	m.Wait()

	// Rejected settlement credits the deduction back.
	require.InDelta(t, 100, ldg.Balance(), 1e-9)

	rec, err := m.Get(id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, rec.Status)
	require.Equal(t, "rejected (HTTP 500)", rec.FailReason)
	require.Equal(t, []string{"transaction_failed"}, bus.events(t, domain.ChannelTransactions))
}

func TestBeginRecordsHashOnTimeout(t *testing.T) {
	settler := &fakeSettler{hash: "0xdef", err: domain.ErrConfirmationTimeout}
	m, ldg := newTestManager(t, 100, settler, nil)

	id, err := m.Begin(context.Background(), domain.KindPayment, 30, "Sent payment")
	require.NoError(t, err)
	m.Wait()

	require.InDelta(t, 100, ldg.Balance(), 1e-9)

	// The hash is kept so the reconciler can re-check the transaction.
	rec, err := m.Get(id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, rec.Status)
	require.Equal(t, "timeout", rec.FailReason)
	require.Equal(t, "0xdef", rec.RemoteRef)
}

func TestCompleteAndAbortAreMutuallyExclusive(t *testing.T) {
	settler := &blockingSettler{release: make(chan struct{}), hash: "0xabc"}
	bus := newCaptureBus()
	m, ldg := newTestManager(t, 100, settler, bus)

	id, err := m.Begin(context.Background(), domain.KindPayment, 25, "Sent payment")
	require.NoError(t, err)

	m.Complete(context.Background(), id, "0xmanual")
	// A late abort for the same id must not refund a settled transaction.
	m.Abort(context.Background(), id, "late abort")
	m.Abort(context.Background(), id, "late abort again")

	close(settler.release)
	m.Wait()

	rec, err := m.Get(id)
	require.NoError(t, err)
	require.Equal(t, domain.StatusSuccess, rec.Status)
	require.Equal(t, "0xmanual", rec.RemoteRef)
	require.InDelta(t, 75, ldg.Balance(), 1e-9)
	require.Equal(t, []string{"transaction_settled"}, bus.events(t, domain.ChannelTransactions))
}

func TestHistoryMostRecentFirst(t *testing.T) {
	settler := &fakeSettler{hash: "0xabc"}
	m, _ := newTestManager(t, 1000, settler, nil)

	first, err := m.Begin(context.Background(), domain.KindLeagueEntry, 10, "first")
	require.NoError(t, err)
	second, err := m.Begin(context.Background(), domain.KindPayment, 10, "second")
	require.NoError(t, err)
	m.Wait()

	history := m.History()
	require.Len(t, history, 2)
	require.Equal(t, second, history[0].ID)
	require.Equal(t, first, history[1].ID)
}

func TestConcurrentBeginsNeverOverdraw(t *testing.T) {
	settler := &blockingSettler{release: make(chan struct{}), hash: "0xabc"}
	m, ldg := newTestManager(t, 100, settler, nil)

	var wg sync.WaitGroup
	var accepted atomic.Int32
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Begin(context.Background(), domain.KindPayment, 10, "burst"); err == nil {
				accepted.Add(1)
			}
		}()
	}
	wg.Wait()

	// Exactly ten deductions of 10 fit in a balance of 100.
	require.Equal(t, int32(10), accepted.Load())
	require.InDelta(t, 0, ldg.Balance(), 1e-9)
	require.Len(t, m.Pending(), 10)

	close(settler.release)
	m.Wait()
	require.Empty(t, m.Pending())
}
