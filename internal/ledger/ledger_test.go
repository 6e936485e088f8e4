package ledger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/tradeleague/internal/domain"
)

func testTokens() []domain.TokenAllocation {
	return []domain.TokenAllocation{
		{Symbol: "APT", Name: "Aptos", Weight: 25},
		{Symbol: "USDC", Name: "USDC", Weight: 20},
		{Symbol: "EKID", Name: "Ekiden", Weight: 15},
		{Symbol: "PORA", Name: "Panora", Weight: 20},
		{Symbol: "RION", Name: "Hyperion", Weight: 20},
	}
}

func TestNewValidatesWeights(t *testing.T) {
	_, err := New(100, []domain.TokenAllocation{{Symbol: "APT", Weight: 60}})
	require.Error(t, err)

	_, err = New(-1, testTokens())
	require.Error(t, err)

	l, err := New(100, testTokens())
	require.NoError(t, err)
	assert.Equal(t, 100.0, l.Balance())
}

func TestDeductInsufficient(t *testing.T) {
	l, err := New(100, testTokens())
	require.NoError(t, err)

	ok := l.Deduct(150)
	assert.False(t, ok)
	assert.Equal(t, 100.0, l.Balance())
}

func TestDeductCreditRecomputesAllocation(t *testing.T) {
	l, err := New(100, testTokens())
	require.NoError(t, err)

	require.True(t, l.Deduct(60))
	assert.Equal(t, 40.0, l.Balance())

	alloc := l.Allocation()
	assert.Equal(t, 40.0, alloc.TotalValue)

	var weightSum, amountSum float64
	for _, tok := range alloc.Tokens {
		weightSum += tok.Weight
		amountSum += tok.Amount
	}
	assert.InDelta(t, 100, weightSum, 1e-9)
	assert.InDelta(t, l.Balance(), amountSum, 1e-9)

	l.Credit(60)
	assert.Equal(t, 100.0, l.Balance())
	alloc = l.Allocation()
	assert.InDelta(t, 25.0, alloc.Tokens[0].Amount, 1e-9)
}

func TestOnChangeHookSeesConsistentSnapshot(t *testing.T) {
	l, err := New(100, testTokens())
	require.NoError(t, err)

	var snaps []domain.BalanceSnapshot
	l.SetOnChange(func(s domain.BalanceSnapshot) {
		snaps = append(snaps, s)
	})

	require.True(t, l.Deduct(30))
	l.Credit(10)

	require.Len(t, snaps, 2)
	assert.Equal(t, 70.0, snaps[0].Balance)
	assert.Equal(t, 70.0, snaps[0].Allocation.TotalValue)
	assert.Equal(t, 80.0, snaps[1].Balance)

	// A failed deduct must not fire the hook.
	assert.False(t, l.Deduct(1000))
	assert.Len(t, snaps, 2)
}

func TestConcurrentDeductsNeverOverspend(t *testing.T) {
	l, err := New(100, testTokens())
	require.NoError(t, err)

	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Deduct(10) {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Exactly 10 deductions of 10 fit into a balance of 100.
	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 0.0, l.Balance())
	assert.GreaterOrEqual(t, l.Balance(), 0.0)
}
