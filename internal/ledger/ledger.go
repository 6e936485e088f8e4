// Package ledger holds the user's spendable balance and the portfolio
// allocation derived from it. All mutation goes through Deduct/Credit; the
// allocation recompute is indivisible from the triggering balance change.
package ledger

import (
	"fmt"
	"math"
	"sync"

	"github.com/alanyoungcy/tradeleague/internal/domain"
)

// weightTolerance is the permitted deviation when validating that allocation
// weights sum to 100.
const weightTolerance = 1e-9

// ChangeHook observes balance mutations. It is called after each successful
// Deduct or Credit with a consistent snapshot; it must not call back into the
// ledger.
type ChangeHook func(snap domain.BalanceSnapshot)

// Ledger is the single source of truth for a user's spendable balance and
// derived allocation. Safe for concurrent use; one mutex covers both fields
// so no observer ever sees a balance without its matching allocation.
type Ledger struct {
	mu       sync.Mutex
	balance  float64
	tokens   []domain.TokenAllocation
	onChange ChangeHook
}

// New creates a Ledger with the given starting balance and allocation
// weights. It returns an error when the balance is negative or the weights do
// not sum to exactly 100.
func New(initial float64, tokens []domain.TokenAllocation) (*Ledger, error) {
	if initial < 0 {
		return nil, fmt.Errorf("ledger: negative initial balance %v", initial)
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("ledger: allocation must have at least one token")
	}

	var sum float64
	for _, t := range tokens {
		if t.Weight < 0 {
			return nil, fmt.Errorf("ledger: negative weight for %s", t.Symbol)
		}
		sum += t.Weight
	}
	if math.Abs(sum-100) > weightTolerance {
		return nil, fmt.Errorf("ledger: allocation weights sum to %v, want 100", sum)
	}

	l := &Ledger{
		balance: initial,
		tokens:  append([]domain.TokenAllocation(nil), tokens...),
	}
	l.recompute()
	return l, nil
}

// SetOnChange installs the hook invoked after each mutation. The hook is
// optional and not required for correctness; callers that display live
// balances use it to publish balance events.
func (l *Ledger) SetOnChange(hook ChangeHook) {
	l.mu.Lock()
	l.onChange = hook
	l.mu.Unlock()
}

// Deduct atomically subtracts amount from the balance and recomputes the
// allocation. It returns false without mutating anything when the balance
// does not cover the amount.
func (l *Ledger) Deduct(amount float64) bool {
	l.mu.Lock()
	if amount > l.balance {
		l.mu.Unlock()
		return false
	}
	l.balance -= amount
	l.recompute()
	snap := l.snapshotLocked()
	hook := l.onChange
	l.mu.Unlock()

	if hook != nil {
		hook(snap)
	}
	return true
}

// Credit atomically adds amount to the balance and recomputes the allocation.
// Used for rollback and rewards; there is no upper bound to validate against.
func (l *Ledger) Credit(amount float64) {
	l.mu.Lock()
	l.balance += amount
	l.recompute()
	snap := l.snapshotLocked()
	hook := l.onChange
	l.mu.Unlock()

	if hook != nil {
		hook(snap)
	}
}

// Balance returns the current spendable balance.
func (l *Ledger) Balance() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

// Allocation returns a copy of the current portfolio allocation.
func (l *Ledger) Allocation() domain.PortfolioAllocation {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.allocationLocked()
}

// Snapshot returns the balance and allocation from a single critical section.
func (l *Ledger) Snapshot() domain.BalanceSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// recompute rederives each token's amount from its weight. Callers must hold
// the mutex.
func (l *Ledger) recompute() {
	for i := range l.tokens {
		l.tokens[i].Amount = l.tokens[i].Weight / 100 * l.balance
	}
}

func (l *Ledger) allocationLocked() domain.PortfolioAllocation {
	return domain.PortfolioAllocation{
		Tokens:     append([]domain.TokenAllocation(nil), l.tokens...),
		TotalValue: l.balance,
	}
}

func (l *Ledger) snapshotLocked() domain.BalanceSnapshot {
	return domain.BalanceSnapshot{
		Balance:    l.balance,
		Allocation: l.allocationLocked(),
	}
}
