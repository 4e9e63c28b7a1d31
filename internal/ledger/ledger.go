// ==============================================================================
// VALUE LEDGER - internal/ledger/ledger.go
// ==============================================================================
package ledger

import (
	"context"
	"sync"

	"stakehub/internal/domain"
	"stakehub/pkg/errors"

	"github.com/shopspring/decimal"
)

// ValueLedger moves fungible value between participants and the system's
// custody account. Both operations are all-or-nothing.
type ValueLedger interface {
	// Pull debits from into custody. It fails when from lacks balance or
	// has not approved the amount.
	Pull(ctx context.Context, from domain.Address, amount decimal.Decimal) error
	// Push credits to out of custody.
	Push(ctx context.Context, to domain.Address, amount decimal.Decimal) error
	// PushAll applies every transfer or none of them.
	PushAll(ctx context.Context, transfers ...Transfer) error
}

// Transfer is one credit out of custody.
type Transfer struct {
	To     domain.Address
	Amount decimal.Decimal
}

// Hook runs before a transfer is applied, outside the ledger lock.
type Hook func(ctx context.Context, op string, account domain.Address, amount decimal.Decimal)

// Memory is an in-process custody ledger with balances and allowances.
type Memory struct {
	mu         sync.Mutex
	balances   map[domain.Address]decimal.Decimal
	allowances map[domain.Address]decimal.Decimal
	custody    decimal.Decimal
	failures   map[domain.Address]error
	hook       Hook
}

var _ ValueLedger = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		balances:   make(map[domain.Address]decimal.Decimal),
		allowances: make(map[domain.Address]decimal.Decimal),
		failures:   make(map[domain.Address]error),
	}
}

// Mint credits an account outside of custody.
func (m *Memory) Mint(a domain.Address, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[a] = m.balances[a].Add(amount)
}

// Approve sets how much custody may pull from owner.
func (m *Memory) Approve(owner domain.Address, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowances[owner] = amount
}

func (m *Memory) BalanceOf(a domain.Address) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[a]
}

func (m *Memory) Allowance(a domain.Address) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allowances[a]
}

// Custody returns the value currently held in escrow.
func (m *Memory) Custody() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.custody
}

// FailTransfers makes every transfer touching a fail with err until cleared with nil.
func (m *Memory) FailTransfers(a domain.Address, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, a)
		return
	}
	m.failures[a] = err
}

// SetHook installs fn to run before every transfer.
func (m *Memory) SetHook(fn Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = fn
}

func (m *Memory) Pull(ctx context.Context, from domain.Address, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.Validation(errors.ErrInvalidAmount)
	}
	m.runHook(ctx, "pull", from, amount)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failures[from]; err != nil {
		return errors.External(errors.Wrap(err, "pull"))
	}
	if m.allowances[from].LessThan(amount) {
		return errors.External(errors.ErrInsufficientAllowance)
	}
	if m.balances[from].LessThan(amount) {
		return errors.External(errors.ErrInsufficientBalance)
	}
	m.allowances[from] = m.allowances[from].Sub(amount)
	m.balances[from] = m.balances[from].Sub(amount)
	m.custody = m.custody.Add(amount)
	return nil
}

func (m *Memory) Push(ctx context.Context, to domain.Address, amount decimal.Decimal) error {
	return m.PushAll(ctx, Transfer{To: to, Amount: amount})
}

func (m *Memory) PushAll(ctx context.Context, transfers ...Transfer) error {
	total := decimal.Zero
	for _, t := range transfers {
		if !t.Amount.IsPositive() {
			return errors.Validation(errors.ErrInvalidAmount)
		}
		total = total.Add(t.Amount)
	}
	for _, t := range transfers {
		m.runHook(ctx, "push", t.To, t.Amount)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range transfers {
		if err := m.failures[t.To]; err != nil {
			return errors.External(errors.Wrap(err, "push"))
		}
	}
	if m.custody.LessThan(total) {
		return errors.External(errors.Wrap(errors.ErrTransferFailed, "custody underfunded"))
	}
	m.custody = m.custody.Sub(total)
	for _, t := range transfers {
		m.balances[t.To] = m.balances[t.To].Add(t.Amount)
	}
	return nil
}

func (m *Memory) runHook(ctx context.Context, op string, a domain.Address, amount decimal.Decimal) {
	m.mu.Lock()
	hook := m.hook
	m.mu.Unlock()
	if hook != nil {
		hook(ctx, op, a, amount)
	}
}
