package transfer

import (
	"context"
	"sync"

	"github.com/subledger/subledger/types"
)

// compile-time interface check
var _ Service = (*Bank)(nil)

// Bank is an in-memory Service keeping per-account balances. The ledger's
// escrow account is the source of Transfer calls.
type Bank struct {
	mu       sync.Mutex
	escrow   string
	accounts map[string]types.Amount
}

// NewBank creates a bank whose Transfer calls debit the given escrow
// account.
func NewBank(escrow string) *Bank {
	return &Bank{
		escrow:   escrow,
		accounts: map[string]types.Amount{escrow: 0},
	}
}

// Credit adds funds to an account, creating it if needed.
func (b *Bank) Credit(account string, amount types.Amount) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.accounts[account] += amount
}

// Balance returns an account's balance. Unknown accounts hold zero.
func (b *Bank) Balance(account string) types.Amount {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accounts[account]
}

// Transfer moves amount from the escrow account to the recipient.
func (b *Bank) Transfer(_ context.Context, to string, amount types.Amount) error {
	return b.TransferFrom(context.Background(), b.escrow, to, amount)
}

// TransferFrom moves amount between two accounts. Fails if the source
// cannot cover it.
func (b *Bank) TransferFrom(_ context.Context, from, to string, amount types.Amount) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.accounts[from]; !ok {
		return ErrUnknownAccount
	}
	if b.accounts[from] < amount {
		return ErrInsufficientFunds
	}
	b.accounts[from] -= amount
	b.accounts[to] += amount
	return nil
}
