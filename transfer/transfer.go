// Package transfer defines the external value-transfer collaborator the
// ledger settles through, plus an in-memory implementation for local use
// and tests. The engine treats any transfer failure as a fatal abort of the
// enclosing operation.
package transfer

import (
	"context"
	"errors"

	"github.com/subledger/subledger/types"
)

var (
	// ErrInsufficientFunds is returned when the source account cannot
	// cover the amount.
	ErrInsufficientFunds = errors.New("transfer: insufficient funds")

	// ErrUnknownAccount is returned for an account the service has never
	// seen.
	ErrUnknownAccount = errors.New("transfer: unknown account")

	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("transfer: amount must be positive")
)

// Service moves value between accounts. Transfer sends from the ledger's
// own escrow account; TransferFrom pulls from an arbitrary account that has
// authorized the ledger.
type Service interface {
	Transfer(ctx context.Context, to string, amount types.Amount) error
	TransferFrom(ctx context.Context, from, to string, amount types.Amount) error
}
