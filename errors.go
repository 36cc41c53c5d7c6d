package subledger

import "errors"

// Sentinel errors for common failure scenarios.
var (
	// Authorization errors
	ErrNotOwner    = errors.New("subledger: caller is not the owner")
	ErrNotOperator = errors.New("subledger: caller is not the owner or operator")

	// Validation errors
	ErrFeeBelowMinimum     = errors.New("subledger: fee is below the minimal fee")
	ErrKeyAlreadyUsed      = errors.New("subledger: registration key already used")
	ErrProviderListSize    = errors.New("subledger: provider list size out of range")
	ErrBatchLengthMismatch = errors.New("subledger: batch arrays differ in length")
	ErrProviderCapReached  = errors.New("subledger: provider count at capacity")
	ErrDepositTooLow       = errors.New("subledger: deposit does not cover two periods of fees")
	ErrInvalidAmount       = errors.New("subledger: amount must be positive")

	// State errors
	ErrProviderNotFound   = errors.New("subledger: provider not found")
	ErrSubscriberNotFound = errors.New("subledger: subscriber not found")
	ErrProviderInactive   = errors.New("subledger: provider is inactive")
	ErrAlreadySubscribed  = errors.New("subledger: already subscribed to provider")
	ErrNotSubscribed      = errors.New("subledger: not subscribed to provider")
	ErrAlreadyCanceled    = errors.New("subledger: subscriber already cancelled")

	// Transfer errors
	ErrTransferFailed = errors.New("subledger: value transfer declined")

	// Store errors
	ErrNotFound      = errors.New("subledger: not found")
	ErrAlreadyExists = errors.New("subledger: already exists")
	ErrStoreClosed   = errors.New("subledger: store is closed")
)

// IsAuthorization returns true if the error is an authorization failure.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrNotOwner) ||
		errors.Is(err, ErrNotOperator)
}

// IsValidation returns true if the error is a validation failure: the
// request was malformed before any state was touched.
func IsValidation(err error) bool {
	return errors.Is(err, ErrFeeBelowMinimum) ||
		errors.Is(err, ErrKeyAlreadyUsed) ||
		errors.Is(err, ErrProviderListSize) ||
		errors.Is(err, ErrBatchLengthMismatch) ||
		errors.Is(err, ErrProviderCapReached) ||
		errors.Is(err, ErrDepositTooLow) ||
		errors.Is(err, ErrInvalidAmount)
}

// IsState returns true if the error is a state conflict: the operation does
// not apply to the entity in its current state.
func IsState(err error) bool {
	return errors.Is(err, ErrProviderNotFound) ||
		errors.Is(err, ErrSubscriberNotFound) ||
		errors.Is(err, ErrProviderInactive) ||
		errors.Is(err, ErrAlreadySubscribed) ||
		errors.Is(err, ErrNotSubscribed) ||
		errors.Is(err, ErrAlreadyCanceled)
}

// IsTransferFailure returns true if the external value-transfer service
// declined and the enclosing operation was aborted with no state change.
func IsTransferFailure(err error) bool {
	return errors.Is(err, ErrTransferFailed)
}
