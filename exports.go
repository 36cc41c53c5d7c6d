package subledger

import "github.com/subledger/subledger/types"

// Re-export common types for convenience so users don't have to import the
// types package.

// Amount is re-exported from the types package.
type Amount = types.Amount

// Entity is re-exported from the types package.
type Entity = types.Entity

// Re-export Amount helpers
var (
	Sum       = types.Sum
	NewEntity = types.NewEntity
)
