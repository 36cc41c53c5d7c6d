// Package hook provides an extensible event hook system for Subledger.
// Hooks can observe lifecycle and settlement events to extend the engine
// without coupling it to any particular sink.
package hook

import (
	"context"
	"time"

	"github.com/subledger/subledger/id"
	"github.com/subledger/subledger/types"
)

// Hook is the base interface that all hooks must implement.
type Hook interface {
	Name() string
}

// ProviderRegistered is emitted after a provider is created. It carries the
// raw registration key bytes and the resulting fee.
type ProviderRegistered struct {
	ProviderID id.ProviderID
	Owner      string
	Operator   string
	Fee        types.Amount
	Key        []byte
	At         time.Time
}

// ProviderRemoved is emitted after a provider is deleted, after any
// residual earnings were paid out.
type ProviderRemoved struct {
	ProviderID id.ProviderID
	Owner      string
	Residual   types.Amount
	At         time.Time
}

// SubscriberRegistered is emitted after a subscriber account is created and
// its deposit pulled.
type SubscriberRegistered struct {
	SubscriberID id.SubscriberID
	Owner        string
	Deposit      types.Amount
	Plan         string
	Providers    []id.ProviderID
	At           time.Time
}

// WithdrawalSettled is emitted after a provider withdrawal commits.
type WithdrawalSettled struct {
	ProviderID id.ProviderID
	Owner      string
	Amount     types.Amount
	At         time.Time
}

// SubscriptionCanceled is emitted after a subscriber cancellation commits.
// Shortfall is the amount pulled from the owner beyond the prepaid balance.
type SubscriptionCanceled struct {
	SubscriberID id.SubscriberID
	Owner        string
	Owed         types.Amount
	Shortfall    types.Amount
	At           time.Time
}

// DepositMade is emitted after a balance top-up commits.
type DepositMade struct {
	SubscriberID id.SubscriberID
	Owner        string
	Amount       types.Amount
	At           time.Time
}

// OnProviderRegistered observes provider registrations.
type OnProviderRegistered interface {
	Hook
	OnProviderRegistered(ctx context.Context, ev ProviderRegistered) error
}

// OnProviderRemoved observes provider removals.
type OnProviderRemoved interface {
	Hook
	OnProviderRemoved(ctx context.Context, ev ProviderRemoved) error
}

// OnSubscriberRegistered observes subscriber registrations.
type OnSubscriberRegistered interface {
	Hook
	OnSubscriberRegistered(ctx context.Context, ev SubscriberRegistered) error
}

// OnWithdrawalSettled observes committed withdrawals.
type OnWithdrawalSettled interface {
	Hook
	OnWithdrawalSettled(ctx context.Context, ev WithdrawalSettled) error
}

// OnSubscriptionCanceled observes committed cancellations.
type OnSubscriptionCanceled interface {
	Hook
	OnSubscriptionCanceled(ctx context.Context, ev SubscriptionCanceled) error
}

// OnDepositMade observes committed balance top-ups.
type OnDepositMade interface {
	Hook
	OnDepositMade(ctx context.Context, ev DepositMade) error
}
