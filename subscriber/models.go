// Package subscriber defines the subscriber entity: a prepaid account
// consuming one or more providers' services.
package subscriber

import (
	"time"

	"github.com/subledger/subledger/id"
	"github.com/subledger/subledger/types"
)

// Subscriber is an entity consuming provider services, funded by a prepaid
// balance. Cancellation never hard-deletes the record: it clears the
// subscription set and marks the account paused, keeping the (possibly
// zeroed) balance.
type Subscriber struct {
	types.Entity
	ID id.SubscriberID `json:"id"`

	Owner   string       `json:"owner"`
	Balance types.Amount `json:"balance"`

	// Plan is an opaque label with no pricing effect.
	Plan string `json:"plan"`

	Paused bool `json:"paused"`

	// Providers is the set of provider ids the subscriber is currently
	// subscribed to.
	Providers []id.ProviderID `json:"providers"`
}

// New creates a subscriber with the full deposit recorded as its balance.
func New(owner string, deposit types.Amount, plan string, now time.Time) *Subscriber {
	return &Subscriber{
		Entity:  types.NewEntity(now),
		ID:      id.NewSubscriberID(),
		Owner:   owner,
		Balance: deposit,
		Plan:    plan,
	}
}

// SubscribedTo reports whether the subscriber holds a subscription to the
// provider.
func (s *Subscriber) SubscribedTo(provID id.ProviderID) bool {
	for _, pid := range s.Providers {
		if pid.Equal(provID) {
			return true
		}
	}
	return false
}

// AddProvider records a subscription. No-op if already present.
func (s *Subscriber) AddProvider(provID id.ProviderID) {
	if s.SubscribedTo(provID) {
		return
	}
	s.Providers = append(s.Providers, provID)
}

// DropProvider removes a subscription. No-op if absent.
func (s *Subscriber) DropProvider(provID id.ProviderID) {
	for i, pid := range s.Providers {
		if pid.Equal(provID) {
			s.Providers = append(s.Providers[:i], s.Providers[i+1:]...)
			return
		}
	}
}

// Canceled reports whether the subscriber has been cancelled: paused with
// no remaining subscriptions.
func (s *Subscriber) Canceled() bool {
	return s.Paused && len(s.Providers) == 0
}
