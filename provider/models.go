// Package provider defines the provider entity: a service offered at a
// per-hour fee, with its fee schedule, subscriber roster, and withdrawal
// record.
package provider

import (
	"time"

	"github.com/subledger/subledger/id"
	"github.com/subledger/subledger/roster"
	"github.com/subledger/subledger/schedule"
	"github.com/subledger/subledger/types"
)

// Withdrawal records the last point up to which a provider has been paid.
// Earnings before At are settled and must never be counted again.
type Withdrawal struct {
	At     time.Time    `json:"at"`
	Amount types.Amount `json:"amount"`
}

// IsZero reports whether a withdrawal has ever been recorded.
func (w Withdrawal) IsZero() bool { return w.At.IsZero() }

// Period returns the calendar year and month of the withdrawal, for
// reporting only.
func (w Withdrawal) Period() (int, time.Month) {
	return w.At.Year(), w.At.Month()
}

// Provider is an entity offering a metered service at a per-hour fee.
type Provider struct {
	types.Entity
	ID id.ProviderID `json:"id"`

	// Owner is the principal earnings are paid to. Operator is the
	// creating principal, distinct from the owner, authorized for roster
	// mutation alongside it.
	Owner    string `json:"owner"`
	Operator string `json:"operator"`

	Active bool `json:"active"`

	Schedule *schedule.Schedule `json:"-"`
	Roster   *roster.Roster     `json:"-"`

	LastWithdrawal Withdrawal `json:"last_withdrawal"`
}

// New creates an active provider with a fresh fee schedule seeded with one
// open-ended entry at the given fee.
func New(owner, operator string, fee types.Amount, now time.Time) *Provider {
	return &Provider{
		Entity:   types.NewEntity(now),
		ID:       id.NewProviderID(),
		Owner:    owner,
		Operator: operator,
		Active:   true,
		Schedule: schedule.New(fee, now),
		Roster:   roster.New(),
	}
}

// AccrualStart returns the instant unsettled accrual begins for a member
// that joined at the given time: the join time, or the last withdrawal if
// that is later (everything before it is already paid out).
func (p *Provider) AccrualStart(joinedAt time.Time) time.Time {
	if p.LastWithdrawal.At.After(joinedAt) {
		return p.LastWithdrawal.At
	}
	return joinedAt
}
