// Package accrual computes earnings owed for elapsed time. All functions
// are pure reads: deterministic given the same now, never mutating the
// provider they inspect.
package accrual

import (
	"errors"
	"time"

	"github.com/subledger/subledger/id"
	"github.com/subledger/subledger/provider"
	"github.com/subledger/subledger/roster"
	"github.com/subledger/subledger/types"
)

// ErrNotSubscribed is returned when earnings are requested for a subscriber
// that is not currently on the provider's roster.
var ErrNotSubscribed = errors.New("accrual: subscriber is not on the roster")

// Earnings is the amount one roster member owes the provider for unsettled
// time.
type Earnings struct {
	Member roster.Member
	Amount types.Amount
}

// ForMember computes the earnings owed by a single roster member up to now,
// measured from the member's accrual start (join time or last withdrawal,
// whichever is later).
func ForMember(p *provider.Provider, subID id.SubscriberID, now time.Time) (types.Amount, error) {
	m, ok := p.Roster.Member(subID)
	if !ok {
		return 0, ErrNotSubscribed
	}
	return p.Schedule.EarningsBetween(p.AccrualStart(m.JoinedAt), now), nil
}

// PerMember computes the earnings owed by every roster member up to now.
// The result order follows the roster's member array.
func PerMember(p *provider.Provider, now time.Time) []Earnings {
	members := p.Roster.Members()
	out := make([]Earnings, 0, len(members))
	for _, m := range members {
		out = append(out, Earnings{
			Member: m,
			Amount: p.Schedule.EarningsBetween(p.AccrualStart(m.JoinedAt), now),
		})
	}
	return out
}

// Total sums the earnings owed by all roster members up to now.
func Total(p *provider.Provider, now time.Time) types.Amount {
	var total types.Amount
	for _, e := range PerMember(p, now) {
		total += e.Amount
	}
	return total
}
