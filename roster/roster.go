// Package roster implements the per-provider set of active subscribers:
// a dense member array plus an id-to-index map, giving O(1) membership
// tests and O(1) swap-with-last removal.
package roster

import (
	"errors"
	"time"

	"github.com/subledger/subledger/id"
)

var (
	// ErrDuplicateMember is returned when adding an id that is already present.
	ErrDuplicateMember = errors.New("roster: already a member")

	// ErrNotMember is returned when removing or reading an absent id.
	ErrNotMember = errors.New("roster: not a member")
)

// Member is one active subscription: the subscriber id and the instant it
// joined. A member's position in the dense array is tracked by the roster's
// index map and changes under swap-removal; it carries no meaning beyond
// bookkeeping.
type Member struct {
	ID       id.SubscriberID `json:"id"`
	JoinedAt time.Time       `json:"joined_at"`
}

// Roster is the set of a provider's currently active subscribers.
// It is not safe for concurrent use; the engine serializes access.
type Roster struct {
	members []Member
	index   map[string]int
}

// New creates an empty roster.
func New() *Roster {
	return &Roster{index: make(map[string]int)}
}

// FromMembers reconstructs a roster from stored members, rebuilding the
// index map from positions. The slice is copied.
func FromMembers(members []Member) *Roster {
	r := &Roster{
		members: make([]Member, len(members)),
		index:   make(map[string]int, len(members)),
	}
	copy(r.members, members)
	for i, m := range r.members {
		r.index[m.ID.String()] = i
	}
	return r
}

// Len returns the number of active members.
func (r *Roster) Len() int { return len(r.members) }

// Contains reports whether the subscriber is an active member.
func (r *Roster) Contains(subID id.SubscriberID) bool {
	_, ok := r.index[subID.String()]
	return ok
}

// Member returns the member record for the subscriber.
func (r *Roster) Member(subID id.SubscriberID) (Member, bool) {
	i, ok := r.index[subID.String()]
	if !ok {
		return Member{}, false
	}
	return r.members[i], true
}

// Index returns the subscriber's current position in the member array.
func (r *Roster) Index(subID id.SubscriberID) (int, bool) {
	i, ok := r.index[subID.String()]
	return i, ok
}

// Members returns a copy of the member array. Order is not semantically
// meaningful; it changes under removal.
func (r *Roster) Members() []Member {
	out := make([]Member, len(r.members))
	copy(out, r.members)
	return out
}

// Add appends the subscriber with the given join time.
// Fails with ErrDuplicateMember if already present.
func (r *Roster) Add(subID id.SubscriberID, now time.Time) error {
	key := subID.String()
	if _, ok := r.index[key]; ok {
		return ErrDuplicateMember
	}
	if r.index == nil {
		r.index = make(map[string]int)
	}
	r.members = append(r.members, Member{ID: subID, JoinedAt: now})
	r.index[key] = len(r.members) - 1
	return nil
}

// Remove deletes the subscriber in O(1) by swapping the last member into
// the vacated slot and truncating the array, keeping every remaining
// member's stored index equal to its position.
// Fails with ErrNotMember if absent.
func (r *Roster) Remove(subID id.SubscriberID) error {
	key := subID.String()
	i, ok := r.index[key]
	if !ok {
		return ErrNotMember
	}

	last := len(r.members) - 1
	if i != last {
		r.members[i] = r.members[last]
		r.index[r.members[i].ID.String()] = i
	}
	r.members = r.members[:last]
	delete(r.index, key)
	return nil
}
