// Package schedule implements the fee schedule of a provider: an ordered,
// append-only-but-prunable sequence of fee intervals that answers "what was
// the rate at time T" and "how much accrued between T0 and T1".
package schedule

import (
	"time"

	"github.com/subledger/subledger/types"
)

// OpenEnd is the far-future sentinel used as the closing time of the single
// open-ended entry. It stays in place until the entry is superseded by a
// newer rate.
var OpenEnd = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// Entry is one fee interval: the charge rate per whole hour during the
// half-open interval [Start, End).
type Entry struct {
	Start time.Time    `json:"start"`
	End   time.Time    `json:"end"`
	Rate  types.Amount `json:"rate"`
}

// Open reports whether the entry is the open-ended tail of the schedule.
func (e Entry) Open() bool { return e.End.Equal(OpenEnd) }

// overlapHours returns the number of whole hours in the overlap between the
// entry interval and [from, until). Fractional hours truncate to zero.
func (e Entry) overlapHours(from, until time.Time) int64 {
	lo := from
	if e.Start.After(lo) {
		lo = e.Start
	}
	hi := until
	if e.End.Before(hi) {
		hi = e.End
	}
	if !hi.After(lo) {
		return 0
	}
	return int64(hi.Sub(lo) / time.Hour)
}

// Schedule is the fee history of one provider. It is non-empty after
// construction and holds at most one open-ended entry at any time. Entries
// tile time without gaps from the oldest retained start onward.
//
// Schedule is not safe for concurrent use; the engine serializes access.
type Schedule struct {
	entries []Entry
}

// New creates a schedule with a single open-ended entry at the given rate,
// starting at now.
func New(rate types.Amount, now time.Time) *Schedule {
	return &Schedule{entries: []Entry{{Start: now, End: OpenEnd, Rate: rate}}}
}

// FromEntries reconstructs a schedule from stored entries. The slice is
// copied; entries must already be ordered by start time.
func FromEntries(entries []Entry) *Schedule {
	s := &Schedule{entries: make([]Entry, len(entries))}
	copy(s.entries, entries)
	return s
}

// Entries returns a copy of the retained fee intervals in order.
func (s *Schedule) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of retained entries.
func (s *Schedule) Len() int { return len(s.entries) }

// CurrentRate returns the rate of the open-ended entry.
func (s *Schedule) CurrentRate() types.Amount {
	if len(s.entries) == 0 {
		return 0
	}
	return s.entries[len(s.entries)-1].Rate
}

// SetRate closes the open-ended entry at now and appends a new open-ended
// entry at the given rate starting at now. Setting the rate twice at the
// same instant rewrites the open entry in place rather than leaving a
// zero-width interval behind.
func (s *Schedule) SetRate(rate types.Amount, now time.Time) {
	if len(s.entries) == 0 {
		s.entries = append(s.entries, Entry{Start: now, End: OpenEnd, Rate: rate})
		return
	}

	last := &s.entries[len(s.entries)-1]
	if !now.After(last.Start) {
		last.Rate = rate
		return
	}

	last.End = now
	s.entries = append(s.entries, Entry{Start: now, End: OpenEnd, Rate: rate})
}

// PruneBefore drops every entry whose End is at or before t. Such entries
// can no longer affect future accrual because everything up to t is already
// settled; pruning bounds the schedule's growth to the number of rate
// changes since the oldest unsettled subscriber joined.
func (s *Schedule) PruneBefore(t time.Time) {
	keep := s.entries[:0]
	for _, e := range s.entries {
		if e.End.After(t) {
			keep = append(keep, e)
		}
	}
	s.entries = keep
}

// EarningsBetween sums, over every retained entry, the whole-hour overlap
// between [from, until) and the entry interval, multiplied by the entry's
// rate. Each slice truncates its fractional hours independently.
func (s *Schedule) EarningsBetween(from, until time.Time) types.Amount {
	var total types.Amount
	for _, e := range s.entries {
		total += e.Rate.ForHours(e.overlapHours(from, until))
	}
	return total
}
