package mongo

import (
	"fmt"
	"time"

	"github.com/subledger/subledger/id"
	"github.com/subledger/subledger/provider"
	"github.com/subledger/subledger/roster"
	"github.com/subledger/subledger/schedule"
	"github.com/subledger/subledger/subscriber"
	"github.com/subledger/subledger/types"
)

// Document models use string ids so documents stay readable in the shell.
// Times are stored as BSON dates, which truncate to millisecond precision;
// the engine works at whole-hour granularity so nothing observable is lost.

type scheduleEntryDoc struct {
	Start time.Time `bson:"start"`
	End   time.Time `bson:"end"`
	Rate  int64     `bson:"rate"`
}

type rosterMemberDoc struct {
	ID       string    `bson:"id"`
	JoinedAt time.Time `bson:"joined_at"`
}

type providerDoc struct {
	ID                   string             `bson:"_id"`
	Owner                string             `bson:"owner"`
	Operator             string             `bson:"operator"`
	Active               bool               `bson:"active"`
	Schedule             []scheduleEntryDoc `bson:"schedule"`
	Roster               []rosterMemberDoc  `bson:"roster"`
	LastWithdrawalAt     *time.Time         `bson:"last_withdrawal_at,omitempty"`
	LastWithdrawalAmount int64              `bson:"last_withdrawal_amount"`
	CreatedAt            time.Time          `bson:"created_at"`
	UpdatedAt            time.Time          `bson:"updated_at"`
}

func toProviderDoc(p *provider.Provider) *providerDoc {
	entries := p.Schedule.Entries()
	scheduleDocs := make([]scheduleEntryDoc, len(entries))
	for i, e := range entries {
		scheduleDocs[i] = scheduleEntryDoc{Start: e.Start, End: e.End, Rate: int64(e.Rate)}
	}
	members := p.Roster.Members()
	rosterDocs := make([]rosterMemberDoc, len(members))
	for i, m := range members {
		rosterDocs[i] = rosterMemberDoc{ID: m.ID.String(), JoinedAt: m.JoinedAt}
	}

	doc := &providerDoc{
		ID:                   p.ID.String(),
		Owner:                p.Owner,
		Operator:             p.Operator,
		Active:               p.Active,
		Schedule:             scheduleDocs,
		Roster:               rosterDocs,
		LastWithdrawalAmount: int64(p.LastWithdrawal.Amount),
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
	if !p.LastWithdrawal.IsZero() {
		at := p.LastWithdrawal.At
		doc.LastWithdrawalAt = &at
	}
	return doc
}

func fromProviderDoc(doc *providerDoc) (*provider.Provider, error) {
	provID, err := id.ParseProviderID(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("subledger/mongo: provider id: %w", err)
	}

	entries := make([]schedule.Entry, len(doc.Schedule))
	for i, e := range doc.Schedule {
		entries[i] = schedule.Entry{Start: e.Start, End: e.End, Rate: types.Amount(e.Rate)}
	}
	members := make([]roster.Member, len(doc.Roster))
	for i, m := range doc.Roster {
		subID, err := id.ParseSubscriberID(m.ID)
		if err != nil {
			return nil, fmt.Errorf("subledger/mongo: roster member id: %w", err)
		}
		members[i] = roster.Member{ID: subID, JoinedAt: m.JoinedAt}
	}

	p := &provider.Provider{
		Entity:   types.Entity{CreatedAt: doc.CreatedAt, UpdatedAt: doc.UpdatedAt},
		ID:       provID,
		Owner:    doc.Owner,
		Operator: doc.Operator,
		Active:   doc.Active,
		Schedule: schedule.FromEntries(entries),
		Roster:   roster.FromMembers(members),
	}
	if doc.LastWithdrawalAt != nil {
		p.LastWithdrawal = provider.Withdrawal{
			At:     *doc.LastWithdrawalAt,
			Amount: types.Amount(doc.LastWithdrawalAmount),
		}
	}
	return p, nil
}

type subscriberDoc struct {
	ID        string    `bson:"_id"`
	Owner     string    `bson:"owner"`
	Balance   int64     `bson:"balance"`
	Plan      string    `bson:"plan"`
	Paused    bool      `bson:"paused"`
	Providers []string  `bson:"providers"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func toSubscriberDoc(s *subscriber.Subscriber) *subscriberDoc {
	providers := make([]string, len(s.Providers))
	for i, provID := range s.Providers {
		providers[i] = provID.String()
	}
	return &subscriberDoc{
		ID:        s.ID.String(),
		Owner:     s.Owner,
		Balance:   int64(s.Balance),
		Plan:      s.Plan,
		Paused:    s.Paused,
		Providers: providers,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func fromSubscriberDoc(doc *subscriberDoc) (*subscriber.Subscriber, error) {
	subID, err := id.ParseSubscriberID(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("subledger/mongo: subscriber id: %w", err)
	}

	providers := make([]id.ProviderID, len(doc.Providers))
	for i, raw := range doc.Providers {
		provID, err := id.ParseProviderID(raw)
		if err != nil {
			return nil, fmt.Errorf("subledger/mongo: provider link id: %w", err)
		}
		providers[i] = provID
	}

	return &subscriber.Subscriber{
		Entity:    types.Entity{CreatedAt: doc.CreatedAt, UpdatedAt: doc.UpdatedAt},
		ID:        subID,
		Owner:     doc.Owner,
		Balance:   types.Amount(doc.Balance),
		Plan:      doc.Plan,
		Paused:    doc.Paused,
		Providers: providers,
	}, nil
}

type keyDoc struct {
	Digest     string    `bson:"_id"`
	ConsumedAt time.Time `bson:"consumed_at"`
}
