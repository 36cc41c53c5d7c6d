package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/subledger/subledger/id"
	"github.com/subledger/subledger/provider"
	"github.com/subledger/subledger/roster"
	"github.com/subledger/subledger/schedule"
	"github.com/subledger/subledger/subscriber"
	"github.com/subledger/subledger/types"
)

type providerRow struct {
	ID                   string
	Owner                string
	Operator             string
	Active               bool
	Schedule             []byte
	Roster               []byte
	LastWithdrawalAt     sql.NullTime
	LastWithdrawalAmount int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func toProviderRow(p *provider.Provider) (*providerRow, error) {
	scheduleJSON, err := json.Marshal(p.Schedule.Entries())
	if err != nil {
		return nil, fmt.Errorf("subledger/sqlite: marshal schedule: %w", err)
	}
	rosterJSON, err := json.Marshal(p.Roster.Members())
	if err != nil {
		return nil, fmt.Errorf("subledger/sqlite: marshal roster: %w", err)
	}

	row := &providerRow{
		ID:                   p.ID.String(),
		Owner:                p.Owner,
		Operator:             p.Operator,
		Active:               p.Active,
		Schedule:             scheduleJSON,
		Roster:               rosterJSON,
		LastWithdrawalAmount: int64(p.LastWithdrawal.Amount),
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
	if !p.LastWithdrawal.IsZero() {
		row.LastWithdrawalAt = sql.NullTime{Time: p.LastWithdrawal.At, Valid: true}
	}
	return row, nil
}

func fromProviderRow(row *providerRow) (*provider.Provider, error) {
	provID, err := id.ParseProviderID(row.ID)
	if err != nil {
		return nil, fmt.Errorf("subledger/sqlite: provider id: %w", err)
	}

	var entries []schedule.Entry
	if err := json.Unmarshal(row.Schedule, &entries); err != nil {
		return nil, fmt.Errorf("subledger/sqlite: unmarshal schedule: %w", err)
	}
	var members []roster.Member
	if err := json.Unmarshal(row.Roster, &members); err != nil {
		return nil, fmt.Errorf("subledger/sqlite: unmarshal roster: %w", err)
	}

	p := &provider.Provider{
		Entity:   types.Entity{CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt},
		ID:       provID,
		Owner:    row.Owner,
		Operator: row.Operator,
		Active:   row.Active,
		Schedule: schedule.FromEntries(entries),
		Roster:   roster.FromMembers(members),
	}
	if row.LastWithdrawalAt.Valid {
		p.LastWithdrawal = provider.Withdrawal{
			At:     row.LastWithdrawalAt.Time,
			Amount: types.Amount(row.LastWithdrawalAmount),
		}
	}
	return p, nil
}

type subscriberRow struct {
	ID        string
	Owner     string
	Balance   int64
	Plan      string
	Paused    bool
	Providers []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

func toSubscriberRow(s *subscriber.Subscriber) (*subscriberRow, error) {
	providersJSON, err := json.Marshal(s.Providers)
	if err != nil {
		return nil, fmt.Errorf("subledger/sqlite: marshal providers: %w", err)
	}

	return &subscriberRow{
		ID:        s.ID.String(),
		Owner:     s.Owner,
		Balance:   int64(s.Balance),
		Plan:      s.Plan,
		Paused:    s.Paused,
		Providers: providersJSON,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}, nil
}

func fromSubscriberRow(row *subscriberRow) (*subscriber.Subscriber, error) {
	subID, err := id.ParseSubscriberID(row.ID)
	if err != nil {
		return nil, fmt.Errorf("subledger/sqlite: subscriber id: %w", err)
	}

	var providers []id.ProviderID
	if err := json.Unmarshal(row.Providers, &providers); err != nil {
		return nil, fmt.Errorf("subledger/sqlite: unmarshal providers: %w", err)
	}

	return &subscriber.Subscriber{
		Entity:    types.Entity{CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt},
		ID:        subID,
		Owner:     row.Owner,
		Balance:   types.Amount(row.Balance),
		Plan:      row.Plan,
		Paused:    row.Paused,
		Providers: providers,
	}, nil
}
