// Package postgres implements store.Store on PostgreSQL via database/sql
// and lib/pq. Schedules, rosters and subscriber provider lists are kept as
// JSONB documents; everything else is a plain column.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	ledger "github.com/subledger/subledger"
	"github.com/subledger/subledger/id"
	"github.com/subledger/subledger/provider"
	ledgerstore "github.com/subledger/subledger/store"
	"github.com/subledger/subledger/subscriber"
)

// uniqueViolation is the PostgreSQL error code for unique constraint hits.
const uniqueViolation = "23505"

var _ ledgerstore.Store = (*Store)(nil)

// Store is a PostgreSQL-backed store.
type Store struct {
	db *sql.DB
}

// New opens a connection pool against the given DSN. The pool is lazy; call
// Ping or Migrate to verify connectivity.
func New(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("subledger/postgres: open: %w", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an already-opened pool. The caller keeps ownership of any
// pool settings; Close still closes it.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("subledger/postgres: migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

const providerColumns = `id, owner, operator, active, schedule, roster,
	last_withdrawal_at, last_withdrawal_amount, created_at, updated_at`

func (s *Store) CreateProvider(ctx context.Context, p *provider.Provider) error {
	row, err := toProviderRow(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO subledger_providers (`+providerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		row.ID, row.Owner, row.Operator, row.Active, row.Schedule, row.Roster,
		row.LastWithdrawalAt, row.LastWithdrawalAmount, row.CreatedAt, row.UpdatedAt)
	if isUniqueViolation(err) {
		return ledger.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("subledger/postgres: create provider: %w", err)
	}
	return nil
}

func (s *Store) GetProvider(ctx context.Context, provID id.ProviderID) (*provider.Provider, error) {
	var row providerRow
	err := s.db.QueryRowContext(ctx, `
		SELECT `+providerColumns+`
		FROM subledger_providers WHERE id = $1`, provID.String()).Scan(
		&row.ID, &row.Owner, &row.Operator, &row.Active, &row.Schedule, &row.Roster,
		&row.LastWithdrawalAt, &row.LastWithdrawalAmount, &row.CreatedAt, &row.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrProviderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("subledger/postgres: get provider: %w", err)
	}
	return fromProviderRow(&row)
}

func (s *Store) ListProviders(ctx context.Context) ([]*provider.Provider, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+providerColumns+`
		FROM subledger_providers ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("subledger/postgres: list providers: %w", err)
	}
	defer rows.Close()

	var out []*provider.Provider
	for rows.Next() {
		var row providerRow
		if err := rows.Scan(
			&row.ID, &row.Owner, &row.Operator, &row.Active, &row.Schedule, &row.Roster,
			&row.LastWithdrawalAt, &row.LastWithdrawalAmount, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("subledger/postgres: scan provider: %w", err)
		}
		p, err := fromProviderRow(&row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("subledger/postgres: list providers: %w", err)
	}
	return out, nil
}

func (s *Store) UpdateProvider(ctx context.Context, p *provider.Provider) error {
	row, err := toProviderRow(p)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE subledger_providers
		SET owner = $2, operator = $3, active = $4, schedule = $5, roster = $6,
			last_withdrawal_at = $7, last_withdrawal_amount = $8, updated_at = $9
		WHERE id = $1`,
		row.ID, row.Owner, row.Operator, row.Active, row.Schedule, row.Roster,
		row.LastWithdrawalAt, row.LastWithdrawalAmount, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("subledger/postgres: update provider: %w", err)
	}
	return checkAffected(res, ledger.ErrProviderNotFound)
}

func (s *Store) DeleteProvider(ctx context.Context, provID id.ProviderID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM subledger_providers WHERE id = $1`, provID.String())
	if err != nil {
		return fmt.Errorf("subledger/postgres: delete provider: %w", err)
	}
	return checkAffected(res, ledger.ErrProviderNotFound)
}

func (s *Store) CountProviders(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subledger_providers`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("subledger/postgres: count providers: %w", err)
	}
	return n, nil
}

const subscriberColumns = `id, owner, balance, plan, paused, providers, created_at, updated_at`

func (s *Store) CreateSubscriber(ctx context.Context, sub *subscriber.Subscriber) error {
	row, err := toSubscriberRow(sub)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO subledger_subscribers (`+subscriberColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		row.ID, row.Owner, row.Balance, row.Plan, row.Paused, row.Providers,
		row.CreatedAt, row.UpdatedAt)
	if isUniqueViolation(err) {
		return ledger.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("subledger/postgres: create subscriber: %w", err)
	}
	return nil
}

func (s *Store) GetSubscriber(ctx context.Context, subID id.SubscriberID) (*subscriber.Subscriber, error) {
	var row subscriberRow
	err := s.db.QueryRowContext(ctx, `
		SELECT `+subscriberColumns+`
		FROM subledger_subscribers WHERE id = $1`, subID.String()).Scan(
		&row.ID, &row.Owner, &row.Balance, &row.Plan, &row.Paused, &row.Providers,
		&row.CreatedAt, &row.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrSubscriberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("subledger/postgres: get subscriber: %w", err)
	}
	return fromSubscriberRow(&row)
}

func (s *Store) ListSubscribers(ctx context.Context) ([]*subscriber.Subscriber, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+subscriberColumns+`
		FROM subledger_subscribers ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("subledger/postgres: list subscribers: %w", err)
	}
	defer rows.Close()

	var out []*subscriber.Subscriber
	for rows.Next() {
		var row subscriberRow
		if err := rows.Scan(
			&row.ID, &row.Owner, &row.Balance, &row.Plan, &row.Paused, &row.Providers,
			&row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("subledger/postgres: scan subscriber: %w", err)
		}
		sub, err := fromSubscriberRow(&row)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("subledger/postgres: list subscribers: %w", err)
	}
	return out, nil
}

func (s *Store) UpdateSubscriber(ctx context.Context, sub *subscriber.Subscriber) error {
	row, err := toSubscriberRow(sub)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE subledger_subscribers
		SET owner = $2, balance = $3, plan = $4, paused = $5, providers = $6, updated_at = $7
		WHERE id = $1`,
		row.ID, row.Owner, row.Balance, row.Plan, row.Paused, row.Providers, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("subledger/postgres: update subscriber: %w", err)
	}
	return checkAffected(res, ledger.ErrSubscriberNotFound)
}

func (s *Store) KeyConsumed(ctx context.Context, digest string) (bool, error) {
	var used bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM subledger_keys WHERE digest = $1)`, digest).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("subledger/postgres: key lookup: %w", err)
	}
	return used, nil
}

func (s *Store) ConsumeKey(ctx context.Context, digest string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subledger_keys (digest) VALUES ($1)`, digest)
	if isUniqueViolation(err) {
		return ledger.ErrKeyAlreadyUsed
	}
	if err != nil {
		return fmt.Errorf("subledger/postgres: consume key: %w", err)
	}
	return nil
}

func checkAffected(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("subledger/postgres: rows affected: %w", err)
	}
	if n == 0 {
		return missing
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
