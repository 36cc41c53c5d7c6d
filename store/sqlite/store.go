// Package sqlite implements store.Store on SQLite via mattn/go-sqlite3.
// It mirrors the postgres backend's layout with JSON text columns for the
// schedule, roster and provider list. Suited to embedded and test use.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	ledger "github.com/subledger/subledger"
	"github.com/subledger/subledger/id"
	"github.com/subledger/subledger/provider"
	ledgerstore "github.com/subledger/subledger/store"
	"github.com/subledger/subledger/subscriber"
)

var _ ledgerstore.Store = (*Store)(nil)

// Store is a SQLite-backed store.
type Store struct {
	db *sql.DB
}

// New opens the database at path. Use ":memory:" for an in-memory store;
// note that in-memory databases require a single connection.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("subledger/sqlite: open: %w", err)
	}
	// SQLite permits one writer at a time. Serializing through a single
	// connection avoids SQLITE_BUSY and keeps :memory: databases coherent.
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("subledger/sqlite: migrate: %w", err)
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.Owner, row.Operator, row.Active, row.Schedule, row.Roster,
		row.LastWithdrawalAt, row.LastWithdrawalAmount, row.CreatedAt, row.UpdatedAt)
	if isUniqueViolation(err) {
		return ledger.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("subledger/sqlite: create provider: %w", err)
	}
	return nil
}

func (s *Store) GetProvider(ctx context.Context, provID id.ProviderID) (*provider.Provider, error) {
	var row providerRow
	err := s.db.QueryRowContext(ctx, `
		SELECT `+providerColumns+`
		FROM subledger_providers WHERE id = ?`, provID.String()).Scan(
		&row.ID, &row.Owner, &row.Operator, &row.Active, &row.Schedule, &row.Roster,
		&row.LastWithdrawalAt, &row.LastWithdrawalAmount, &row.CreatedAt, &row.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrProviderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("subledger/sqlite: get provider: %w", err)
	}
	return fromProviderRow(&row)
}

func (s *Store) ListProviders(ctx context.Context) ([]*provider.Provider, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+providerColumns+`
		FROM subledger_providers ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("subledger/sqlite: list providers: %w", err)
	}
	defer rows.Close()

	var out []*provider.Provider
	for rows.Next() {
		var row providerRow
		if err := rows.Scan(
			&row.ID, &row.Owner, &row.Operator, &row.Active, &row.Schedule, &row.Roster,
			&row.LastWithdrawalAt, &row.LastWithdrawalAmount, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("subledger/sqlite: scan provider: %w", err)
		}
		p, err := fromProviderRow(&row)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("subledger/sqlite: list providers: %w", err)
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
		SET owner = ?, operator = ?, active = ?, schedule = ?, roster = ?,
			last_withdrawal_at = ?, last_withdrawal_amount = ?, updated_at = ?
		WHERE id = ?`,
		row.Owner, row.Operator, row.Active, row.Schedule, row.Roster,
		row.LastWithdrawalAt, row.LastWithdrawalAmount, row.UpdatedAt, row.ID)
	if err != nil {
		return fmt.Errorf("subledger/sqlite: update provider: %w", err)
	}
	return checkAffected(res, ledger.ErrProviderNotFound)
}

func (s *Store) DeleteProvider(ctx context.Context, provID id.ProviderID) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM subledger_providers WHERE id = ?`, provID.String())
	if err != nil {
		return fmt.Errorf("subledger/sqlite: delete provider: %w", err)
	}
	return checkAffected(res, ledger.ErrProviderNotFound)
}

func (s *Store) CountProviders(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subledger_providers`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("subledger/sqlite: count providers: %w", err)
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.Owner, row.Balance, row.Plan, row.Paused, row.Providers,
		row.CreatedAt, row.UpdatedAt)
	if isUniqueViolation(err) {
		return ledger.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("subledger/sqlite: create subscriber: %w", err)
	}
	return nil
}

func (s *Store) GetSubscriber(ctx context.Context, subID id.SubscriberID) (*subscriber.Subscriber, error) {
	var row subscriberRow
	err := s.db.QueryRowContext(ctx, `
		SELECT `+subscriberColumns+`
		FROM subledger_subscribers WHERE id = ?`, subID.String()).Scan(
		&row.ID, &row.Owner, &row.Balance, &row.Plan, &row.Paused, &row.Providers,
		&row.CreatedAt, &row.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrSubscriberNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("subledger/sqlite: get subscriber: %w", err)
	}
	return fromSubscriberRow(&row)
}

func (s *Store) ListSubscribers(ctx context.Context) ([]*subscriber.Subscriber, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+subscriberColumns+`
		FROM subledger_subscribers ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("subledger/sqlite: list subscribers: %w", err)
	}
	defer rows.Close()

	var out []*subscriber.Subscriber
	for rows.Next() {
		var row subscriberRow
		if err := rows.Scan(
			&row.ID, &row.Owner, &row.Balance, &row.Plan, &row.Paused, &row.Providers,
			&row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("subledger/sqlite: scan subscriber: %w", err)
		}
		sub, err := fromSubscriberRow(&row)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("subledger/sqlite: list subscribers: %w", err)
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
		SET owner = ?, balance = ?, plan = ?, paused = ?, providers = ?, updated_at = ?
		WHERE id = ?`,
		row.Owner, row.Balance, row.Plan, row.Paused, row.Providers, row.UpdatedAt, row.ID)
	if err != nil {
		return fmt.Errorf("subledger/sqlite: update subscriber: %w", err)
	}
	return checkAffected(res, ledger.ErrSubscriberNotFound)
}

func (s *Store) KeyConsumed(ctx context.Context, digest string) (bool, error) {
	var used bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM subledger_keys WHERE digest = ?)`, digest).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("subledger/sqlite: key lookup: %w", err)
	}
	return used, nil
}

func (s *Store) ConsumeKey(ctx context.Context, digest string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO subledger_keys (digest, consumed_at) VALUES (?, CURRENT_TIMESTAMP)`, digest)
	if isUniqueViolation(err) {
		return ledger.ErrKeyAlreadyUsed
	}
	if err != nil {
		return fmt.Errorf("subledger/sqlite: consume key: %w", err)
	}
	return nil
}

func checkAffected(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("subledger/sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return missing
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
