package sqlite

// migrations run in order and are safe to re-run.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS subledger_providers (
		id                     TEXT PRIMARY KEY,
		owner                  TEXT NOT NULL,
		operator               TEXT NOT NULL DEFAULT '',
		active                 BOOLEAN NOT NULL DEFAULT TRUE,
		schedule               TEXT NOT NULL,
		roster                 TEXT NOT NULL,
		last_withdrawal_at     TIMESTAMP,
		last_withdrawal_amount INTEGER NOT NULL DEFAULT 0,
		created_at             TIMESTAMP NOT NULL,
		updated_at             TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS subledger_subscribers (
		id         TEXT PRIMARY KEY,
		owner      TEXT NOT NULL,
		balance    INTEGER NOT NULL DEFAULT 0,
		plan       TEXT NOT NULL DEFAULT '',
		paused     BOOLEAN NOT NULL DEFAULT FALSE,
		providers  TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS subledger_keys (
		digest      TEXT PRIMARY KEY,
		consumed_at TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subledger_providers_owner
		ON subledger_providers (owner)`,
	`CREATE INDEX IF NOT EXISTS idx_subledger_subscribers_owner
		ON subledger_subscribers (owner)`,
}
