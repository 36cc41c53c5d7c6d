package postgres

// migrations run in order and are safe to re-run.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS subledger_providers (
		id                     TEXT PRIMARY KEY,
		owner                  TEXT NOT NULL,
		operator               TEXT NOT NULL DEFAULT '',
		active                 BOOLEAN NOT NULL DEFAULT TRUE,
		schedule               JSONB NOT NULL,
		roster                 JSONB NOT NULL,
		last_withdrawal_at     TIMESTAMPTZ,
		last_withdrawal_amount BIGINT NOT NULL DEFAULT 0,
		created_at             TIMESTAMPTZ NOT NULL,
		updated_at             TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS subledger_subscribers (
		id         TEXT PRIMARY KEY,
		owner      TEXT NOT NULL,
		balance    BIGINT NOT NULL DEFAULT 0,
		plan       TEXT NOT NULL DEFAULT '',
		paused     BOOLEAN NOT NULL DEFAULT FALSE,
		providers  JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS subledger_keys (
		digest      TEXT PRIMARY KEY,
		consumed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subledger_providers_owner
		ON subledger_providers (owner)`,
	`CREATE INDEX IF NOT EXISTS idx_subledger_subscribers_owner
		ON subledger_subscribers (owner)`,
}
