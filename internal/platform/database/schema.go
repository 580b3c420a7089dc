package database

import "database/sql"

// Schema statements for the five hub tables. cmd/migrate applies these;
// repository tests reuse them against :memory: databases.
var schemaUp = []string{
	`CREATE TABLE IF NOT EXISTS apps (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		provider TEXT NOT NULL,
		api_key_prefix TEXT UNIQUE NOT NULL,
		api_key_hash TEXT NOT NULL,
		webhook_secret TEXT NOT NULL,
		webhook_url TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		notify_on_expiry INTEGER NOT NULL DEFAULT 0,
		metadata TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS payups (
		id TEXT PRIMARY KEY,
		app_id TEXT NOT NULL REFERENCES apps(id),
		amount INTEGER NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		customer_name TEXT,
		customer_email TEXT,
		return_url TEXT,
		cancel_url TEXT,
		metadata TEXT,
		provider_data TEXT,
		expires_at INTEGER NOT NULL,
		completed_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payups_status_expiry ON payups(status, expires_at)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		app_id TEXT NOT NULL REFERENCES apps(id),
		payup_id TEXT UNIQUE NOT NULL REFERENCES payups(id),
		external_id TEXT,
		amount INTEGER NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		failure_reason TEXT,
		provider_data TEXT,
		fees INTEGER,
		net_amount INTEGER,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS webhook_templates (
		id TEXT PRIMARY KEY,
		app_id TEXT NOT NULL REFERENCES apps(id),
		name TEXT NOT NULL,
		event_type TEXT NOT NULL,
		is_default INTEGER NOT NULL DEFAULT 0,
		format TEXT NOT NULL,
		headers TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(app_id, name, event_type)
	)`,
	`CREATE TABLE IF NOT EXISTS webhook_logs (
		id TEXT PRIMARY KEY,
		app_id TEXT NOT NULL REFERENCES apps(id),
		transaction_id TEXT,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		direction TEXT NOT NULL,
		status TEXT NOT NULL,
		payload BLOB NOT NULL,
		headers TEXT,
		status_code INTEGER,
		response_body TEXT,
		error_message TEXT,
		retry_count INTEGER NOT NULL DEFAULT 0,
		next_retry_at INTEGER,
		claimed_at INTEGER,
		processed_at INTEGER,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_webhook_logs_due ON webhook_logs(status, next_retry_at)`,
	`CREATE INDEX IF NOT EXISTS idx_webhook_logs_event ON webhook_logs(event_id)`,
}

var schemaDown = []string{
	`DROP TABLE IF EXISTS webhook_logs`,
	`DROP TABLE IF EXISTS webhook_templates`,
	`DROP TABLE IF EXISTS transactions`,
	`DROP TABLE IF EXISTS payups`,
	`DROP TABLE IF EXISTS apps`,
}

func MigrateUp(db *sql.DB) error {
	for _, stmt := range schemaUp {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func MigrateDown(db *sql.DB) error {
	for _, stmt := range schemaDown {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
