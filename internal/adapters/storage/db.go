package storage

import (
	"database/sql"
	"fmt"
)

// InitDB initializes the database schema.
// PRE: db is a valid database connection
// POST: All tables are created, WAL mode enabled
func InitDB(db *sql.DB) error {
	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	// Enable foreign key enforcement
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS account (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		onboarding_step TEXT NOT NULL,
		workout_days TEXT NOT NULL DEFAULT '',
		session_minutes INTEGER NOT NULL DEFAULT 0,
		reminder_hour INTEGER NOT NULL DEFAULT 7,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		date TEXT NOT NULL,
		minutes INTEGER NOT NULL,
		kind TEXT NOT NULL,
		lobby_id TEXT NOT NULL DEFAULT '',
		completed_at TEXT NOT NULL,
		FOREIGN KEY (account_id) REFERENCES account(id)
	);
	CREATE INDEX IF NOT EXISTS idx_session_account_date ON session(account_id, date);

	CREATE TABLE IF NOT EXISTS lobby (
		id TEXT PRIMARY KEY,
		host_id TEXT NOT NULL,
		title TEXT NOT NULL,
		scheduled_start TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		ended_at TEXT,
		FOREIGN KEY (host_id) REFERENCES account(id)
	);
	CREATE INDEX IF NOT EXISTS idx_lobby_status ON lobby(status);

	CREATE TABLE IF NOT EXISTS join_request (
		id TEXT PRIMARY KEY,
		lobby_id TEXT NOT NULL,
		account_id TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		decided_at TEXT,
		FOREIGN KEY (lobby_id) REFERENCES lobby(id),
		FOREIGN KEY (account_id) REFERENCES account(id)
	);
	CREATE INDEX IF NOT EXISTS idx_join_request_lobby ON join_request(lobby_id, status);

	CREATE TABLE IF NOT EXISTS notification (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL DEFAULT '',
		scheduled_for TEXT NOT NULL,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		max_attempts INTEGER NOT NULL DEFAULT 3,
		last_attempted_at TEXT,
		sent_at TEXT,
		error_message TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		FOREIGN KEY (account_id) REFERENCES account(id)
	);
	CREATE INDEX IF NOT EXISTS idx_notification_due ON notification(status, scheduled_for);

	CREATE TABLE IF NOT EXISTS announcement (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		audience TEXT NOT NULL,
		published_at TEXT,
		expires_at TEXT,
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
