// Package sqlite implements the repository interfaces on an embedded SQLite
// database via the pure-Go modernc.org/sqlite driver — no cgo, no external
// database server, a single file (or ":memory:" in tests).
package sqlite

import (
	"database/sql"
	"fmt"

	// Blank import registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and carries the repository methods for
// users, refresh tokens, and password reset tokens.
type DB struct {
	conn *sql.DB
}

// New opens (and if necessary creates) the database at dbPath and runs
// migrations. Use ":memory:" for an ephemeral test database.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets reads proceed while a write is in flight — required for a
	// web server where concurrent requests hit the same file.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool, flushing the WAL.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. CREATE ... IF NOT EXISTS keeps this safe to
// run on every startup.
func (db *DB) migrate() error {
	// COLLATE NOCASE on email makes both the UNIQUE constraint and every
	// equality lookup case-insensitive: a@b.com and A@B.com are the same
	// account. Emails are additionally lowercased before they reach the
	// store; the collation is the backstop.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id             TEXT PRIMARY KEY,
			name           TEXT NOT NULL,
			email          TEXT NOT NULL COLLATE NOCASE UNIQUE,
			password_hash  TEXT NOT NULL DEFAULT '',
			role           TEXT NOT NULL DEFAULT 'user',
			facebook_id    TEXT NOT NULL DEFAULT '',
			google_id      TEXT NOT NULL DEFAULT '',
			verification   TEXT NOT NULL DEFAULT '',
			verified       INTEGER NOT NULL DEFAULT 0,
			login_attempts INTEGER NOT NULL DEFAULT 0,
			block_expires  DATETIME NOT NULL,
			created_at     DATETIME NOT NULL,
			updated_at     DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_users_verification ON users(verification);
		CREATE INDEX IF NOT EXISTS idx_users_facebook_id ON users(facebook_id);
		CREATE INDEX IF NOT EXISTS idx_users_google_id ON users(google_id);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS refresh_tokens (
			token      TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			user_email TEXT NOT NULL COLLATE NOCASE,
			expires    DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_id ON refresh_tokens(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating refresh_tokens table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS password_reset_tokens (
			verification    TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL,
			user_email      TEXT NOT NULL COLLATE NOCASE,
			expires         DATETIME NOT NULL,
			ip_request      TEXT NOT NULL DEFAULT '',
			browser_request TEXT NOT NULL DEFAULT '',
			country_request TEXT NOT NULL DEFAULT '',
			created_at      DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_password_reset_tokens_user_id ON password_reset_tokens(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating password_reset_tokens table: %w", err)
	}

	return nil
}
