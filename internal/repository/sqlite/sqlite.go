// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY modernc.org/sqlite?
// It is a pure Go translation of SQLite, so the binary needs no C toolchain
// and ":memory:" databases make the store tests fast and isolated.
//
// TIMESTAMPS:
// Every timestamp is bound as a UTC string in one fixed-width layout (see
// formatTime). Fixed width means string order equals time order, which the
// expiry queries rely on (created_at > ? compares strings).
//
// CONNECTIONS:
// The DSN carries the per-connection pragmas (foreign keys, busy timeout)
// so every pooled connection gets them, not just the first one.
// An in-memory database exists per connection, so ":memory:" is pinned
// to a single connection.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a sql.DB connection pool and provides repository methods.
// One DB value implements every repository interface.
type DB struct {
	conn *sql.DB
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// New opens (or creates) the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/foodbridge.db"  → file-based database (persistent)
//   - ":memory:"            → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows readers while a write is in progress. It is a property of
	// the database file, so one Exec is enough.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

func dsn(dbPath string) string {
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	return dbPath + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by the health check.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates the schema. Every statement is idempotent
// (IF NOT EXISTS), so it runs on every start.
func (db *DB) migrate(ctx context.Context) error {
	steps := []struct {
		name string
		sql  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id            TEXT PRIMARY KEY,
				name          TEXT NOT NULL,
				email         TEXT NOT NULL UNIQUE,
				password_hash TEXT NOT NULL,
				address       TEXT NOT NULL,
				description   TEXT NOT NULL,
				role          TEXT NOT NULL CHECK (role IN ('restaurant', 'ngo')),
				rating        REAL NOT NULL DEFAULT 0,
				rating_count  INTEGER NOT NULL DEFAULT 0,
				created_at    TEXT NOT NULL,
				updated_at    TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_users_role ON users(role, created_at);
		`},
		{"foods", `
			CREATE TABLE IF NOT EXISTS foods (
				id                  TEXT PRIMARY KEY,
				title               TEXT NOT NULL,
				description         TEXT NOT NULL,
				photo               TEXT NOT NULL,
				donor_id            TEXT NOT NULL REFERENCES users(id),
				receiver_id         TEXT REFERENCES users(id),
				status              TEXT NOT NULL CHECK (status IN ('available', 'claimed', 'completed', 'expired')),
				guidelines_accepted INTEGER NOT NULL DEFAULT 0,
				ngo_details         TEXT,
				created_at          TEXT NOT NULL,
				updated_at          TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_foods_status_created ON foods(status, created_at);
			CREATE INDEX IF NOT EXISTS idx_foods_donor ON foods(donor_id, created_at);
			CREATE INDEX IF NOT EXISTS idx_foods_receiver ON foods(receiver_id, created_at);
		`},
		{"ratings", `
			CREATE TABLE IF NOT EXISTS ratings (
				id         TEXT PRIMARY KEY,
				food_id    TEXT NOT NULL REFERENCES foods(id),
				rater_id   TEXT NOT NULL REFERENCES users(id),
				rated_id   TEXT NOT NULL REFERENCES users(id),
				rating     INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
				comment    TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				UNIQUE (food_id, rater_id)
			);
			CREATE INDEX IF NOT EXISTS idx_ratings_rated ON ratings(rated_id, created_at);
		`},
		{"chats", `
			CREATE TABLE IF NOT EXISTS chats (
				id           TEXT PRIMARY KEY,
				sender_id    TEXT NOT NULL REFERENCES users(id),
				recipient_id TEXT NOT NULL REFERENCES users(id),
				content      TEXT NOT NULL,
				food_item_id TEXT REFERENCES foods(id),
				timestamp    TEXT NOT NULL,
				read         INTEGER NOT NULL DEFAULT 0
			);
			CREATE INDEX IF NOT EXISTS idx_chats_sender ON chats(sender_id, timestamp);
			CREATE INDEX IF NOT EXISTS idx_chats_recipient ON chats(recipient_id, timestamp);
		`},
	}

	for _, step := range steps {
		if _, err := db.conn.ExecContext(ctx, step.sql); err != nil {
			return fmt.Errorf("creating %s table: %w", step.name, err)
		}
	}
	return nil
}

const timeLayout = "2006-01-02 15:04:05.000000000Z07:00"

// formatTime renders t in the fixed-width storage layout.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// timeDest adapts a *time.Time to sql.Scanner for TEXT timestamp columns.
type timeDest struct {
	t *time.Time
}

func scanTime(t *time.Time) timeDest { return timeDest{t: t} }

func (d timeDest) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case time.Time:
		*d.t = v.UTC()
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("sqlite: cannot scan %T into time", src)
	}
	parsed, err := time.Parse(timeLayout, s)
	if err != nil {
		return fmt.Errorf("sqlite: parsing time %q: %w", s, err)
	}
	*d.t = parsed
	return nil
}

// nullIfEmpty stores "" as NULL so optional foreign keys stay valid.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// isUniqueViolation reports whether err came from a UNIQUE or PRIMARY KEY
// constraint.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}
