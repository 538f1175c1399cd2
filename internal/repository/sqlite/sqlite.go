// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means a C compiler at build time and
// painful cross-compilation. modernc.org/sqlite is a pure Go translation of
// the SQLite sources — works everywhere Go works.
//
// The listing table flattens the nested wire shape: location becomes four
// columns (address, zip, lat, lng) and the sparse dietary map is stored as
// a JSON blob. lat/lng are nullable because a row written before geocoding
// existed (or imported from elsewhere) may legitimately have no coordinates.
package sqlite

import (
	"database/sql"
	"fmt"

	// Blank import registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool. The Listings and Users accessors hand
// out the repository implementations; the server owns the DB and closes it
// on shutdown.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
// Use ":memory:" in tests for a throwaway database.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// SQLite allows a single writer at a time; more connections in the pool
	// just turn into SQLITE_BUSY errors under write load. One connection
	// also makes ":memory:" databases behave — each new pool connection
	// would otherwise get its own empty in-memory database.
	conn.SetMaxOpenConns(1)

	// Ping forces a real connection so a bad path fails here, not on the
	// first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets reads proceed while a write is in flight — SQLite's default
	// journal mode locks the whole file per write.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Referential integrity between listings.user_id and users.id.
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

// Close closes the connection pool. Always defer this next to New().
func (db *DB) Close() error {
	return db.conn.Close()
}

// Listings returns the listing repository backed by this database.
func (db *DB) Listings() *ListingStore {
	return &ListingStore{db: db}
}

// Users returns the user repository backed by this database.
func (db *DB) Users() *UserStore {
	return &UserStore{db: db}
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps it
// idempotent — safe to run on every startup.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			email         TEXT NOT NULL DEFAULT '',
			role          TEXT NOT NULL DEFAULT 'User',
			password_hash TEXT NOT NULL,
			address       TEXT NOT NULL DEFAULT '',
			zip           TEXT NOT NULL DEFAULT '',
			lat           REAL,
			lng           REAL,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS listings (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL,
			user_id     TEXT NOT NULL REFERENCES users(id),
			address     TEXT NOT NULL DEFAULT '',
			zip         TEXT NOT NULL DEFAULT '',
			lat         REAL,
			lng         REAL,
			category    TEXT NOT NULL DEFAULT '',
			dietary     TEXT NOT NULL DEFAULT '{}',
			posted_date DATETIME NOT NULL,
			expiration  DATETIME NOT NULL,
			archived    INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_listings_user_id ON listings(user_id);
		CREATE INDEX IF NOT EXISTS idx_listings_zip ON listings(zip);
	`)
	if err != nil {
		return fmt.Errorf("creating listings table: %w", err)
	}

	return nil
}
