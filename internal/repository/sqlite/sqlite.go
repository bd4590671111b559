// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// SQLite is an embedded database: it lives inside the binary as a single file.
// With no DATABASE_URL configured, the server runs entirely self-contained
// against flux.db in the working directory. Tests use ":memory:".
//
// modernc.org/sqlite is a pure Go translation of the SQLite C code, so the
// binary builds without CGo.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"

	"github.com/sakif/flux-server/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// querier is the subset of *sql.DB and *sql.Tx that UserDB needs.
// Binding UserDB to a querier lets the same query code run either directly
// on the pool or inside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at dbPath and creates the schema.
//
// dbPath examples:
//   - "flux.db"   → file-based database (persistent)
//   - ":memory:"  → in-memory database (tests, lost on close)
//
// SINGLE CONNECTION:
// SQLite allows one writer at a time anyway. Capping the pool at one
// connection serializes every statement, which makes WithinTx atomic
// against concurrent requests and keeps a ":memory:" database from being
// split across several private connections.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in progress.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

// Users returns a repository that runs its queries directly on the pool.
func (db *DB) Users() repository.UserRepository {
	return &UserDB{q: db.conn}
}

// WithinTx runs fn inside a single transaction.
//
// fn must only use the repository it is given: with one pooled connection,
// touching db.conn from inside fn would wait forever for the connection the
// transaction is holding.
func (db *DB) WithinTx(ctx context.Context, fn func(users repository.UserRepository) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}

	if err := fn(&UserDB{q: tx}); err != nil {
		// Rollback errors are secondary to the error that caused them.
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}

// migrate creates the schema.
//
// CREATE TABLE IF NOT EXISTS is idempotent, so this is safe on every start.
// There is no versioned migration history: the schema has a single shape.
//
// AUTOINCREMENT guarantees ids are never reused, even after the highest row
// is gone. email is UNIQUE in the schema; username uniqueness is enforced by
// the service at registration time only, so it gets a plain index.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			username    TEXT NOT NULL,
			email       TEXT NOT NULL UNIQUE,
			total_xp    INTEGER DEFAULT 0,
			today_xp    INTEGER DEFAULT 0,
			last_active DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);
		CREATE INDEX IF NOT EXISTS idx_users_today_xp ON users(today_xp);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}
	return nil
}
