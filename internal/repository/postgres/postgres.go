// Package postgres implements the repository interfaces on PostgreSQL using pgx.
//
// It is selected when DATABASE_URL points at a postgresql:// server. The
// schema is a single embedded migration applied with golang-migrate on
// startup; there is no later migration history.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/sakif/flux-server/internal/repository"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var _ repository.Store = (*DB)(nil)

// Queryable is satisfied by both *pgxpool.Pool and pgx.Tx, so repository
// code runs unchanged inside or outside a transaction.
type Queryable interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DB wraps a pgx connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL, applies the schema migration and returns a
// ready store.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parsing database URL: %w", err)
	}

	// last_active is stored and compared in UTC.
	config.ConnConfig.RuntimeParams["timezone"] = "UTC"

	if err := Migrate(config.ConnConfig); err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("postgres: creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Migrate applies all pending embedded migrations.
func Migrate(connConfig *pgx.ConnConfig) error {
	// golang-migrate drives a database/sql handle; pgx's stdlib adapter
	// provides one without pulling in a second driver.
	sqlDB := stdlib.OpenDB(*connConfig)

	driver, err := migratepg.WithInstance(sqlDB, &migratepg.Config{})
	if err != nil {
		sqlDB.Close()
		return fmt.Errorf("postgres: creating migrate driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		driver.Close()
		return fmt.Errorf("postgres: opening migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		driver.Close()
		return fmt.Errorf("postgres: creating migrate instance: %w", err)
	}
	// Closes the source and the driver, which in turn closes sqlDB.
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("postgres: running migrations: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

// Ping verifies the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

// Users returns a repository that runs its queries directly on the pool.
func (db *DB) Users() repository.UserRepository {
	return &UserRepository{q: db.pool}
}

// WithinTx runs fn inside a transaction that first takes a SHARE ROW
// EXCLUSIVE lock on users. That lock conflicts with itself, so read-write
// transactions run one at a time while plain reads continue.
func (db *DB) WithinTx(ctx context.Context, fn func(users repository.UserRepository) error) error {
	return pgx.BeginFunc(ctx, db.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `LOCK TABLE users IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return fmt.Errorf("postgres: locking users: %w", err)
		}
		return fn(&UserRepository{q: tx})
	})
}
