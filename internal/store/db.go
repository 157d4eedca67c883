// Package store persists user-authored events, todos and calendar
// settings through sqlx. SQLite (modernc) and Postgres (pgx) are
// supported; queries are written with ? placeholders and rebound.
package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver for database/sql ("pgx")
	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver for database/sql ("sqlite")
)

//go:embed migrations/*.sql
var migrations embed.FS

// Querier is the query surface the repositories need. Both *sqlx.DB and
// *sqlx.Tx satisfy it.
type Querier interface {
	sqlx.ExtContext
}

// Open connects to the database and verifies the connection.
// driver is "sqlite" or "postgres".
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case "sqlite":
		return openSQLite(ctx, dsn)
	case "postgres":
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("opening database: %w", err)
		}
		db.SetMaxOpenConns(10)
		db.SetConnMaxIdleTime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("pinging database: %w", err)
		}
		return sqlx.NewDb(db, "pgx"), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func openSQLite(ctx context.Context, path string) (*sqlx.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one writer; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	// sqlx picks the bindvar style from the driver name.
	return sqlx.NewDb(db, "sqlite3"), nil
}

// Migrate runs all pending schema migrations.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	dialect := "sqlite3"
	if db.DriverName() == "pgx" {
		dialect = "postgres"
	}
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("setting dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db.DB, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Store bundles the repositories over one connection.
type Store struct {
	DB       *sqlx.DB
	Events   *Events
	Todos    *Todos
	Settings *Settings
}

// New wires the repositories. calendars is the custom-event allow-list.
func New(db *sqlx.DB, calendars Calendars) *Store {
	return &Store{
		DB:       db,
		Events:   NewEvents(db, calendars),
		Todos:    NewTodos(db),
		Settings: NewSettings(db),
	}
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.DB.Close()
}

// clock is overridden in tests.
var clock = func() time.Time { return time.Now().UTC() }

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseStamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
