// Package store persists cards, review history and the global parameter
// set for the fsrs engine.
//
// The store is a thin adapter: it reads a card, hands its memory state to
// the pure engine and writes the outcome back in one transaction per card
// update. It is the only place lifecycle states are converted to and from
// their text form. SQLite (modernc.org/sqlite, CGO-free) and PostgreSQL
// (lib/pq) are supported through database/sql.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"   // PostgreSQL driver
	_ "modernc.org/sqlite" // SQLite driver
)

var (
	// ErrNotFound is returned when a card does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrUnsupportedDriver is returned by Open for drivers other than
	// sqlite and postgres.
	ErrUnsupportedDriver = errors.New("store: unsupported driver")
)

// Dialect selects the SQL flavour of the underlying database.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// Options configures a Store. Zero values produce sensible defaults.
type Options struct {
	Logger *slog.Logger  // nil → slog.Default()
	NewID  func() string // nil → uuid.NewString, used for card and review IDs
}

// Store implements card persistence on top of database/sql.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
	newID   func() string
}

// Open connects to the database named by driver ("sqlite" or "postgres")
// and dsn, configures the connection pool and creates the schema.
func Open(ctx context.Context, driver, dsn string, opts Options) (*Store, error) {
	dialect := Dialect(driver)
	switch dialect {
	case SQLite, Postgres:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: failed to open database: %w", err)
	}

	if err := configure(ctx, db, dialect); err != nil {
		db.Close()
		return nil, err
	}

	s, err := New(ctx, db, dialect, opts)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// configure applies per-dialect connection settings.
func configure(ctx context.Context, db *sql.DB, dialect Dialect) error {
	switch dialect {
	case SQLite:
		// SQLite supports one writer; a single connection serialises the
		// read-modify-write of a review and keeps :memory: databases alive.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)

		pragmas := []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout = 5000",
			"PRAGMA foreign_keys=ON",
		}
		for _, p := range pragmas {
			if _, err := db.ExecContext(ctx, p); err != nil {
				return fmt.Errorf("store: %s: %w", p, err)
			}
		}
	case Postgres:
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("store: failed to ping database: %w", err)
		}
	}
	return nil
}

// New wraps an open database handle and creates the schema if needed.
// The caller keeps ownership of connection-pool settings.
func New(ctx context.Context, db *sql.DB, dialect Dialect, opts Options) (*Store, error) {
	if db == nil {
		return nil, errors.New("store: database connection is required")
	}

	s := &Store{
		db:      db,
		dialect: dialect,
		logger:  opts.Logger,
		newID:   opts.NewID,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}

	if _, err := db.ExecContext(ctx, schema(dialect)); err != nil {
		return nil, fmt.Errorf("store: failed to create schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect returns the SQL dialect of the store.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// rebind rewrites ? placeholders to $n for PostgreSQL. Queries in this
// package never contain a literal question mark.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// forUpdate returns the row-locking clause for reads inside a review
// transaction. SQLite relies on its single connection instead.
func (s *Store) forUpdate() string {
	if s.dialect == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

// daysOverdue returns an expression for the whole days between its single
// placeholder and a card's due date, truncated toward zero.
func (s *Store) daysOverdue() string {
	if s.dialect == Postgres {
		return `FLOOR(EXTRACT(EPOCH FROM (CAST(? AS TIMESTAMPTZ) - due)) / 86400)`
	}
	return `(CAST(strftime('%s', ?) AS INTEGER) - CAST(strftime('%s', due) AS INTEGER)) / 86400`
}

// dbTime normalises a timestamp before it is written. Whole UTC seconds
// keep SQLite's text encoding fixed-width, so due dates compare correctly.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}
