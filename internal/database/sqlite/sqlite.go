// Package sqlite is the embedded single-node backend, built on the pure-Go
// modernc.org/sqlite driver. It shares the MariaDB table layout.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/face-gate/internal/config"
	"github.com/kozaktomas/face-gate/internal/database"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Pool wraps a SQLite handle.
type Pool struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPool opens (creating if needed) the database file named by cfg.URL.
func NewPool(cfg *config.DatabaseConfig) (*Pool, error) {
	if cfg.URL == "" {
		return nil, errors.New("SQLite path is required")
	}

	db, err := sql.Open("sqlite", withPragmas(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// Every connection to :memory: gets its own empty database.
	if isMemory(cfg.URL) {
		db.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite: %w", database.Classify(ctx, "ping", err, classifySQLite))
	}

	return NewPoolFromDB(db, cfg.QueryTimeout), nil
}

func isMemory(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// withPragmas enables WAL and a busy timeout unless the DSN sets its own.
func withPragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	pragmas := "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if !isMemory(dsn) {
		pragmas += "&_pragma=journal_mode(WAL)"
	}
	return dsn + sep + pragmas
}

// NewPoolFromDB wraps an already opened database handle.
func NewPoolFromDB(db *sql.DB, timeout time.Duration) *Pool {
	if timeout <= 0 {
		timeout = database.DefaultQueryTimeout
	}
	return &Pool{db: db, timeout: timeout}
}

// DB returns the underlying sql.DB for direct access.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Close closes the database.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

func (p *Pool) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.timeout)
}

// classifySQLite maps result codes: a database still locked after
// busy_timeout is a timeout, a file that cannot be opened is unavailable.
func classifySQLite(err error) error {
	var sqErr *msqlite.Error
	if !errors.As(err, &sqErr) {
		return nil
	}
	switch sqErr.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_INTERRUPT:
		return database.ErrTimeout
	case sqlite3.SQLITE_CANTOPEN, sqlite3.SQLITE_IOERR, sqlite3.SQLITE_NOTADB:
		return database.ErrUnavailable
	default:
		return database.ErrPersistence
	}
}

// Open opens, migrates and returns the SQLite backend.
func Open(cfg *config.DatabaseConfig) (*database.Backend, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("SQLite path is required")
	}

	pool, err := NewPool(cfg)
	if err != nil {
		return nil, err
	}

	if err := pool.Migrate(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &database.Backend{
		Name:        config.DriverSQLite,
		Enrollments: NewEnrollmentRepository(pool),
		Locations:   NewLocationRepository(pool),
		Close:       pool.Close,
	}, nil
}
