package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-gate/internal/config"
	"github.com/kozaktomas/face-gate/internal/database"
	"github.com/lib/pq"
)

// Pool manages a PostgreSQL connection pool.
type Pool struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPool creates a new PostgreSQL connection pool.
func NewPool(cfg *config.DatabaseConfig) (*Pool, error) {
	if cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool.
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	// Verify connection.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", database.Classify(ctx, "ping", err, classifyPQ))
	}

	return NewPoolFromDB(db, cfg.QueryTimeout), nil
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

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// withTimeout bounds a single store call.
func (p *Pool) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.timeout)
}

// classifyPQ maps PostgreSQL SQLSTATE codes to store error kinds.
func classifyPQ(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return nil
	}
	switch {
	case pqErr.Code == "57014": // query_canceled, raised by statement_timeout
		return database.ErrTimeout
	case pqErr.Code.Class() == "08", // connection_exception
		pqErr.Code.Class() == "53", // insufficient_resources (too_many_connections)
		pqErr.Code == "57P01",      // admin_shutdown
		pqErr.Code == "57P03":      // cannot_connect_now
		return database.ErrUnavailable
	default:
		return database.ErrPersistence
	}
}

// Open connects, migrates and returns the PostgreSQL backend.
func Open(cfg *config.DatabaseConfig) (*database.Backend, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}

	pool, err := NewPool(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL pool: %w", err)
	}

	if err := pool.Migrate(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &database.Backend{
		Name:        config.DriverPostgres,
		Enrollments: NewEnrollmentRepository(pool),
		Locations:   NewLocationRepository(pool),
		Close:       pool.Close,
	}, nil
}
