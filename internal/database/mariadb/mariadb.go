package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/kozaktomas/face-gate/internal/config"
	"github.com/kozaktomas/face-gate/internal/database"
)

// Pool manages a MariaDB connection pool.
type Pool struct {
	db      *sql.DB
	timeout time.Duration
}

// NewPool creates a new MariaDB connection pool.
func NewPool(cfg *config.DatabaseConfig) (*Pool, error) {
	if cfg.URL == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	dsn, err := normalizeDSN(cfg.URL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", database.Classify(ctx, "ping", err, classifyMySQL))
	}

	return NewPoolFromDB(db, cfg.QueryTimeout), nil
}

// normalizeDSN forces parseTime so DATETIME columns scan into time.Time.
func normalizeDSN(dsn string) (string, error) {
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid MariaDB DSN: %w", err)
	}
	parsed.ParseTime = true
	if parsed.Timeout == 0 {
		parsed.Timeout = 10 * time.Second
	}
	return parsed.FormatDSN(), nil
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

func (p *Pool) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.timeout)
}

// classifyMySQL maps server error numbers and driver connection errors.
func classifyMySQL(err error) error {
	if errors.Is(err, mysql.ErrInvalidConn) {
		return database.ErrUnavailable
	}
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return nil
	}
	switch myErr.Number {
	case 1205, // ER_LOCK_WAIT_TIMEOUT
		1317, // ER_QUERY_INTERRUPTED
		3024: // ER_QUERY_TIMEOUT (max_execution_time)
		return database.ErrTimeout
	case 1040, // ER_CON_COUNT_ERROR
		1053, // ER_SERVER_SHUTDOWN
		1129: // ER_HOST_IS_BLOCKED
		return database.ErrUnavailable
	default:
		return database.ErrPersistence
	}
}

// Open connects, migrates and returns the MariaDB backend.
func Open(cfg *config.DatabaseConfig) (*database.Backend, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	pool, err := NewPool(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create MariaDB pool: %w", err)
	}

	if err := pool.Migrate(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &database.Backend{
		Name:        config.DriverMySQL,
		Enrollments: NewEnrollmentRepository(pool),
		Locations:   NewLocationRepository(pool),
		Close:       pool.Close,
	}, nil
}
