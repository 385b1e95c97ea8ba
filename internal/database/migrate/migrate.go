// Package migrate applies embedded, ordered SQL files to a database/sql handle
// and records them in a schema_migrations table.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Dialect carries the SQL differences between engines.
type Dialect struct {
	// CreateTable creates schema_migrations if missing.
	CreateTable string
	// Insert records one applied version; it takes a single argument.
	Insert string
}

var (
	Postgres = Dialect{
		CreateTable: `CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		Insert: "INSERT INTO schema_migrations (version) VALUES ($1)",
	}
	MySQL = Dialect{
		CreateTable: `CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		Insert: "INSERT INTO schema_migrations (version) VALUES (?)",
	}
	SQLite = Dialect{
		CreateTable: `CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		Insert: "INSERT INTO schema_migrations (version) VALUES (?)",
	}
)

// Migrator applies the *.sql files found in dir of fsys in lexical order.
type Migrator struct {
	db      *sql.DB
	fsys    fs.FS
	dir     string
	dialect Dialect
}

func New(db *sql.DB, fsys fs.FS, dir string, dialect Dialect) *Migrator {
	return &Migrator{db: db, fsys: fsys, dir: dir, dialect: dialect}
}

// Applied returns the recorded versions in order.
func (m *Migrator) Applied(ctx context.Context) ([]string, error) {
	if _, err := m.db.ExecContext(ctx, m.dialect.CreateTable); err != nil {
		return nil, fmt.Errorf("create migrations table: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applied migrations: %w", err)
	}
	return versions, nil
}

// Pending returns the sorted file names not yet applied.
func (m *Migrator) Pending(ctx context.Context) ([]string, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	entries, err := fs.ReadDir(m.fsys, m.dir)
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") && !done[e.Name()] {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// Up applies every pending migration, each in its own transaction, and
// returns the names applied by this call.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	files, err := m.Pending(ctx)
	if err != nil {
		return nil, err
	}

	var applied []string
	for _, file := range files {
		content, err := fs.ReadFile(m.fsys, path.Join(m.dir, file))
		if err != nil {
			return applied, fmt.Errorf("read migration %s: %w", file, err)
		}

		if err := m.apply(ctx, file, string(content)); err != nil {
			return applied, err
		}
		applied = append(applied, file)
	}
	return applied, nil
}

func (m *Migrator) apply(ctx context.Context, file, content string) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction for %s: %w", file, err)
	}

	for _, stmt := range SplitStatements(content) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %s: %w", file, err)
		}
	}

	if _, err := tx.ExecContext(ctx, m.dialect.Insert, file); err != nil {
		tx.Rollback()
		return fmt.Errorf("record migration %s: %w", file, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", file, err)
	}
	return nil
}

// SplitStatements splits a migration file on semicolons that end a line.
// The MySQL driver rejects multi-statement Exec calls by default.
func SplitStatements(content string) []string {
	var stmts []string
	var current strings.Builder
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
		if strings.HasSuffix(trimmed, ";") {
			stmts = append(stmts, strings.TrimSuffix(strings.TrimSpace(current.String()), ";"))
			current.Reset()
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		stmts = append(stmts, rest)
	}
	return stmts
}
