package sqlite

import (
	"context"
	"embed"

	"github.com/kozaktomas/face-gate/internal/database/migrate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func (p *Pool) migrator() *migrate.Migrator {
	return migrate.New(p.db, migrationsFS, "migrations", migrate.SQLite)
}

// Migrate applies pending migrations.
func (p *Pool) Migrate(ctx context.Context) error {
	_, err := p.migrator().Up(ctx)
	return err
}

// MigrationsApplied returns the list of applied migrations
func (p *Pool) MigrationsApplied(ctx context.Context) ([]string, error) {
	return p.migrator().Applied(ctx)
}
