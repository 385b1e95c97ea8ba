package mariadb

import (
	"context"
	"embed"
	"fmt"

	"github.com/kozaktomas/face-gate/internal/database/migrate"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func (p *Pool) migrator() *migrate.Migrator {
	return migrate.New(p.db, migrationsFS, "migrations", migrate.MySQL)
}

// Migrate applies pending migrations. The tables match the schema already
// deployed for the attendance app, so existing databases migrate in place.
func (p *Pool) Migrate(ctx context.Context) error {
	applied, err := p.migrator().Up(ctx)
	for _, file := range applied {
		fmt.Printf("Applied migration: %s\n", file)
	}
	return err
}

// MigrationsApplied returns the list of applied migrations
func (p *Pool) MigrationsApplied(ctx context.Context) ([]string, error) {
	return p.migrator().Applied(ctx)
}
