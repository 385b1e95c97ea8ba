package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-gate/internal/config"
	"github.com/kozaktomas/face-gate/internal/database"
	"github.com/kozaktomas/face-gate/internal/database/mariadb"
	"github.com/kozaktomas/face-gate/internal/database/postgres"
	"github.com/kozaktomas/face-gate/internal/database/sqlite"
	"github.com/kozaktomas/face-gate/internal/logging"
	"github.com/kozaktomas/face-gate/internal/verification"
)

func init() {
	database.RegisterBackend(config.DriverPostgres, postgres.Open)
	database.RegisterBackend(config.DriverMySQL, mariadb.Open)
	database.RegisterBackend(config.DriverSQLite, sqlite.Open)
}

// openBackend connects to the configured store. Opening a backend also
// applies pending migrations.
func openBackend(ctx context.Context, cfg *config.Config, log logging.Logger) (*database.Backend, error) {
	backend, err := database.OpenBackend(&cfg.Database)
	if err != nil {
		return nil, err
	}

	log.Info(ctx, "storage backend ready", "backend", backend.Name)
	return backend, nil
}

// engineFor builds a verification engine over store using the matching settings.
func engineFor(cfg *config.Config, store database.EnrollmentWriter, locations database.LocationReader,
	index *database.EnrollmentIndex, nearest database.NearestSearcher, log logging.Logger) (*verification.Engine, error) {
	opts := verification.Options{
		EmbeddingDim:         cfg.Matching.EmbeddingDim,
		VerifyThreshold:      cfg.Matching.VerifyThreshold,
		CompareThreshold:     cfg.Matching.CompareThreshold,
		Policy:               verification.Policy(cfg.Matching.Policy),
		GeofenceEnabled:      cfg.Geofence.Enabled,
		GeofenceRadiusMeters: cfg.Geofence.RadiusMeters,
		Index:                index,
		Nearest:              nearest,
		Logger:               log,
	}
	if cfg.Geofence.Enabled {
		opts.Locations = locations
	}

	engine, err := verification.NewEngine(store, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create verification engine: %w", err)
	}
	return engine, nil
}
