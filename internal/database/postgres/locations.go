package postgres

import (
	"context"
	"database/sql"

	"github.com/kozaktomas/face-gate/internal/database"
	"github.com/kozaktomas/face-gate/internal/facematch"
)

// LocationRepository reads geofence anchors from location_anchors.
type LocationRepository struct {
	pool *Pool
}

// NewLocationRepository creates a new PostgreSQL location repository
func NewLocationRepository(pool *Pool) *LocationRepository {
	return &LocationRepository{pool: pool}
}

// ListAnchors returns all anchors; NULL coordinates come back as nil pointers
func (r *LocationRepository) ListAnchors(ctx context.Context) ([]facematch.Anchor, error) {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	rows, err := r.pool.db.QueryContext(ctx, "SELECT id, name, latitude, longitude FROM location_anchors ORDER BY id")
	if err != nil {
		return nil, database.Classify(ctx, "query location anchors", err, classifyPQ)
	}
	defer rows.Close()

	var anchors []facematch.Anchor
	for rows.Next() {
		var a facematch.Anchor
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&a.ID, &a.Name, &lat, &lon); err != nil {
			return nil, database.Classify(ctx, "scan location anchor", err, classifyPQ)
		}
		if lat.Valid {
			a.Latitude = &lat.Float64
		}
		if lon.Valid {
			a.Longitude = &lon.Float64
		}
		anchors = append(anchors, a)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Classify(ctx, "iterate location anchors", err, classifyPQ)
	}
	return anchors, nil
}

// AddAnchor inserts a reference location and returns its id.
func (r *LocationRepository) AddAnchor(ctx context.Context, name string, point facematch.LocationPoint) (int64, error) {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	var id int64
	err := r.pool.db.QueryRowContext(ctx,
		"INSERT INTO location_anchors (name, latitude, longitude) VALUES ($1, $2, $3) RETURNING id",
		name, point.Latitude, point.Longitude).Scan(&id)
	if err != nil {
		return 0, database.Classify(ctx, "insert location anchor", err, classifyPQ)
	}
	return id, nil
}
