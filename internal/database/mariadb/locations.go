package mariadb

import (
	"context"
	"database/sql"

	"github.com/kozaktomas/face-gate/internal/database"
	"github.com/kozaktomas/face-gate/internal/facematch"
)

// LocationRepository reads geofence anchors from tbl_location_master.
type LocationRepository struct {
	pool *Pool
}

func NewLocationRepository(pool *Pool) *LocationRepository {
	return &LocationRepository{pool: pool}
}

// ListAnchors returns all anchors; NULL coordinates come back as nil pointers
func (r *LocationRepository) ListAnchors(ctx context.Context) ([]facematch.Anchor, error) {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	rows, err := r.pool.db.QueryContext(ctx,
		"SELECT location_id, location_name, location_lat, location_long FROM tbl_location_master ORDER BY location_id")
	if err != nil {
		return nil, database.Classify(ctx, "query location anchors", err, classifyMySQL)
	}
	defer rows.Close()

	var anchors []facematch.Anchor
	for rows.Next() {
		var a facematch.Anchor
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&a.ID, &a.Name, &lat, &lon); err != nil {
			return nil, database.Classify(ctx, "scan location anchor", err, classifyMySQL)
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
		return nil, database.Classify(ctx, "iterate location anchors", err, classifyMySQL)
	}
	return anchors, nil
}

// AddAnchor inserts a reference location and returns its id.
func (r *LocationRepository) AddAnchor(ctx context.Context, name string, point facematch.LocationPoint) (int64, error) {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	result, err := r.pool.db.ExecContext(ctx,
		"INSERT INTO tbl_location_master (location_name, location_lat, location_long) VALUES (?, ?, ?)",
		name, point.Latitude, point.Longitude)
	if err != nil {
		return 0, database.Classify(ctx, "insert location anchor", err, classifyMySQL)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, database.Classify(ctx, "insert location anchor", err, classifyMySQL)
	}
	return id, nil
}
