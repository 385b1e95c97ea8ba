package database

import "time"

// DefaultQueryTimeout bounds every store call when no timeout is configured.
const DefaultQueryTimeout = 5 * time.Second

// HNSW index parameters for face descriptors
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	HNSWEfSearch = 100

	// HNSWSearchMultiplier is the factor to request more candidates from HNSW
	// to make up for deactivated records filtered after the search.
	HNSWSearchMultiplier = 3
)
