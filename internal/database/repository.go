package database

import (
	"context"

	"github.com/kozaktomas/face-gate/internal/facematch"
)

// EnrollmentReader provides read-only access to enrolled face embeddings
type EnrollmentReader interface {
	// ListActive returns all active records in stable insertion order (ascending ID)
	ListActive(ctx context.Context) ([]EnrollmentRecord, error)
	// Get retrieves an active record by ID, returns ErrNotFound if missing or inactive
	Get(ctx context.Context, id int64) (*EnrollmentRecord, error)
	// CountBySubject returns the number of active records owned by a subject
	CountBySubject(ctx context.Context, subjectID string) (int, error)
}

// EnrollmentWriter provides write access to enrolled face embeddings
type EnrollmentWriter interface {
	EnrollmentReader

	// Enroll inserts a new active record. No uniqueness check is made:
	// enrolling the same subject twice creates two records.
	Enroll(ctx context.Context, subjectID string, embedding facematch.Embedding) (*EnrollmentRecord, error)

	// Deactivate hides a record from verification. Returns ErrNotFound for unknown IDs.
	Deactivate(ctx context.Context, id int64) error
}

// NearestSearcher is implemented by stores that can rank records by cosine
// distance natively (pgvector).
type NearestSearcher interface {
	// FindNearest returns up to limit active records ordered by ascending distance
	FindNearest(ctx context.Context, embedding facematch.Embedding, limit int) ([]ScoredRecord, error)
}

// LocationReader provides the authorized reference locations for the geofence
type LocationReader interface {
	// ListAnchors returns every configured anchor, including incomplete ones
	ListAnchors(ctx context.Context) ([]facematch.Anchor, error)
}

// LocationWriter adds reference locations (administrative use only)
type LocationWriter interface {
	LocationReader

	// AddAnchor inserts a reference location and returns its ID
	AddAnchor(ctx context.Context, name string, point facematch.LocationPoint) (int64, error)
}
