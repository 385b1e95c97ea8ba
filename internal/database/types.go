package database

import (
	"time"

	"github.com/kozaktomas/face-gate/internal/facematch"
)

// EnrollmentRecord is one stored face embedding for a subject.
// A subject may own any number of records.
type EnrollmentRecord struct {
	ID            int64
	SubjectID     string
	EmbeddingJSON []byte // JSON array exactly as persisted; decode with Embedding
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Embedding decodes the stored embedding and validates it against dim.
// Rows written outside the engine may be null, truncated or degenerate, so
// callers must treat an error as "skip this record".
func (r *EnrollmentRecord) Embedding(dim int) (facematch.Embedding, error) {
	return facematch.ParseEmbedding(r.EmbeddingJSON, dim)
}

// ScoredRecord pairs a record with its cosine distance to a query.
type ScoredRecord struct {
	Record   EnrollmentRecord
	Distance float64
}
