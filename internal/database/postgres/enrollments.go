package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-gate/internal/database"
	"github.com/kozaktomas/face-gate/internal/facematch"
	"github.com/pgvector/pgvector-go"
)

const enrollmentColumns = `id, subject_id, embedding_json, is_active, created_at, updated_at`

// EnrollmentRepository provides PostgreSQL-backed enrollment storage.
// Embeddings are kept both as the JSON text used for verification and as a
// pgvector column used by FindNearest.
type EnrollmentRepository struct {
	pool *Pool
}

// NewEnrollmentRepository creates a new PostgreSQL enrollment repository
func NewEnrollmentRepository(pool *Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEnrollment(row rowScanner, extra ...any) (database.EnrollmentRecord, error) {
	var rec database.EnrollmentRecord
	var raw sql.NullString

	dest := append([]any{&rec.ID, &rec.SubjectID, &raw, &rec.Active, &rec.CreatedAt, &rec.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return rec, err
	}
	if raw.Valid {
		rec.EmbeddingJSON = []byte(raw.String)
	}
	return rec, nil
}

// Enroll inserts a new active record
func (r *EnrollmentRepository) Enroll(ctx context.Context, subjectID string, embedding facematch.Embedding) (*database.EnrollmentRecord, error) {
	data, err := facematch.MarshalEmbedding(embedding)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", database.ErrPersistence, err)
	}

	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO face_enrollments (subject_id, embedding_json, embedding)
		VALUES ($1, $2, $3)
		RETURNING ` + enrollmentColumns

	rec, err := scanEnrollment(r.pool.db.QueryRowContext(ctx, query,
		subjectID, string(data), pgvector.NewVector(embedding.Float32())))
	if err != nil {
		return nil, database.Classify(ctx, "insert enrollment", err, classifyPQ)
	}
	return &rec, nil
}

// ListActive returns active records ordered by id
func (r *EnrollmentRepository) ListActive(ctx context.Context) ([]database.EnrollmentRecord, error) {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + enrollmentColumns + ` FROM face_enrollments WHERE is_active ORDER BY id`

	rows, err := r.pool.db.QueryContext(ctx, query)
	if err != nil {
		return nil, database.Classify(ctx, "query enrollments", err, classifyPQ)
	}
	defer rows.Close()

	var records []database.EnrollmentRecord
	for rows.Next() {
		rec, err := scanEnrollment(rows)
		if err != nil {
			return nil, database.Classify(ctx, "scan enrollment", err, classifyPQ)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Classify(ctx, "iterate enrollments", err, classifyPQ)
	}
	return records, nil
}

// Get retrieves an active record by id
func (r *EnrollmentRepository) Get(ctx context.Context, id int64) (*database.EnrollmentRecord, error) {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + enrollmentColumns + ` FROM face_enrollments WHERE id = $1 AND is_active`

	rec, err := scanEnrollment(r.pool.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, database.Classify(ctx, "query enrollment", err, classifyPQ)
	}
	return &rec, nil
}

// CountBySubject returns the number of active records for a subject
func (r *EnrollmentRepository) CountBySubject(ctx context.Context, subjectID string) (int, error) {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	var count int
	err := r.pool.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM face_enrollments WHERE subject_id = $1 AND is_active", subjectID).Scan(&count)
	if err != nil {
		return 0, database.Classify(ctx, "count enrollments", err, classifyPQ)
	}
	return count, nil
}

// Deactivate hides a record from verification
func (r *EnrollmentRepository) Deactivate(ctx context.Context, id int64) error {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	result, err := r.pool.db.ExecContext(ctx,
		"UPDATE face_enrollments SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND is_active", id)
	if err != nil {
		return database.Classify(ctx, "deactivate enrollment", err, classifyPQ)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return database.Classify(ctx, "deactivate enrollment", err, classifyPQ)
	}
	if n == 0 {
		return database.ErrNotFound
	}
	return nil
}

// FindNearest ranks active records by pgvector cosine distance. Rows whose
// vector column is missing or of another dimension are not considered.
func (r *EnrollmentRepository) FindNearest(ctx context.Context, embedding facematch.Embedding, limit int) ([]database.ScoredRecord, error) {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT ` + enrollmentColumns + `, embedding <=> $1 AS distance
		FROM face_enrollments
		WHERE is_active AND embedding IS NOT NULL AND vector_dims(embedding) = $2
		ORDER BY distance, id
		LIMIT $3
	`

	rows, err := r.pool.db.QueryContext(ctx, query, pgvector.NewVector(embedding.Float32()), len(embedding), limit)
	if err != nil {
		return nil, database.Classify(ctx, "query nearest enrollments", err, classifyPQ)
	}
	defer rows.Close()

	var results []database.ScoredRecord
	for rows.Next() {
		var distance float64
		rec, err := scanEnrollment(rows, &distance)
		if err != nil {
			return nil, database.Classify(ctx, "scan nearest enrollment", err, classifyPQ)
		}
		results = append(results, database.ScoredRecord{Record: rec, Distance: distance})
	}
	if err := rows.Err(); err != nil {
		return nil, database.Classify(ctx, "iterate nearest enrollments", err, classifyPQ)
	}
	return results, nil
}
