package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-gate/internal/database"
	"github.com/kozaktomas/face-gate/internal/facematch"
)

const enrollmentColumns = `id, user_id, embedding_json, is_active, created_on, update_on`

// EnrollmentRepository stores enrollments in tbl_face_embeddings.
type EnrollmentRepository struct {
	pool *Pool
}

// NewEnrollmentRepository creates a new MariaDB enrollment repository
func NewEnrollmentRepository(pool *Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEnrollment(row rowScanner) (database.EnrollmentRecord, error) {
	var rec database.EnrollmentRecord
	var raw sql.NullString
	if err := row.Scan(&rec.ID, &rec.SubjectID, &raw, &rec.Active, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return rec, err
	}
	if raw.Valid {
		rec.EmbeddingJSON = []byte(raw.String)
	}
	return rec, nil
}

// Enroll inserts a new active record and reads it back
func (r *EnrollmentRepository) Enroll(ctx context.Context, subjectID string, embedding facematch.Embedding) (*database.EnrollmentRecord, error) {
	data, err := facematch.MarshalEmbedding(embedding)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", database.ErrPersistence, err)
	}

	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	result, err := r.pool.db.ExecContext(ctx, `
		INSERT INTO tbl_face_embeddings (user_id, embedding_json, created_by, updated_by, is_active)
		VALUES (?, ?, 0, 0, 1)`, subjectID, string(data))
	if err != nil {
		return nil, database.Classify(ctx, "insert enrollment", err, classifyMySQL)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, database.Classify(ctx, "insert enrollment", err, classifyMySQL)
	}

	rec, err := scanEnrollment(r.pool.db.QueryRowContext(ctx,
		`SELECT `+enrollmentColumns+` FROM tbl_face_embeddings WHERE id = ?`, id))
	if err != nil {
		return nil, database.Classify(ctx, "read back enrollment", err, classifyMySQL)
	}
	return &rec, nil
}

// ListActive returns active records ordered by id
func (r *EnrollmentRepository) ListActive(ctx context.Context) ([]database.EnrollmentRecord, error) {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	rows, err := r.pool.db.QueryContext(ctx,
		`SELECT `+enrollmentColumns+` FROM tbl_face_embeddings WHERE is_active = 1 ORDER BY id`)
	if err != nil {
		return nil, database.Classify(ctx, "query enrollments", err, classifyMySQL)
	}
	defer rows.Close()

	var records []database.EnrollmentRecord
	for rows.Next() {
		rec, err := scanEnrollment(rows)
		if err != nil {
			return nil, database.Classify(ctx, "scan enrollment", err, classifyMySQL)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Classify(ctx, "iterate enrollments", err, classifyMySQL)
	}
	return records, nil
}

// Get retrieves an active record by id
func (r *EnrollmentRepository) Get(ctx context.Context, id int64) (*database.EnrollmentRecord, error) {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	rec, err := scanEnrollment(r.pool.db.QueryRowContext(ctx,
		`SELECT `+enrollmentColumns+` FROM tbl_face_embeddings WHERE id = ? AND is_active = 1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, database.Classify(ctx, "query enrollment", err, classifyMySQL)
	}
	return &rec, nil
}

// CountBySubject returns the number of active records for a subject
func (r *EnrollmentRepository) CountBySubject(ctx context.Context, subjectID string) (int, error) {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	var count int
	err := r.pool.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tbl_face_embeddings WHERE user_id = ? AND is_active = 1", subjectID).Scan(&count)
	if err != nil {
		return 0, database.Classify(ctx, "count enrollments", err, classifyMySQL)
	}
	return count, nil
}

// Deactivate hides a record from verification. The row is checked first
// because MySQL reports zero affected rows for unchanged data.
func (r *EnrollmentRepository) Deactivate(ctx context.Context, id int64) error {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	var exists int
	err := r.pool.db.QueryRowContext(ctx,
		"SELECT 1 FROM tbl_face_embeddings WHERE id = ? AND is_active = 1", id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return database.ErrNotFound
	}
	if err != nil {
		return database.Classify(ctx, "deactivate enrollment", err, classifyMySQL)
	}

	if _, err := r.pool.db.ExecContext(ctx,
		"UPDATE tbl_face_embeddings SET is_active = 0 WHERE id = ?", id); err != nil {
		return database.Classify(ctx, "deactivate enrollment", err, classifyMySQL)
	}
	return nil
}
