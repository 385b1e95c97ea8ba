package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-gate/internal/database"
	"github.com/kozaktomas/face-gate/internal/facematch"
)

const enrollmentColumns = `id, user_id, embedding_json, is_active, created_on, update_on`

// timestamp accepts both the driver's parsed time.Time and the raw
// CURRENT_TIMESTAMP text, depending on how the column was declared.
type timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

func (t *timestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case int64:
		t.Time = time.Unix(v, 0).UTC()
		return nil
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (t *timestamp) parse(s string) error {
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}

// EnrollmentRepository stores enrollments in tbl_face_embeddings.
type EnrollmentRepository struct {
	pool *Pool
}

func NewEnrollmentRepository(pool *Pool) *EnrollmentRepository {
	return &EnrollmentRepository{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEnrollment(row rowScanner) (database.EnrollmentRecord, error) {
	var rec database.EnrollmentRecord
	var raw sql.NullString
	var created, updated timestamp
	if err := row.Scan(&rec.ID, &rec.SubjectID, &raw, &rec.Active, &created, &updated); err != nil {
		return rec, err
	}
	if raw.Valid {
		rec.EmbeddingJSON = []byte(raw.String)
	}
	rec.CreatedAt = created.Time
	rec.UpdatedAt = updated.Time
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

	rec, err := scanEnrollment(r.pool.db.QueryRowContext(ctx, `
		INSERT INTO tbl_face_embeddings (user_id, embedding_json, created_by, updated_by, is_active)
		VALUES (?, ?, 0, 0, 1)
		RETURNING `+enrollmentColumns, subjectID, string(data)))
	if err != nil {
		return nil, database.Classify(ctx, "insert enrollment", err, classifySQLite)
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
		return nil, database.Classify(ctx, "query enrollments", err, classifySQLite)
	}
	defer rows.Close()

	var records []database.EnrollmentRecord
	for rows.Next() {
		rec, err := scanEnrollment(rows)
		if err != nil {
			return nil, database.Classify(ctx, "scan enrollment", err, classifySQLite)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Classify(ctx, "iterate enrollments", err, classifySQLite)
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
		return nil, database.Classify(ctx, "query enrollment", err, classifySQLite)
	}
	return &rec, nil
}

func (r *EnrollmentRepository) CountBySubject(ctx context.Context, subjectID string) (int, error) {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	var count int
	err := r.pool.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tbl_face_embeddings WHERE user_id = ? AND is_active = 1", subjectID).Scan(&count)
	if err != nil {
		return 0, database.Classify(ctx, "count enrollments", err, classifySQLite)
	}
	return count, nil
}

// Deactivate hides a record from verification
func (r *EnrollmentRepository) Deactivate(ctx context.Context, id int64) error {
	ctx, cancel := r.pool.withTimeout(ctx)
	defer cancel()

	result, err := r.pool.db.ExecContext(ctx,
		"UPDATE tbl_face_embeddings SET is_active = 0, update_on = CURRENT_TIMESTAMP WHERE id = ? AND is_active = 1", id)
	if err != nil {
		return database.Classify(ctx, "deactivate enrollment", err, classifySQLite)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return database.Classify(ctx, "deactivate enrollment", err, classifySQLite)
	}
	if n == 0 {
		return database.ErrNotFound
	}
	return nil
}
