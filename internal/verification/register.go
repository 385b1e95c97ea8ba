package verification

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-gate/internal/database"
	"github.com/kozaktomas/face-gate/internal/facematch"
)

// Register stores a new embedding for subjectID. The same subject may be
// registered any number of times; every call creates a separate record.
func (e *Engine) Register(ctx context.Context, subjectID string, embedding facematch.Embedding) (*database.EnrollmentRecord, error) {
	subjectID = facematch.NormalizeSubjectID(subjectID)
	if subjectID == "" {
		return nil, fmt.Errorf("%w: subject id is required", ErrInvalidInput)
	}
	if err := e.checkCandidate(embedding); err != nil {
		return nil, err
	}

	rec, err := e.store.Enroll(ctx, subjectID, embedding)
	if err != nil {
		e.log.Error(ctx, "enrollment failed", "subject_id", subjectID, "error", err)
		return nil, err
	}

	if e.index != nil {
		if err := e.index.Add(*rec); err != nil {
			e.log.Warn(ctx, "failed to index enrollment", "record_id", rec.ID, "error", err)
		}
	}

	e.log.Info(ctx, "face enrolled", "subject_id", subjectID, "record_id", rec.ID)
	return rec, nil
}
