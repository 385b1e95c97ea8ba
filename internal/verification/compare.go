package verification

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-gate/internal/facematch"
)

// Compare scores candidate against one enrolled record, typically the record
// just created by Register. Unknown or inactive records yield
// database.ErrNotFound.
func (e *Engine) Compare(ctx context.Context, recordID int64, candidate facematch.Embedding, threshold float64) (*CompareResult, error) {
	if err := e.checkCandidate(candidate); err != nil {
		return nil, err
	}
	threshold, err := resolveThreshold(threshold, e.compareThreshold)
	if err != nil {
		return nil, err
	}

	rec, err := e.store.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}

	stored, err := rec.Embedding(e.dim)
	if err != nil {
		e.log.Warn(ctx, "comparison against unusable enrollment", "record_id", rec.ID, "error", err)
		return nil, fmt.Errorf("%w: record %d: %w", ErrCorruptRecord, rec.ID, err)
	}
	similarity, err := facematch.CosineSimilarity(candidate, stored)
	if err != nil {
		return nil, fmt.Errorf("%w: record %d: %w", ErrCorruptRecord, rec.ID, err)
	}

	return &CompareResult{
		Matched:    similarity > threshold,
		Similarity: similarity,
		RecordID:   rec.ID,
		SubjectID:  rec.SubjectID,
	}, nil
}
