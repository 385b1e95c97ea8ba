package verification

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-gate/internal/database"
	"github.com/kozaktomas/face-gate/internal/facematch"
)

// Verify scores req.Candidate against every active enrollment.
//
// Negative decisions (no enrollments, no match, out of range) are returned as
// a MatchResult with a nil error. Errors are ErrInvalidInput, the store error
// kinds from the database package, or the context error.
func (e *Engine) Verify(ctx context.Context, req VerifyRequest) (*MatchResult, error) {
	if err := e.checkCandidate(req.Candidate); err != nil {
		return nil, err
	}
	threshold, err := resolveThreshold(req.Threshold, e.verifyThreshold)
	if err != nil {
		return nil, err
	}
	policy := req.Policy
	if policy == "" {
		policy = e.policy
	}
	if _, ok := ParsePolicy(string(policy)); !ok {
		return nil, fmt.Errorf("%w: unknown policy %q", ErrInvalidInput, policy)
	}

	if e.geofence {
		inRange, err := e.checkLocation(ctx, req.Location)
		if err != nil {
			return nil, err
		}
		if !inRange {
			e.log.Info(ctx, "verification outside allowed locations")
			return &MatchResult{Outcome: OutcomeOutOfRange}, nil
		}
	}

	records, err := e.store.ListActive(ctx)
	if err != nil {
		e.log.Error(ctx, "failed to load enrollments", "error", err)
		return nil, err
	}
	if len(records) == 0 {
		return &MatchResult{Outcome: OutcomeNoEnrollments}, nil
	}

	var result *MatchResult
	if policy == PolicyBestMatch {
		result, err = e.bestMatch(ctx, req.Candidate, threshold, records)
	} else {
		result, err = e.firstMatch(ctx, req.Candidate, threshold, records)
	}
	if err != nil {
		return nil, err
	}

	e.log.Debug(ctx, "verification finished",
		"outcome", result.Outcome,
		"record_id", result.RecordID,
		"similarity", result.Similarity,
		"scanned", result.Scanned,
		"skipped", result.Skipped,
	)
	return result, nil
}

func (e *Engine) checkLocation(ctx context.Context, loc *facematch.LocationPoint) (bool, error) {
	if loc == nil {
		return false, fmt.Errorf("%w: location is required", ErrInvalidInput)
	}
	anchors, err := e.locations.ListAnchors(ctx)
	if err != nil {
		e.log.Error(ctx, "failed to load location anchors", "error", err)
		return false, err
	}
	return facematch.IsWithinRange(*loc, anchors, e.radius), nil
}

// score decodes rec and scores it against candidate. ok is false when the
// record must be skipped.
func (e *Engine) score(ctx context.Context, rec *database.EnrollmentRecord, candidate facematch.Embedding) (similarity float64, ok bool) {
	stored, err := rec.Embedding(e.dim)
	if err != nil {
		e.log.Warn(ctx, "skipping unusable enrollment", "record_id", rec.ID, "subject_id", rec.SubjectID, "error", err)
		return 0, false
	}
	similarity, err = facematch.CosineSimilarity(candidate, stored)
	if err != nil {
		e.log.Warn(ctx, "skipping unusable enrollment", "record_id", rec.ID, "subject_id", rec.SubjectID, "error", err)
		return 0, false
	}
	return similarity, true
}

func (e *Engine) firstMatch(ctx context.Context, candidate facematch.Embedding, threshold float64, records []database.EnrollmentRecord) (*MatchResult, error) {
	result := &MatchResult{Outcome: OutcomeNoMatch}
	for i := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		similarity, ok := e.score(ctx, &records[i], candidate)
		if !ok {
			result.Skipped++
			continue
		}
		result.Scanned++
		if similarity > threshold {
			result.Outcome = OutcomeMatched
			result.SubjectID = records[i].SubjectID
			result.RecordID = records[i].ID
			result.Similarity = similarity
			return result, nil
		}
	}
	return result, nil
}

func (e *Engine) bestMatch(ctx context.Context, candidate facematch.Embedding, threshold float64, records []database.EnrollmentRecord) (*MatchResult, error) {
	if ids, unindexed := e.nearestCandidates(ctx, candidate, records); len(ids) > 0 {
		if result := e.rescoreCandidates(ctx, candidate, threshold, records, ids, unindexed); result != nil {
			return result, nil
		}
	}

	result := &MatchResult{Outcome: OutcomeNoMatch}
	best := -1
	var bestSimilarity float64
	for i := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		similarity, ok := e.score(ctx, &records[i], candidate)
		if !ok {
			result.Skipped++
			continue
		}
		result.Scanned++
		// Strictly greater keeps the earliest record on ties.
		if similarity > threshold && (best < 0 || similarity > bestSimilarity) {
			best = i
			bestSimilarity = similarity
		}
	}
	if best >= 0 {
		result.Outcome = OutcomeMatched
		result.SubjectID = records[best].SubjectID
		result.RecordID = records[best].ID
		result.Similarity = bestSimilarity
	}
	return result, nil
}

// nearestCandidates asks the HNSW index, or else the store's native nearest
// search, for the records closest to candidate. Nil means scan everything.
//
// The HNSW graph is approximate and only knows the records it was built or
// refreshed with, so unindexed lists the active records it cannot propose.
// The store's search ranks every live row and leaves unindexed empty.
func (e *Engine) nearestCandidates(ctx context.Context, candidate facematch.Embedding, records []database.EnrollmentRecord) (ids, unindexed []int64) {
	switch {
	case e.index != nil && e.index.Len() > 0:
		found, err := e.index.Search(candidate, indexCandidates)
		if err != nil {
			e.log.Debug(ctx, "index search failed, scanning", "error", err)
			return nil, nil
		}
		ids = make([]int64, len(found))
		for i := range found {
			ids[i] = found[i].ID
		}
		for i := range records {
			if !e.index.Contains(records[i].ID) {
				unindexed = append(unindexed, records[i].ID)
			}
		}
		return ids, unindexed
	case e.nearest != nil:
		found, err := e.nearest.FindNearest(ctx, candidate, indexCandidates)
		if err != nil {
			e.log.Debug(ctx, "nearest search failed, scanning", "error", err)
			return nil, nil
		}
		ids = make([]int64, len(found))
		for i := range found {
			ids[i] = found[i].Record.ID
		}
		return ids, nil
	}
	return nil, nil
}

// rescoreCandidates scores the proposed records that are still active plus
// every active record missing from the index. It returns nil when none
// qualifies so the caller falls back to the full scan.
func (e *Engine) rescoreCandidates(ctx context.Context, candidate facematch.Embedding, threshold float64,
	records []database.EnrollmentRecord, ids, unindexed []int64) *MatchResult {
	position := make(map[int64]int, len(records))
	for i := range records {
		position[records[i].ID] = i
	}

	var result *MatchResult
	scanned, skipped := 0, 0
	seen := make(map[int64]struct{}, len(ids)+len(unindexed))
	for _, id := range append(ids, unindexed...) {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		i, active := position[id]
		if !active {
			// Deactivated since the index was last refreshed.
			if e.index != nil {
				e.index.Remove(id)
			}
			continue
		}
		similarity, ok := e.score(ctx, &records[i], candidate)
		if !ok {
			skipped++
			continue
		}
		scanned++
		if similarity <= threshold {
			continue
		}
		if result == nil || similarity > result.Similarity ||
			(similarity == result.Similarity && position[result.RecordID] > i) {
			result = &MatchResult{
				Outcome:    OutcomeMatched,
				SubjectID:  records[i].SubjectID,
				RecordID:   records[i].ID,
				Similarity: similarity,
			}
		}
	}
	if result != nil {
		result.Scanned = scanned
		result.Skipped = skipped
	}
	return result
}
