package verification

import (
	"context"
	"errors"
	"testing"

	"github.com/kozaktomas/face-gate/internal/database"
	"github.com/kozaktomas/face-gate/internal/database/mock"
	"github.com/kozaktomas/face-gate/internal/facematch"
)

func TestCompare(t *testing.T) {
	store := mock.NewMockEnrollmentStore()
	store.AddEmbedding(1, "alice", withSimilarity(0.85))
	store.AddEmbedding(2, "bob", withSimilarity(0.7))
	store.AddRecord(database.EnrollmentRecord{ID: 3, SubjectID: "legacy", EmbeddingJSON: []byte("oops"), Active: true})
	engine := newTestEngine(t, store, Options{})
	ctx := context.Background()

	tests := []struct {
		name      string
		recordID  int64
		threshold float64
		matched   bool
		wantErr   error
	}{
		{"above default 0.8", 1, 0, true, nil},
		{"below default 0.8", 2, 0, false, nil},
		{"explicit threshold", 2, 0.5, true, nil},
		{"unknown record", 99, 0, false, database.ErrNotFound},
		{"corrupt record", 3, 0, false, ErrCorruptRecord},
		{"bad threshold", 1, -3, false, ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Compare(ctx, tt.recordID, reference, tt.threshold)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Matched != tt.matched {
				t.Errorf("Matched = %v, want %v (similarity %.4f)", result.Matched, tt.matched, result.Similarity)
			}
			if result.RecordID != tt.recordID {
				t.Errorf("RecordID = %d, want %d", result.RecordID, tt.recordID)
			}
		})
	}
}

func TestCompare_NilCandidate(t *testing.T) {
	engine := newTestEngine(t, mock.NewMockEnrollmentStore(), Options{})
	_, err := engine.Compare(context.Background(), 1, nil, 0)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	_, err = engine.Compare(context.Background(), 1, facematch.Embedding{0, 0}, 0)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for zero vector, got %v", err)
	}
}
