package database

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/face-gate/internal/facematch"
)

func testRecord(t *testing.T, id int64, emb facematch.Embedding) EnrollmentRecord {
	t.Helper()
	data, err := facematch.MarshalEmbedding(emb)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return EnrollmentRecord{ID: id, SubjectID: "S", EmbeddingJSON: data, Active: true}
}

func randomEmbedding(r *rand.Rand, dim int) facematch.Embedding {
	e := make(facematch.Embedding, dim)
	for i := range e {
		e[i] = r.Float64()*2 - 1
	}
	return e
}

func TestEnrollmentIndex_BuildAndSearch(t *testing.T) {
	const dim = 8
	r := rand.New(rand.NewSource(42))
	idx := NewEnrollmentIndex(dim)

	var records []EnrollmentRecord
	for i := int64(1); i <= 50; i++ {
		records = append(records, testRecord(t, i, randomEmbedding(r, dim)))
	}
	records = append(records, EnrollmentRecord{ID: 99, EmbeddingJSON: []byte("{corrupt")})

	indexed, skipped := idx.Build(records)
	if indexed != 50 || skipped != 1 {
		t.Fatalf("expected 50 indexed / 1 skipped, got %d / %d", indexed, skipped)
	}

	query, _ := records[10].Embedding(dim)
	results, err := idx.Search(query, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) == 0 || results[0].ID != records[10].ID {
		t.Fatalf("expected record %d first, got %+v", records[10].ID, results)
	}
}

func TestEnrollmentIndex_AddAndRemove(t *testing.T) {
	idx := NewEnrollmentIndex(2)

	if _, err := idx.Search(facematch.Embedding{1, 0}, 1); err == nil {
		t.Fatal("expected error on empty index")
	}

	if err := idx.Add(testRecord(t, 1, facematch.Embedding{1, 0})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := idx.Add(testRecord(t, 2, facematch.Embedding{0, 1})); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := idx.Add(EnrollmentRecord{ID: 3, EmbeddingJSON: []byte("[1]")}); err == nil {
		t.Fatal("expected error for wrong dimension")
	}
	if idx.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", idx.Len())
	}

	if !idx.Contains(1) || idx.Contains(3) {
		t.Fatal("expected record 1 indexed and record 3 not")
	}

	idx.Remove(1)
	if idx.Contains(1) {
		t.Fatal("removed record must not be contained")
	}
	results, err := idx.Search(facematch.Embedding{1, 0.01}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, rec := range results {
		if rec.ID == 1 {
			t.Fatal("removed record must not be returned")
		}
	}
}

func TestEnrollmentIndex_SaveAndLoad(t *testing.T) {
	const dim = 4
	r := rand.New(rand.NewSource(7))
	path := filepath.Join(t.TempDir(), "enrollments.hnsw")

	var records []EnrollmentRecord
	for i := int64(1); i <= 20; i++ {
		records = append(records, testRecord(t, i, randomEmbedding(r, dim)))
	}

	idx := NewEnrollmentIndex(dim)
	idx.Build(records)
	if err := idx.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := NewEnrollmentIndex(dim)
	reused, err := loaded.LoadOrBuild(path, records)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reused {
		t.Error("expected the saved graph to be reused")
	}
	if loaded.Len() != 20 {
		t.Errorf("expected 20 records, got %d", loaded.Len())
	}

	// One more record makes the saved graph stale.
	records = append(records, testRecord(t, 21, randomEmbedding(r, dim)))
	stale := NewEnrollmentIndex(dim)
	reused, err = stale.LoadOrBuild(path, records)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if reused {
		t.Error("expected stale graph to be rebuilt")
	}
	if stale.Len() != 21 {
		t.Errorf("expected 21 records, got %d", stale.Len())
	}
}
