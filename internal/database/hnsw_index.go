package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/face-gate/internal/facematch"
)

// HNSWIndexMetadata stores metadata for validating a persisted index.
type HNSWIndexMetadata struct {
	RecordCount int       `json:"record_count"`
	MaxRecordID int64     `json:"max_record_id"`
	Dim         int       `json:"dim"`
	BuildTime   time.Time `json:"build_time"`
	Version     int       `json:"version"`
}

const hnswMetadataVersion = 1

// EnrollmentIndex is an approximate nearest-neighbour graph over active
// enrollments. It only proposes candidates; callers re-score them exactly.
type EnrollmentIndex struct {
	graph   *hnsw.Graph[int64]
	records map[int64]EnrollmentRecord
	dim     int
	mu      sync.RWMutex
}

// NewEnrollmentIndex creates an empty index for embeddings of length dim.
func NewEnrollmentIndex(dim int) *EnrollmentIndex {
	return &EnrollmentIndex{
		records: make(map[int64]EnrollmentRecord),
		dim:     dim,
	}
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.CosineDistance
	return g
}

// Build replaces the index content with records. Records whose embedding
// cannot be decoded are left out and counted in skipped.
func (h *EnrollmentIndex) Build(records []EnrollmentRecord) (indexed, skipped int) {
	g := newGraph()
	byID := make(map[int64]EnrollmentRecord, len(records))

	for _, rec := range records {
		emb, err := rec.Embedding(h.dim)
		if err != nil {
			skipped++
			continue
		}
		g.Add(hnsw.MakeNode(rec.ID, emb.Float32()))
		byID[rec.ID] = rec
	}

	h.mu.Lock()
	h.graph = g
	h.records = byID
	h.mu.Unlock()

	return len(byID), skipped
}

// Add indexes a freshly enrolled record.
func (h *EnrollmentIndex) Add(rec EnrollmentRecord) error {
	emb, err := rec.Embedding(h.dim)
	if err != nil {
		return fmt.Errorf("index record %d: %w", rec.ID, err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.graph == nil {
		h.graph = newGraph()
	}
	h.graph.Add(hnsw.MakeNode(rec.ID, emb.Float32()))
	h.records[rec.ID] = rec
	return nil
}

// Remove hides a record from search results.
func (h *EnrollmentIndex) Remove(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	// The graph node stays; lookups through records filter it out.
	delete(h.records, id)
}

// Contains reports whether id can be returned by Search.
func (h *EnrollmentIndex) Contains(id int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.records[id]
	return ok
}

// Search returns up to k indexed records nearest to query.
func (h *EnrollmentIndex) Search(query facematch.Embedding, k int) ([]EnrollmentRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil || h.graph.Len() == 0 {
		return nil, errors.New("index not initialized")
	}
	if len(query) != h.dim {
		return nil, fmt.Errorf("%w: query has %d values, index %d", facematch.ErrDimensionMismatch, len(query), h.dim)
	}

	neighbors := h.graph.Search(query.Float32(), k*HNSWSearchMultiplier)
	results := make([]EnrollmentRecord, 0, k)
	for _, n := range neighbors {
		rec, ok := h.records[n.Key]
		if !ok {
			continue
		}
		results = append(results, rec)
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// Len returns the number of searchable records.
func (h *EnrollmentIndex) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// Metadata describes the current index content.
func (h *EnrollmentIndex) Metadata() HNSWIndexMetadata {
	h.mu.RLock()
	defer h.mu.RUnlock()

	meta := HNSWIndexMetadata{RecordCount: len(h.records), Dim: h.dim, Version: hnswMetadataVersion}
	for id := range h.records {
		meta.MaxRecordID = max(meta.MaxRecordID, id)
	}
	return meta
}

// Save persists the graph to path and its metadata to path+".meta".
func (h *EnrollmentIndex) Save(path string) error {
	meta := h.Metadata()
	meta.BuildTime = time.Now()

	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		// Remove existing files if index is empty (best-effort cleanup).
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		return nil
	}

	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	defer f.Close()

	if err := h.graph.Export(f); err != nil {
		return fmt.Errorf("exporting HNSW graph: %w", err)
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", data, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// LoadHNSWMetadata loads metadata from a separate .meta file.
func LoadHNSWMetadata(path string) (HNSWIndexMetadata, error) {
	var meta HNSWIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return meta, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return meta, nil
}

// LoadOrBuild reuses the graph persisted at path when its metadata matches
// records, otherwise rebuilds from records. It reports whether the saved graph was used.
func (h *EnrollmentIndex) LoadOrBuild(path string, records []EnrollmentRecord) (bool, error) {
	if path == "" {
		h.Build(records)
		return false, nil
	}

	want := NewEnrollmentIndex(h.dim)
	for _, rec := range records {
		if _, err := rec.Embedding(h.dim); err == nil {
			want.records[rec.ID] = rec
		}
	}
	expected := want.Metadata()

	meta, err := LoadHNSWMetadata(path)
	if err != nil || meta.Version != hnswMetadataVersion || meta.Dim != h.dim ||
		meta.RecordCount != expected.RecordCount || meta.MaxRecordID != expected.MaxRecordID {
		h.Build(records)
		return false, nil
	}

	saved, err := hnsw.LoadSavedGraph[int64](path)
	if err != nil {
		h.Build(records)
		return false, fmt.Errorf("failed to load HNSW index: %w", err)
	}
	saved.Distance = hnsw.CosineDistance

	h.mu.Lock()
	h.graph = saved.Graph
	h.records = want.records
	h.mu.Unlock()
	return true, nil
}
