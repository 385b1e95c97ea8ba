// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/kozaktomas/face-gate/internal/database"
	"github.com/kozaktomas/face-gate/internal/facematch"
)

// MockEnrollmentStore is an in-memory database.EnrollmentWriter that keeps
// insertion order and counts calls.
type MockEnrollmentStore struct {
	mu      sync.RWMutex
	records []database.EnrollmentRecord
	nextID  int64

	// Error injection
	ListActiveError     error
	GetError            error
	CountBySubjectError error
	EnrollError         error
	DeactivateError     error

	// Call counters
	ListActiveCalls int
	EnrollCalls     int
}

// NewMockEnrollmentStore creates a new mock enrollment store
func NewMockEnrollmentStore() *MockEnrollmentStore {
	return &MockEnrollmentStore{}
}

// AddRecord appends a record as-is, including malformed embeddings.
// A zero ID is replaced by the next sequence value.
func (m *MockEnrollmentStore) AddRecord(rec database.EnrollmentRecord) database.EnrollmentRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == 0 {
		m.nextID++
		rec.ID = m.nextID
	} else if rec.ID > m.nextID {
		m.nextID = rec.ID
	}
	m.records = append(m.records, rec)
	return rec
}

// AddEmbedding appends an active record holding emb.
func (m *MockEnrollmentStore) AddEmbedding(id int64, subjectID string, emb facematch.Embedding) database.EnrollmentRecord {
	data, _ := facematch.MarshalEmbedding(emb)
	return m.AddRecord(database.EnrollmentRecord{ID: id, SubjectID: subjectID, EmbeddingJSON: data, Active: true})
}

// Records returns a copy of every stored record, active or not.
func (m *MockEnrollmentStore) Records() []database.EnrollmentRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]database.EnrollmentRecord, len(m.records))
	copy(out, m.records)
	return out
}

// ListActive returns active records in insertion order
func (m *MockEnrollmentStore) ListActive(ctx context.Context) ([]database.EnrollmentRecord, error) {
	m.mu.Lock()
	m.ListActiveCalls++
	m.mu.Unlock()

	if m.ListActiveError != nil {
		return nil, m.ListActiveError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []database.EnrollmentRecord
	for _, rec := range m.records {
		if rec.Active {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Get returns an active record by ID
func (m *MockEnrollmentStore) Get(ctx context.Context, id int64) (*database.EnrollmentRecord, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rec := range m.records {
		if rec.ID == id && rec.Active {
			return &rec, nil
		}
	}
	return nil, database.ErrNotFound
}

// CountBySubject counts active records for a subject
func (m *MockEnrollmentStore) CountBySubject(ctx context.Context, subjectID string) (int, error) {
	if m.CountBySubjectError != nil {
		return 0, m.CountBySubjectError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, rec := range m.records {
		if rec.Active && rec.SubjectID == subjectID {
			count++
		}
	}
	return count, nil
}

// Enroll appends a new active record
func (m *MockEnrollmentStore) Enroll(ctx context.Context, subjectID string, embedding facematch.Embedding) (*database.EnrollmentRecord, error) {
	m.mu.Lock()
	m.EnrollCalls++
	m.mu.Unlock()

	if m.EnrollError != nil {
		return nil, m.EnrollError
	}
	data, err := facematch.MarshalEmbedding(embedding)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rec := m.AddRecord(database.EnrollmentRecord{
		SubjectID:     subjectID,
		EmbeddingJSON: data,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	return &rec, nil
}

// Deactivate marks a record inactive
func (m *MockEnrollmentStore) Deactivate(ctx context.Context, id int64) error {
	if m.DeactivateError != nil {
		return m.DeactivateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].ID == id && m.records[i].Active {
			m.records[i].Active = false
			return nil
		}
	}
	return database.ErrNotFound
}

// MockLocationReader is a mock implementation of database.LocationReader
type MockLocationReader struct {
	Anchors []facematch.Anchor

	// Error injection
	ListAnchorsError error
	ListAnchorsCalls int
}

// NewMockLocationReader creates a mock location reader with the given anchors
func NewMockLocationReader(anchors ...facematch.Anchor) *MockLocationReader {
	return &MockLocationReader{Anchors: anchors}
}

// ListAnchors returns the configured anchors
func (m *MockLocationReader) ListAnchors(ctx context.Context) ([]facematch.Anchor, error) {
	m.ListAnchorsCalls++
	if m.ListAnchorsError != nil {
		return nil, m.ListAnchorsError
	}
	return m.Anchors, nil
}

// AddAnchor appends an anchor with both coordinates set
func (m *MockLocationReader) AddAnchor(ctx context.Context, name string, point facematch.LocationPoint) (int64, error) {
	if m.ListAnchorsError != nil {
		return 0, m.ListAnchorsError
	}
	lat, lon := point.Latitude, point.Longitude
	id := int64(len(m.Anchors) + 1)
	m.Anchors = append(m.Anchors, facematch.Anchor{ID: id, Name: name, Latitude: &lat, Longitude: &lon})
	return id, nil
}
