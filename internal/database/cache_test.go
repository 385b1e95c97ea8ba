package database

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kozaktomas/face-gate/internal/facematch"
)

// countingStore is a minimal EnrollmentWriter that counts ListActive calls.
type countingStore struct {
	mu        sync.Mutex
	records   []EnrollmentRecord
	listCalls int
	enrollErr error
	nextID    int64
}

func (s *countingStore) ListActive(ctx context.Context) ([]EnrollmentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	out := make([]EnrollmentRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

func (s *countingStore) Get(ctx context.Context, id int64) (*EnrollmentRecord, error) {
	return nil, ErrNotFound
}

func (s *countingStore) CountBySubject(ctx context.Context, subjectID string) (int, error) {
	return 0, nil
}

func (s *countingStore) Enroll(ctx context.Context, subjectID string, embedding facematch.Embedding) (*EnrollmentRecord, error) {
	if s.enrollErr != nil {
		return nil, s.enrollErr
	}
	data, err := facematch.MarshalEmbedding(embedding)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec := EnrollmentRecord{ID: s.nextID, SubjectID: subjectID, EmbeddingJSON: data, Active: true}
	s.records = append(s.records, rec)
	return &rec, nil
}

func (s *countingStore) Deactivate(ctx context.Context, id int64) error {
	return nil
}

func (s *countingStore) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls
}

func TestCachedStore_ServesFromCache(t *testing.T) {
	store := &countingStore{}
	cache := NewCachedStore(store, time.Minute)
	ctx := context.Background()

	for range 3 {
		if _, err := cache.ListActive(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if store.calls() != 1 {
		t.Errorf("expected 1 store call, got %d", store.calls())
	}
}

func TestCachedStore_InvalidatedOnEnroll(t *testing.T) {
	store := &countingStore{}
	cache := NewCachedStore(store, time.Hour)
	ctx := context.Background()

	records, _ := cache.ListActive(ctx)
	if len(records) != 0 {
		t.Fatalf("expected empty store, got %d records", len(records))
	}

	if _, err := cache.Enroll(ctx, "EMP-1", facematch.Embedding{1, 0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, _ = cache.ListActive(ctx)
	if len(records) != 1 {
		t.Fatalf("expected the new record to be visible, got %d records", len(records))
	}
	if store.calls() != 2 {
		t.Errorf("expected a reload after enroll, got %d store calls", store.calls())
	}
}

func TestCachedStore_InvalidatedOnFailedEnroll(t *testing.T) {
	store := &countingStore{enrollErr: ErrTimeout}
	cache := NewCachedStore(store, time.Hour)
	ctx := context.Background()

	_, _ = cache.ListActive(ctx)
	if _, err := cache.Enroll(ctx, "EMP-1", facematch.Embedding{1, 0}); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	_, _ = cache.ListActive(ctx)

	if store.calls() != 2 {
		t.Errorf("expected a reload after failed enroll, got %d store calls", store.calls())
	}
}

func TestCachedStore_Expires(t *testing.T) {
	store := &countingStore{}
	cache := NewCachedStore(store, time.Second)
	now := time.Unix(1000, 0)
	cache.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = cache.ListActive(ctx)
	now = now.Add(2 * time.Second)
	_, _ = cache.ListActive(ctx)

	if store.calls() != 2 {
		t.Errorf("expected expired entry to reload, got %d store calls", store.calls())
	}
}

func TestCachedStore_ZeroTTLNeverCaches(t *testing.T) {
	store := &countingStore{}
	cache := NewCachedStore(store, 0)
	ctx := context.Background()

	_, _ = cache.ListActive(ctx)
	_, _ = cache.ListActive(ctx)

	if store.calls() != 2 {
		t.Errorf("expected every call to hit the store, got %d", store.calls())
	}
}

func TestCachedStore_ForeignWrites(t *testing.T) {
	ctx := context.Background()

	t.Run("hidden until the ttl expires", func(t *testing.T) {
		store := &countingStore{}
		cache := NewCachedStore(store, time.Minute)
		now := time.Unix(1000, 0)
		cache.now = func() time.Time { return now }

		_, _ = cache.ListActive(ctx)
		// Another process writes straight to the database.
		if _, err := store.Enroll(ctx, "EMP-1", facematch.Embedding{1, 0}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		records, _ := cache.ListActive(ctx)
		if len(records) != 0 {
			t.Fatalf("expected the cached snapshot, got %d records", len(records))
		}
		now = now.Add(time.Minute)
		records, _ = cache.ListActive(ctx)
		if len(records) != 1 {
			t.Fatalf("expected the write after expiry, got %d records", len(records))
		}
	})

	t.Run("visible at once with zero ttl", func(t *testing.T) {
		store := &countingStore{}
		cache := NewCachedStore(store, 0)

		_, _ = cache.ListActive(ctx)
		if _, err := store.Enroll(ctx, "EMP-1", facematch.Embedding{1, 0}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		records, _ := cache.ListActive(ctx)
		if len(records) != 1 {
			t.Fatalf("expected the write to be visible, got %d records", len(records))
		}
	})
}
