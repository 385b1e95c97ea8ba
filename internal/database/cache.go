package database

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kozaktomas/face-gate/internal/facematch"
)

// CachedStore keeps the active record list in memory for ttl. Every Enroll and
// Deactivate drops the cached list, so a record is visible to the next
// verification as soon as its write returns.
type CachedStore struct {
	EnrollmentWriter

	ttl time.Duration
	now func() time.Time

	mu         sync.RWMutex
	records    []EnrollmentRecord
	loadedAt   time.Time
	valid      bool
	generation uint64
}

// NewCachedStore wraps store with a read cache. A ttl <= 0 returns a cache
// that never holds data for longer than a single call.
func NewCachedStore(store EnrollmentWriter, ttl time.Duration) *CachedStore {
	return &CachedStore{
		EnrollmentWriter: store,
		ttl:              ttl,
		now:              time.Now,
	}
}

// ListActive serves from the cache when fresh, otherwise reloads from the store.
func (c *CachedStore) ListActive(ctx context.Context) ([]EnrollmentRecord, error) {
	c.mu.RLock()
	if c.valid && c.now().Sub(c.loadedAt) < c.ttl {
		records := slices.Clone(c.records)
		c.mu.RUnlock()
		return records, nil
	}
	gen := c.generation
	c.mu.RUnlock()

	records, err := c.EnrollmentWriter.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	// A write that landed while we were reading makes this snapshot stale.
	if gen == c.generation && c.ttl > 0 {
		c.records = slices.Clone(records)
		c.loadedAt = c.now()
		c.valid = true
	}
	c.mu.Unlock()

	return records, nil
}

// Enroll writes through and invalidates the cache.
func (c *CachedStore) Enroll(ctx context.Context, subjectID string, embedding facematch.Embedding) (*EnrollmentRecord, error) {
	defer c.Invalidate()
	return c.EnrollmentWriter.Enroll(ctx, subjectID, embedding)
}

// Deactivate writes through and invalidates the cache.
func (c *CachedStore) Deactivate(ctx context.Context, id int64) error {
	defer c.Invalidate()
	return c.EnrollmentWriter.Deactivate(ctx, id)
}

// Invalidate drops the cached list. A failed or timed out write still
// invalidates because the row may have been committed.
func (c *CachedStore) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = nil
	c.valid = false
	c.generation++
}
