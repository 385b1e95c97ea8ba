package verification

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultComparisonTTL is how long a comparison token stays usable.
const DefaultComparisonTTL = 10 * time.Minute

// PendingComparison links a comparison token to the record it was issued for.
type PendingComparison struct {
	ID        string
	RecordID  int64
	SubjectID string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// PendingComparisons hands out signed, short-lived tokens referencing a
// freshly registered record, so a follow-up capture can be compared with it.
type PendingComparisons struct {
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
	pending map[string]*PendingComparison
	mu      sync.RWMutex
}

// NewPendingComparisons creates a token registry. An empty secret is replaced
// by a random one, which invalidates tokens across restarts.
func NewPendingComparisons(secret string, ttl time.Duration) *PendingComparisons {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		_, _ = rand.Read(key)
	}
	if ttl <= 0 {
		ttl = DefaultComparisonTTL
	}
	return &PendingComparisons{
		secret:  key,
		ttl:     ttl,
		now:     time.Now,
		pending: make(map[string]*PendingComparison),
	}
}

// Issue records a pending comparison and returns its token.
func (p *PendingComparisons) Issue(recordID int64, subjectID string) (string, *PendingComparison) {
	now := p.now()
	pc := &PendingComparison{
		ID:        uuid.NewString(),
		RecordID:  recordID,
		SubjectID: subjectID,
		CreatedAt: now,
		ExpiresAt: now.Add(p.ttl),
	}

	p.mu.Lock()
	p.pending[pc.ID] = pc
	p.mu.Unlock()

	return pc.ID + "." + p.sign(pc.ID), pc
}

// Lookup validates token and returns the pending comparison it names.
func (p *PendingComparisons) Lookup(token string) (*PendingComparison, error) {
	id, ok := p.verify(token)
	if !ok {
		return nil, ErrUnknownComparison
	}

	p.mu.RLock()
	pc, found := p.pending[id]
	p.mu.RUnlock()

	if !found || p.now().After(pc.ExpiresAt) {
		return nil, ErrUnknownComparison
	}
	return pc, nil
}

// Revoke forgets a token.
func (p *PendingComparisons) Revoke(token string) {
	id, ok := p.verify(token)
	if !ok {
		return
	}
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

// PurgeExpired drops expired entries and returns how many were removed.
func (p *PendingComparisons) PurgeExpired() int {
	now := p.now()
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	for id, pc := range p.pending {
		if now.After(pc.ExpiresAt) {
			delete(p.pending, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked tokens, expired ones included.
func (p *PendingComparisons) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.pending)
}

func (p *PendingComparisons) verify(token string) (string, bool) {
	id, signature, ok := strings.Cut(token, ".")
	if !ok || id == "" {
		return "", false
	}
	return id, hmac.Equal([]byte(signature), []byte(p.sign(id)))
}

func (p *PendingComparisons) sign(data string) string {
	h := hmac.New(sha256.New, p.secret)
	h.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
