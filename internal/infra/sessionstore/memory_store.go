package sessionstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/zephyre/internal/domain/session"
)

type record struct {
	state     session.State
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory with a sliding TTL.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]record
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[uuid.UUID]record)}
}

// Load implements session.Store. Expired sessions are evicted on read.
func (s *MemoryStore) Load(_ context.Context, id uuid.UUID) (session.State, bool, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return session.State{}, false, nil
	}
	if hasExpired(rec.expiresAt) {
		s.mu.Lock()
		delete(s.records, id)
		s.mu.Unlock()
		return session.State{}, false, nil
	}
	return rec.state, true, nil
}

// Save stores state and restarts its TTL. A non-positive ttl never expires.
func (s *MemoryStore) Save(_ context.Context, state session.State, ttl time.Duration) error {
	exp := time.Time{}
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[state.ID] = record{state: state, expiresAt: exp}
	return nil
}

// Sweep drops every expired session and reports how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, rec := range s.records {
		if hasExpired(rec.expiresAt) {
			delete(s.records, id)
			removed++
		}
	}
	return removed
}

func hasExpired(ts time.Time) bool {
	if ts.IsZero() {
		return false
	}
	return ts.Before(time.Now())
}

var _ session.Store = (*MemoryStore)(nil)
