package memory

import (
	"context"
	"sync"
	"time"

	"github.com/artpar/tollgate/domain/tier"
	"github.com/artpar/tollgate/domain/usage"
	"github.com/artpar/tollgate/ports"
)

type counterKey struct {
	userID   string
	resource tier.Resource
	period   usage.PeriodKey
}

// UsageStore implements ports.UsageStore in memory. A single mutex covers
// the whole check-and-increment, matching the linearization the SQLite
// adapter gets from the database.
type UsageStore struct {
	mu       sync.Mutex
	counters map[counterKey]usage.Counter

	// FailWith, when set, is returned by every call.
	FailWith error
}

// NewUsageStore creates an empty in-memory usage store.
func NewUsageStore() *UsageStore {
	return &UsageStore{counters: make(map[counterKey]usage.Counter)}
}

// Peek returns the current count, 0 when no row exists.
func (s *UsageStore) Peek(ctx context.Context, userID string, resource tier.Resource, key usage.PeriodKey) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWith != nil {
		return 0, s.FailWith
	}

	return s.counters[counterKey{userID, resource, key}].Count, nil
}

// IncrementIfAllowed atomically increments the counter unless the new
// count would exceed limit.
func (s *UsageStore) IncrementIfAllowed(ctx context.Context, userID string, resource tier.Resource, key usage.PeriodKey, limit int64) (usage.IncrementResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWith != nil {
		return usage.IncrementResult{}, s.FailWith
	}

	k := counterKey{userID, resource, key}
	c, ok := s.counters[k]
	if !ok {
		c = usage.Counter{UserID: userID, Resource: resource, PeriodKey: key}
	}

	if limit != tier.Unlimited && c.Count+1 > limit {
		return usage.IncrementResult{Accepted: false, NewCount: c.Count}, nil
	}

	c.Count++
	c.UpdatedAt = time.Now().UTC()
	s.counters[k] = c
	return usage.IncrementResult{Accepted: true, NewCount: c.Count}, nil
}

// ListByUser returns all counter rows for a user across periods.
func (s *UsageStore) ListByUser(ctx context.Context, userID string) ([]usage.Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWith != nil {
		return nil, s.FailWith
	}

	var out []usage.Counter
	for k, c := range s.counters {
		if k.userID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

// Seed sets a counter directly (for tests).
func (s *UsageStore) Seed(userID string, resource tier.Resource, key usage.PeriodKey, count int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[counterKey{userID, resource, key}] = usage.Counter{
		UserID:    userID,
		Resource:  resource,
		PeriodKey: key,
		Count:     count,
		UpdatedAt: time.Now().UTC(),
	}
}

// Ensure interface compliance.
var _ ports.UsageStore = (*UsageStore)(nil)
