// Package memory provides in-memory implementations of storage ports.
// Used for tests and throwaway deployments; semantics match the SQLite
// adapters.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/artpar/tollgate/domain/subscription"
	"github.com/artpar/tollgate/domain/tier"
	"github.com/artpar/tollgate/ports"
)

// ErrNotFound is returned when an entity is not found.
var ErrNotFound = ports.ErrNotFound

// SubscriptionStore implements ports.SubscriptionStore in memory.
type SubscriptionStore struct {
	mu      sync.RWMutex
	records map[string]subscription.Record // keyed by user id

	// FailWith, when set, is returned by every call. Lets tests simulate
	// an unavailable store.
	FailWith error
}

// NewSubscriptionStore creates an empty in-memory subscription store.
func NewSubscriptionStore() *SubscriptionStore {
	return &SubscriptionStore{records: make(map[string]subscription.Record)}
}

// GetByUser retrieves the subscription record for a user.
func (s *SubscriptionStore) GetByUser(ctx context.Context, userID string) (subscription.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.FailWith != nil {
		return subscription.Record{}, s.FailWith
	}

	rec, ok := s.records[userID]
	if !ok {
		return subscription.Record{}, ErrNotFound
	}
	return rec, nil
}

// GetByBillingCustomer retrieves the record linked to a billing customer.
func (s *SubscriptionStore) GetByBillingCustomer(ctx context.Context, customerID string) (subscription.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.FailWith != nil {
		return subscription.Record{}, s.FailWith
	}

	for _, rec := range s.records {
		if rec.BillingCustomerID == customerID && customerID != "" {
			return rec, nil
		}
	}
	return subscription.Record{}, ErrNotFound
}

// Upsert creates or replaces the record for rec.UserID.
func (s *SubscriptionStore) Upsert(ctx context.Context, rec subscription.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWith != nil {
		return s.FailWith
	}

	now := time.Now().UTC()
	if existing, ok := s.records[rec.UserID]; ok {
		rec.CreatedAt = existing.CreatedAt
	} else if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	s.records[rec.UserID] = rec
	return nil
}

// SetBillingCustomer links a billing customer id, creating a bare record
// if none exists.
func (s *SubscriptionStore) SetBillingCustomer(ctx context.Context, userID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWith != nil {
		return s.FailWith
	}

	now := time.Now().UTC()
	rec, ok := s.records[userID]
	if !ok {
		rec = subscription.Record{
			ID:        userID,
			UserID:    userID,
			TierID:    tier.Free,
			Status:    subscription.StatusNone,
			CreatedAt: now,
		}
	}
	rec.BillingCustomerID = customerID
	rec.UpdatedAt = now
	s.records[userID] = rec
	return nil
}

// Ensure interface compliance.
var _ ports.SubscriptionStore = (*SubscriptionStore)(nil)
