// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/artpar/tollgate/domain/subscription"
	"github.com/artpar/tollgate/domain/tier"
	"github.com/artpar/tollgate/domain/usage"
)

// ErrNotFound is returned by stores when an entity does not exist.
// Part of the store contract so callers need not know the backend.
var ErrNotFound = errors.New("not found")

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// SubscriptionStore persists subscription records. One row per user.
// The read paths of the entitlement core never mutate tier, status, or
// period fields; only the billing webhook path writes those.
type SubscriptionStore interface {
	// GetByUser retrieves the subscription record for a user.
	// Returns ErrNotFound when no row exists.
	GetByUser(ctx context.Context, userID string) (subscription.Record, error)

	// GetByBillingCustomer retrieves the record linked to a billing
	// provider customer id. Used by the webhook path, which only knows
	// the provider's identifiers.
	GetByBillingCustomer(ctx context.Context, customerID string) (subscription.Record, error)

	// Upsert creates or replaces the record for rec.UserID.
	// Used by the billing webhook path.
	Upsert(ctx context.Context, rec subscription.Record) error

	// SetBillingCustomer links a billing provider customer id to a user,
	// creating a bare record if none exists. Used for lazy customer
	// creation on first checkout.
	SetBillingCustomer(ctx context.Context, userID, customerID string) error
}

// UsageStore persists per-user, per-resource, per-period counters.
type UsageStore interface {
	// Peek returns the current count, 0 when no row exists. No side effect.
	Peek(ctx context.Context, userID string, resource tier.Resource, key usage.PeriodKey) (int64, error)

	// IncrementIfAllowed atomically increments the counter unless the new
	// count would exceed limit. Must be a single conditional statement at
	// the storage layer, never a read-then-write pair. A limit of
	// tier.Unlimited skips the check but still records the count.
	IncrementIfAllowed(ctx context.Context, userID string, resource tier.Resource, key usage.PeriodKey, limit int64) (usage.IncrementResult, error)

	// ListByUser returns all counter rows for a user across periods.
	ListByUser(ctx context.Context, userID string) ([]usage.Counter, error)
}

// -----------------------------------------------------------------------------
// External Service Ports
// -----------------------------------------------------------------------------

// BillingProvider interfaces with the payment processor. All failures are
// opaque provider errors; callers wrap them and never retry blindly.
type BillingProvider interface {
	// Name returns the provider name ("stripe", "noop").
	Name() string

	// CreateCustomer creates a customer in the billing system.
	CreateCustomer(ctx context.Context, email, userID string) (customerID string, err error)

	// CreatePortalSession creates a hosted billing portal session.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (url string, err error)

	// CreateCheckoutSession creates a hosted subscription checkout session.
	// clientReferenceID round-trips through the provider and comes back on
	// the checkout-completed webhook, linking the session to a user.
	CreateCheckoutSession(ctx context.Context, customerID, clientReferenceID, priceID, successURL, cancelURL string) (url string, err error)

	// ParseWebhook verifies a webhook payload signature and returns the
	// event type with its raw object payload.
	ParseWebhook(payload []byte, signature string) (eventType string, data map[string]any, err error)
}
