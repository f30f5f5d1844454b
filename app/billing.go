package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/artpar/tollgate/domain/tier"
	"github.com/artpar/tollgate/ports"
	"github.com/rs/zerolog"
)

// Identity is the authenticated caller, resolved once per request by the
// identity collaborator and passed explicitly through all calls.
type Identity struct {
	UserID string
	Email  string
}

// BillingService brokers provider-hosted portal and checkout sessions
// scoped to the caller's billing identity.
type BillingService struct {
	subs     ports.SubscriptionStore
	provider ports.BillingProvider
	logger   zerolog.Logger

	// Catalog, allow-list, and price map are hot-reloadable as one unit.
	rules atomic.Pointer[BillingRules]
}

// BillingRules is the reloadable slice of billing configuration.
type BillingRules struct {
	Catalog *tier.Catalog
	// Origins is the redirect allow-list. The first entry is the
	// substitute for any origin hint not on the list.
	Origins  []string
	PriceIDs map[tier.ID]string
}

// BillingDeps contains dependencies for the billing service.
type BillingDeps struct {
	Subscriptions ports.SubscriptionStore
	Provider      ports.BillingProvider
	Catalog       *tier.Catalog
	// AllowedOrigins is the redirect origin allow-list. Must not be empty.
	AllowedOrigins []string
	// PriceIDs maps paid tiers to the provider's price identifiers.
	PriceIDs map[tier.ID]string
	Logger   zerolog.Logger
}

// NewBillingService creates a new billing session broker.
func NewBillingService(deps BillingDeps) (*BillingService, error) {
	s := &BillingService{
		subs:     deps.Subscriptions,
		provider: deps.Provider,
		logger:   deps.Logger,
	}
	if err := s.Reload(deps.Catalog, deps.AllowedOrigins, deps.PriceIDs); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload swaps the catalog, redirect allow-list, and price map without a
// restart. The new allow-list is validated before the swap; an invalid one
// leaves the previous rules in effect.
func (s *BillingService) Reload(catalog *tier.Catalog, origins []string, priceIDs map[tier.ID]string) error {
	if len(origins) == 0 {
		return errors.New("billing: at least one allowed origin is required")
	}
	for _, o := range origins {
		if _, err := url.Parse(o); err != nil || !strings.Contains(o, "://") {
			return fmt.Errorf("billing: invalid allowed origin %q", o)
		}
	}
	s.rules.Store(&BillingRules{Catalog: catalog, Origins: origins, PriceIDs: priceIDs})
	return nil
}

// resolveOrigin validates a caller-supplied redirect origin against the
// allow-list. Unknown origins get the first allow-listed origin instead
// of being trusted; this closes an open-redirect class of bug.
func (s *BillingService) resolveOrigin(rules *BillingRules, hint string) string {
	hint = strings.TrimRight(hint, "/")
	for _, o := range rules.Origins {
		if strings.EqualFold(hint, o) {
			return o
		}
	}
	if hint != "" {
		s.logger.Warn().Str("origin", hint).Msg("redirect origin not allow-listed, substituting default")
	}
	return rules.Origins[0]
}

// CreatePortalSession creates a provider-hosted billing portal session.
// Requires an existing billing identity; fails with ErrNoBillingIdentity
// ("subscribe first") rather than silently creating one. Provider errors
// are wrapped and never retried here: portal session creation is not
// idempotent-safe to blindly retry.
func (s *BillingService) CreatePortalSession(ctx context.Context, id Identity, originHint string) (string, error) {
	rec, err := s.subs.GetByUser(ctx, id.UserID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return "", ErrNoBillingIdentity
		}
		return "", fmt.Errorf("%w: %v", ErrResolutionUnavailable, err)
	}
	if !rec.HasBillingIdentity() {
		return "", ErrNoBillingIdentity
	}

	returnURL := s.resolveOrigin(s.rules.Load(), originHint) + "/account"
	sessionURL, err := s.provider.CreatePortalSession(ctx, rec.BillingCustomerID, returnURL)
	if err != nil {
		return "", &ProviderError{Op: "create portal session", Err: err}
	}
	return sessionURL, nil
}

// CreateCheckoutSession creates a provider-hosted checkout session for a
// paid tier. The billing customer is created lazily on first checkout and
// persisted before the session call, so a session failure can be retried
// by the user without duplicating customers.
func (s *BillingService) CreateCheckoutSession(ctx context.Context, id Identity, target tier.ID, originHint string) (string, error) {
	rules := s.rules.Load()
	priceID, ok := rules.PriceIDs[target]
	if !ok || priceID == "" {
		if _, err := rules.Catalog.Get(target); err != nil {
			return "", fmt.Errorf("%w: %q", ErrUnknownTier, target)
		}
		return "", fmt.Errorf("%w: tier %q has no checkout price", ErrUnknownTier, target)
	}

	customerID := ""
	rec, err := s.subs.GetByUser(ctx, id.UserID)
	switch {
	case err == nil:
		customerID = rec.BillingCustomerID
	case errors.Is(err, ports.ErrNotFound):
		// First billing interaction; record is created below.
	default:
		return "", fmt.Errorf("%w: %v", ErrResolutionUnavailable, err)
	}

	if customerID == "" {
		customerID, err = s.provider.CreateCustomer(ctx, id.Email, id.UserID)
		if err != nil {
			return "", &ProviderError{Op: "create customer", Err: err}
		}
		if err := s.subs.SetBillingCustomer(ctx, id.UserID, customerID); err != nil {
			return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		s.logger.Info().Str("user_id", id.UserID).Msg("billing customer created")
	}

	origin := s.resolveOrigin(rules, originHint)
	successURL := origin + "/account?checkout=success"
	cancelURL := origin + "/pricing"

	sessionURL, err := s.provider.CreateCheckoutSession(ctx, customerID, id.UserID, priceID, successURL, cancelURL)
	if err != nil {
		return "", &ProviderError{Op: "create checkout session", Err: err}
	}
	return sessionURL, nil
}
