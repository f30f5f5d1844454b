package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/artpar/tollgate/domain/subscription"
	"github.com/artpar/tollgate/domain/tier"
	"github.com/artpar/tollgate/domain/usage"
	"github.com/artpar/tollgate/ports"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// EntitlementService answers "may this user consume resource R now, and
// what remains in the current period". It owns no storage; the store is
// the only synchronization point across concurrent requests.
type EntitlementService struct {
	subs   ports.SubscriptionStore
	ledger ports.UsageStore
	clock  ports.Clock
	logger zerolog.Logger

	// Catalog and grace are hot-reloadable; readers load one consistent
	// pair per request.
	policy atomic.Pointer[EntitlementPolicy]
}

// EntitlementPolicy is the reloadable slice of entitlement configuration.
type EntitlementPolicy struct {
	Catalog *tier.Catalog
	Grace   time.Duration
}

// EntitlementDeps contains dependencies for the entitlement service.
type EntitlementDeps struct {
	Subscriptions ports.SubscriptionStore
	Usage         ports.UsageStore
	Catalog       *tier.Catalog
	Clock         ports.Clock
	// Grace extends a subscription's period end before forced downgrade.
	// Default zero: degrade immediately at period end.
	Grace  time.Duration
	Logger zerolog.Logger
}

// NewEntitlementService creates a new entitlement service.
func NewEntitlementService(deps EntitlementDeps) *EntitlementService {
	s := &EntitlementService{
		subs:   deps.Subscriptions,
		ledger: deps.Usage,
		clock:  deps.Clock,
		logger: deps.Logger,
	}
	s.policy.Store(&EntitlementPolicy{Catalog: deps.Catalog, Grace: deps.Grace})
	return s
}

// Reload swaps the catalog and grace window without a restart. In-flight
// requests keep the pair they loaded; new requests see the new one.
func (s *EntitlementService) Reload(catalog *tier.Catalog, grace time.Duration) {
	s.policy.Store(&EntitlementPolicy{Catalog: catalog, Grace: grace})
	s.logger.Info().Dur("grace", grace).Msg("entitlement policy reloaded")
}

// Resolve determines the user's current effective tier. Store failures
// surface as ErrResolutionUnavailable; a missing record is not a failure,
// it resolves to the free tier.
func (s *EntitlementService) Resolve(ctx context.Context, userID string) (subscription.EffectiveTier, error) {
	rec, err := s.subs.GetByUser(ctx, userID)
	found := true
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			return subscription.EffectiveTier{}, fmt.Errorf("%w: %v", ErrResolutionUnavailable, err)
		}
		found = false
	}

	p := s.policy.Load()
	et, anomaly := subscription.Resolve(rec, found, p.Catalog, s.clock.Now(), p.Grace)
	if anomaly != nil {
		// Degraded to free already; the anomaly is logged, never fatal.
		s.logger.Warn().
			Str("user_id", userID).
			Str("tier_id", string(rec.TierID)).
			Err(anomaly).
			Msg("subscription references unknown tier, degrading to free")
	}
	return et, nil
}

// Check gates one consumption of a resource: resolves the tier, then runs
// the atomic conditional increment against the current period's counter.
func (s *EntitlementService) Check(ctx context.Context, userID string, resource tier.Resource) (usage.Decision, error) {
	et, err := s.Resolve(ctx, userID)
	if err != nil {
		return usage.Decision{}, err
	}

	limit := et.Tier.Limits.LimitFor(resource)
	key := usage.KeyFor(et, s.clock.Now())

	res, err := s.ledger.IncrementIfAllowed(ctx, userID, resource, key, limit)
	if err != nil {
		return usage.Decision{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return usage.Decide(et.Tier.ID, resource, limit, res.NewCount, res.Accepted), nil
}

// Peek reports the decision state for a resource without consuming it.
func (s *EntitlementService) Peek(ctx context.Context, userID string, resource tier.Resource) (usage.Decision, error) {
	et, err := s.Resolve(ctx, userID)
	if err != nil {
		return usage.Decision{}, err
	}

	limit := et.Tier.Limits.LimitFor(resource)
	key := usage.KeyFor(et, s.clock.Now())

	count, err := s.ledger.Peek(ctx, userID, resource, key)
	if err != nil {
		return usage.Decision{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	allowed := limit == tier.Unlimited || count < limit
	return usage.Decide(et.Tier.ID, resource, limit, count, allowed), nil
}

// Snapshot composes the usage report for one user. Tier and counters are
// independent reads issued concurrently and joined; a failure in either
// fails the whole snapshot, since usage numbers are meaningless without
// the tier that interprets them.
func (s *EntitlementService) Snapshot(ctx context.Context, userID string) (usage.Snapshot, error) {
	var (
		et       subscription.EffectiveTier
		counters []usage.Counter
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		et, err = s.Resolve(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		counters, err = s.ledger.ListByUser(gctx, userID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return usage.Snapshot{}, err
	}

	key := usage.KeyFor(et, s.clock.Now())
	return usage.BuildSnapshot(et, counters, key), nil
}
