// Package usage provides usage counter value types, period key derivation,
// and the pure parts of entitlement decisions.
package usage

import (
	"time"

	"github.com/artpar/tollgate/domain/subscription"
	"github.com/artpar/tollgate/domain/tier"
)

// PeriodKey scopes a counter row to one quota window. Rollover is implicit:
// a new period simply targets a new key, so stale writes against an old key
// can never pollute the new period's count.
type PeriodKey string

// CalendarKey returns the fallback key for users without a billing period
// (free tier, or subscriptions missing period bounds).
func CalendarKey(now time.Time) PeriodKey {
	return PeriodKey("cal:" + now.UTC().Format("2006-01"))
}

// BillingKey returns the key anchored to a subscription's current period.
func BillingKey(periodStart time.Time) PeriodKey {
	return PeriodKey("sub:" + periodStart.UTC().Format("2006-01-02"))
}

// KeyFor derives the period key for an effective tier: the billing period
// when one is present, the calendar month otherwise.
func KeyFor(et subscription.EffectiveTier, now time.Time) PeriodKey {
	if !et.PeriodStart.IsZero() {
		return BillingKey(et.PeriodStart)
	}
	return CalendarKey(now)
}

// Counter is one durable usage row. Count only increases within a period.
type Counter struct {
	UserID    string
	Resource  tier.Resource
	PeriodKey PeriodKey
	Count     int64
	UpdatedAt time.Time
}

// IncrementResult is the outcome of an atomic conditional increment.
type IncrementResult struct {
	Accepted bool
	NewCount int64
}

// Decision is the computed permission for one user/resource pair.
type Decision struct {
	Allowed   bool
	Tier      tier.ID
	Resource  tier.Resource
	Used      int64
	Limit     int64 // tier.Unlimited when not gated
	Remaining int64 // tier.Unlimited when not gated
}

// Remaining clamps limit-used to zero, or returns the unlimited sentinel.
// This is a pure function.
func Remaining(limit, used int64) int64 {
	if limit == tier.Unlimited {
		return tier.Unlimited
	}
	if used >= limit {
		return 0
	}
	return limit - used
}

// Decide builds a Decision from an increment (or peek) outcome.
// This is a pure function.
func Decide(tierID tier.ID, resource tier.Resource, limit, used int64, allowed bool) Decision {
	return Decision{
		Allowed:   allowed,
		Tier:      tierID,
		Resource:  resource,
		Used:      used,
		Limit:     limit,
		Remaining: Remaining(limit, used),
	}
}

// Snapshot is the cache-friendly usage report for one user: counts and
// limits per resource, interpreted under one tier.
type Snapshot struct {
	Tier  tier.ID
	Used  map[tier.Resource]int64
	Limit map[tier.Resource]int64
	// Degraded mirrors the resolved tier: a stored subscription exists
	// but no longer grants its tier.
	Degraded bool
}

// BuildSnapshot joins independently fetched counters with the effective
// tier. Only counters for the current period key contribute; every
// resource the tier limits appears even when unused. This is a pure
// function.
func BuildSnapshot(et subscription.EffectiveTier, counters []Counter, key PeriodKey) Snapshot {
	snap := Snapshot{
		Tier:     et.Tier.ID,
		Used:     make(map[tier.Resource]int64),
		Limit:    make(map[tier.Resource]int64),
		Degraded: et.Degraded,
	}

	for r, limit := range et.Tier.Limits {
		snap.Used[r] = 0
		snap.Limit[r] = limit
	}

	for _, c := range counters {
		if c.PeriodKey != key {
			continue
		}
		snap.Used[c.Resource] = c.Count
		if _, ok := snap.Limit[c.Resource]; !ok {
			// Recorded but unlisted resources are unlimited.
			snap.Limit[c.Resource] = tier.Unlimited
		}
	}

	return snap
}
