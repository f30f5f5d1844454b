// Package subscription provides subscription record value types and the
// pure tier resolution rules.
package subscription

import (
	"time"

	"github.com/artpar/tollgate/domain/tier"
)

// Status represents subscription state. The set is closed; unrecognized
// values coming off the wire are mapped to StatusNone by ParseStatus so
// they are a detectable anomaly rather than a silent pass-through.
type Status string

const (
	StatusNone     Status = "none"
	StatusTrialing Status = "trialing"
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
)

// ParseStatus maps a stored string to a Status. Unknown values resolve to
// StatusNone and ok=false.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusNone, StatusTrialing, StatusActive, StatusPastDue, StatusCanceled:
		return Status(s), true
	}
	return StatusNone, false
}

// Record is the per-user subscription row. At most one row per user.
// Mutated only by the billing webhook path; the read paths never write
// tier, status, or period fields.
type Record struct {
	ID                 string
	UserID             string
	BillingCustomerID  string // empty until first checkout
	TierID             tier.ID
	Status             Status
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// HasBillingIdentity reports whether the record is linked to a billing
// provider customer.
func (r Record) HasBillingIdentity() bool {
	return r.BillingCustomerID != ""
}

// EffectiveTier is the result of resolving a user's subscription against
// the catalog. Derived, never persisted.
type EffectiveTier struct {
	Tier              tier.Tier
	BillingCustomerID string
	// PeriodStart/PeriodEnd are the billing period bounds when the tier
	// came from an entitled subscription; zero otherwise (callers fall
	// back to calendar periods).
	PeriodStart time.Time
	PeriodEnd   time.Time
	// Degraded is set when a stored record existed but no longer grants
	// its tier (expired, canceled, past due, or unknown tier id).
	Degraded bool
}

// Entitled reports whether the record grants its tier at the given time.
// Grace extends the period end before forced downgrade; the default
// policy is zero grace.
func (r Record) Entitled(now time.Time, grace time.Duration) bool {
	switch r.Status {
	case StatusActive, StatusTrialing:
	default:
		return false
	}
	if r.CurrentPeriodEnd.IsZero() {
		// Active with no observed period end: trust the status. The
		// webhook writer always sets period bounds, so this only happens
		// for rows seeded out of band.
		return true
	}
	return now.Before(r.CurrentPeriodEnd.Add(grace))
}

// Resolve applies the fallback rules to a record. The found flag mirrors
// the store: false means no row exists for the user.
//
// Rules: no record resolves to free with no billing identity; an entitled
// record resolves to its stored tier; anything else degrades to free while
// keeping the billing identity so the user can still reach the billing
// portal. An unknown stored tier id also degrades to free; the caller is
// expected to log that anomaly.
func Resolve(rec Record, found bool, catalog *tier.Catalog, now time.Time, grace time.Duration) (EffectiveTier, error) {
	if !found {
		return EffectiveTier{Tier: catalog.FreeTier()}, nil
	}

	if !rec.Entitled(now, grace) {
		return EffectiveTier{
			Tier:              catalog.FreeTier(),
			BillingCustomerID: rec.BillingCustomerID,
			Degraded:          true,
		}, nil
	}

	t, err := catalog.Get(rec.TierID)
	if err != nil {
		// Stored tier not in the catalog: degrade to free rather than
		// fail the request, and surface the anomaly to the caller.
		return EffectiveTier{
			Tier:              catalog.FreeTier(),
			BillingCustomerID: rec.BillingCustomerID,
			Degraded:          true,
		}, err
	}

	return EffectiveTier{
		Tier:              t,
		BillingCustomerID: rec.BillingCustomerID,
		PeriodStart:       rec.CurrentPeriodStart,
		PeriodEnd:         rec.CurrentPeriodEnd,
	}, nil
}
