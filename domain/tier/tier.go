// Package tier provides subscription tier value types and the tier catalog.
// Tiers are immutable, defined in code/config, and never persisted per-user.
package tier

import (
	"errors"
	"fmt"
)

// Unlimited is the sentinel limit for resources without a quota.
const Unlimited int64 = -1

// ID identifies a subscription tier. The set of valid IDs is closed;
// anything else is a data anomaly handled by falling back to free.
type ID string

const (
	Free    ID = "free"
	Pro     ID = "pro"
	Premium ID = "premium"
)

// ErrUnknownTier is returned when a tier ID is not in the catalog.
// Callers must treat this as a recoverable fallback to the free tier,
// not a crash.
var ErrUnknownTier = errors.New("unknown tier")

// Resource identifies a rate-limited resource kind (e.g. "ai_move").
type Resource string

// Limits maps resource kinds to quotas per period. A missing resource
// means unlimited; an explicit Unlimited value means the count is still
// recorded but never gated.
type Limits map[Resource]int64

// LimitFor returns the quota for a resource. Resources not listed are
// unlimited.
func (l Limits) LimitFor(r Resource) int64 {
	limit, ok := l[r]
	if !ok {
		return Unlimited
	}
	return limit
}

// Tier is an immutable subscription level with its quota set.
type Tier struct {
	ID     ID
	Name   string
	Limits Limits
}

// Catalog is the static mapping of tier IDs to quota limits.
type Catalog struct {
	tiers map[ID]Tier
}

// NewCatalog builds a catalog from a set of tiers. The free tier must be
// present since it is the universal fallback.
func NewCatalog(tiers []Tier) (*Catalog, error) {
	m := make(map[ID]Tier, len(tiers))
	for _, t := range tiers {
		if t.ID == "" {
			return nil, errors.New("tier with empty id")
		}
		if _, dup := m[t.ID]; dup {
			return nil, fmt.Errorf("duplicate tier %q", t.ID)
		}
		m[t.ID] = t
	}
	if _, ok := m[Free]; !ok {
		return nil, errors.New("catalog must define the free tier")
	}
	return &Catalog{tiers: m}, nil
}

// Get returns the tier for an ID.
func (c *Catalog) Get(id ID) (Tier, error) {
	t, ok := c.tiers[id]
	if !ok {
		return Tier{}, fmt.Errorf("%w: %q", ErrUnknownTier, id)
	}
	return t, nil
}

// LimitsFor returns the resource limits for a tier ID.
func (c *Catalog) LimitsFor(id ID) (Limits, error) {
	t, err := c.Get(id)
	if err != nil {
		return nil, err
	}
	return t.Limits, nil
}

// FreeTier returns the fallback tier. The catalog constructor guarantees
// it exists.
func (c *Catalog) FreeTier() Tier {
	return c.tiers[Free]
}

// IDs returns all tier IDs in the catalog.
func (c *Catalog) IDs() []ID {
	ids := make([]ID, 0, len(c.tiers))
	for id := range c.tiers {
		ids = append(ids, id)
	}
	return ids
}

// DefaultCatalog returns the built-in catalog used when config does not
// override tiers.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog([]Tier{
		{
			ID:   Free,
			Name: "Free",
			Limits: Limits{
				"ai_move":     30,
				"game_import": 5,
			},
		},
		{
			ID:   Pro,
			Name: "Pro",
			Limits: Limits{
				"ai_move":     1000,
				"game_import": 100,
			},
		},
		{
			ID:   Premium,
			Name: "Premium",
			Limits: Limits{
				"ai_move":     Unlimited,
				"game_import": Unlimited,
			},
		},
	})
	if err != nil {
		// Static data; cannot fail.
		panic(err)
	}
	return c
}
