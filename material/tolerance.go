/*
tolerance.go - Coverage tolerance resolution

PURPOSE:
  A small uncovered quantity should not block production. Each material
  gets a forgiveness band (absolute units + percentage of required) resolved
  with precedence:

    assembly-level override > per-product-type global > global default

  The band converts to a quantity as max(abs, required*pct, 0) - the larger
  of a flat unit allowance and a proportional allowance, never negative.

CACHING:
  Defaults come from a settings row parsed from JSON. They are cached
  in-process for five minutes behind an injected cache object with an
  explicit Invalidate hook for settings writes. Serving the band stale for
  the TTL window is safe: it only widens or narrows forgiveness.

MALFORMED SETTINGS:
  Unknown or malformed JSON falls back to hardcoded defaults
  (FABRIC 3%/5, TRIM 2%/10, PACKAGING 2%/25, default 1%/0).
*/
package material

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/production-ledger/assembly"
)

// =============================================================================
// TOLERANCE BANDS
// =============================================================================

// Band is a forgiveness band: a fraction of required quantity and a flat
// unit allowance.
type Band struct {
	Pct decimal.Decimal `json:"pct"`
	Abs decimal.Decimal `json:"abs"`
}

// Defaults holds the global band plus per-product-type overrides.
type Defaults struct {
	Default Band
	ByType  map[ProductType]Band
}

// FallbackDefaults returns the hardcoded bands used when settings are
// missing or malformed.
func FallbackDefaults() Defaults {
	return Defaults{
		Default: Band{Pct: decimal.NewFromFloat(0.01), Abs: decimal.Zero},
		ByType: map[ProductType]Band{
			TypeFabric:    {Pct: decimal.NewFromFloat(0.03), Abs: decimal.NewFromInt(5)},
			TypeTrim:      {Pct: decimal.NewFromFloat(0.02), Abs: decimal.NewFromInt(10)},
			TypePackaging: {Pct: decimal.NewFromFloat(0.02), Abs: decimal.NewFromInt(25)},
		},
	}
}

// ParseDefaults parses the settings JSON
// ({"default":{"pct":..,"abs":..},"FABRIC":{...},...}), falling back to the
// hardcoded defaults on any parse failure.
func ParseDefaults(raw string) Defaults {
	if raw == "" {
		return FallbackDefaults()
	}
	var m map[string]Band
	if err := json.Unmarshal([]byte(raw), &m); err != nil || len(m) == 0 {
		return FallbackDefaults()
	}

	out := FallbackDefaults()
	for key, band := range m {
		if key == "default" {
			out.Default = band
			continue
		}
		out.ByType[ProductType(key)] = band
	}
	return out
}

// =============================================================================
// RESOLUTION
// =============================================================================

// Tolerance source tags.
const (
	ToleranceSourceAssembly = "assembly"
	ToleranceSourceType     = "type"
	ToleranceSourceDefault  = "default"
)

// Tolerance is a resolved band with its provenance.
type Tolerance struct {
	Pct    decimal.Decimal
	Abs    decimal.Decimal
	Source string
}

// ResolveTolerance resolves the forgiveness band for one (assembly, product
// type) pair. An assembly override applies when either field is set; a
// missing field falls through to the next level for that field alone.
func ResolveTolerance(a *assembly.Assembly, productType ProductType, defaults Defaults) Tolerance {
	base := defaults.Default
	source := ToleranceSourceDefault
	if band, ok := defaults.ByType[productType]; ok {
		base = band
		source = ToleranceSourceType
	}

	if a != nil && (a.TolerancePct != nil || a.ToleranceAbs != nil) {
		t := Tolerance{Pct: base.Pct, Abs: base.Abs, Source: ToleranceSourceAssembly}
		if a.TolerancePct != nil {
			t.Pct = *a.TolerancePct
		}
		if a.ToleranceAbs != nil {
			t.Abs = *a.ToleranceAbs
		}
		return t
	}

	return Tolerance{Pct: base.Pct, Abs: base.Abs, Source: source}
}

// ComputeToleranceQty converts a band into the maximum uncovered quantity
// still treated as non-blocking: max(abs, required*pct, 0).
func ComputeToleranceQty(tol Tolerance, requiredQty decimal.Decimal) decimal.Decimal {
	proportional := requiredQty.Mul(tol.Pct)
	qty := tol.Abs
	if proportional.GreaterThan(qty) {
		qty = proportional
	}
	if qty.IsNegative() {
		return decimal.Zero
	}
	return qty
}

// =============================================================================
// DEFAULTS CACHE - injected, TTL with explicit invalidation
// =============================================================================

// FetchDefaultsFunc loads the raw settings JSON from the settings store.
type FetchDefaultsFunc func(ctx context.Context) (string, error)

// DefaultsCache caches parsed tolerance defaults for a TTL window.
// Constructed once at process start and passed by reference; settings
// writes call Invalidate.
type DefaultsCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	fetch     FetchDefaultsFunc
	data      Defaults
	fetchedAt time.Time

	// now is injectable for tests; defaults to time.Now.
	now func() time.Time
}

// DefaultTTL is the settings cache window.
const DefaultTTL = 5 * time.Minute

func NewDefaultsCache(ttl time.Duration, fetch FetchDefaultsFunc) *DefaultsCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DefaultsCache{ttl: ttl, fetch: fetch, now: time.Now}
}

// Get returns the cached defaults, refreshing from the settings store when
// the TTL has lapsed. A failed fetch serves the hardcoded fallback.
func (c *DefaultsCache) Get(ctx context.Context) Defaults {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !c.fetchedAt.IsZero() && now.Sub(c.fetchedAt) < c.ttl {
		return c.data
	}

	raw := ""
	if c.fetch != nil {
		loaded, err := c.fetch(ctx)
		if err == nil {
			raw = loaded
		}
	}
	c.data = ParseDefaults(raw)
	c.fetchedAt = now
	return c.data
}

// Invalidate drops the cached defaults so the next Get refetches.
func (c *DefaultsCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchedAt = time.Time{}
}
