package material

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/production-ledger/assembly"
)

func decPtr(f float64) *decimal.Decimal {
	d := decimal.NewFromFloat(f)
	return &d
}

func TestResolveTolerance(t *testing.T) {
	defaults := FallbackDefaults()

	tests := []struct {
		name        string
		asm         *assembly.Assembly
		productType ProductType
		wantPct     float64
		wantAbs     float64
		wantSource  string
	}{
		{
			name:        "type band",
			asm:         &assembly.Assembly{},
			productType: TypeFabric,
			wantPct:     0.03,
			wantAbs:     5,
			wantSource:  ToleranceSourceType,
		},
		{
			name:        "global default for unknown type",
			asm:         &assembly.Assembly{},
			productType: ProductType("OTHER"),
			wantPct:     0.01,
			wantAbs:     0,
			wantSource:  ToleranceSourceDefault,
		},
		{
			name:        "full assembly override",
			asm:         &assembly.Assembly{TolerancePct: decPtr(0.1), ToleranceAbs: decPtr(2)},
			productType: TypeFabric,
			wantPct:     0.1,
			wantAbs:     2,
			wantSource:  ToleranceSourceAssembly,
		},
		{
			name:        "partial override keeps type band for missing field",
			asm:         &assembly.Assembly{ToleranceAbs: decPtr(50)},
			productType: TypeTrim,
			wantPct:     0.02,
			wantAbs:     50,
			wantSource:  ToleranceSourceAssembly,
		},
		{
			name:        "nil assembly",
			productType: TypePackaging,
			wantPct:     0.02,
			wantAbs:     25,
			wantSource:  ToleranceSourceType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveTolerance(tt.asm, tt.productType, defaults)
			if got.Source != tt.wantSource {
				t.Errorf("source = %q, want %q", got.Source, tt.wantSource)
			}
			if !got.Pct.Equal(decimal.NewFromFloat(tt.wantPct)) {
				t.Errorf("pct = %s, want %v", got.Pct, tt.wantPct)
			}
			if !got.Abs.Equal(decimal.NewFromFloat(tt.wantAbs)) {
				t.Errorf("abs = %s, want %v", got.Abs, tt.wantAbs)
			}
		})
	}
}

func TestComputeToleranceQty(t *testing.T) {
	tests := []struct {
		name     string
		tol      Tolerance
		required float64
		want     float64
	}{
		{"proportional wins", Tolerance{Pct: decimal.NewFromFloat(0.03), Abs: decimal.NewFromInt(5)}, 1000, 30},
		{"absolute wins", Tolerance{Pct: decimal.NewFromFloat(0.03), Abs: decimal.NewFromInt(5)}, 100, 5},
		{"negative clamps to zero", Tolerance{Pct: decimal.Zero, Abs: decimal.NewFromInt(-3)}, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeToleranceQty(tt.tol, decimal.NewFromFloat(tt.required))
			if !got.Equal(decimal.NewFromFloat(tt.want)) {
				t.Errorf("qty = %s, want %v", got, tt.want)
			}
		})
	}
}

func TestParseDefaults(t *testing.T) {
	got := ParseDefaults(`{"default":{"pct":"0.05","abs":"1"},"FABRIC":{"pct":"0.1","abs":"0"}}`)
	if !got.Default.Pct.Equal(decimal.NewFromFloat(0.05)) {
		t.Errorf("default pct = %s, want 0.05", got.Default.Pct)
	}
	if !got.ByType[TypeFabric].Pct.Equal(decimal.NewFromFloat(0.1)) {
		t.Errorf("fabric pct = %s, want 0.1", got.ByType[TypeFabric].Pct)
	}
	// Types not named in the settings keep their hardcoded band.
	if !got.ByType[TypeTrim].Abs.Equal(decimal.NewFromInt(10)) {
		t.Errorf("trim abs = %s, want 10", got.ByType[TypeTrim].Abs)
	}
}

func TestParseDefaultsMalformed(t *testing.T) {
	for _, raw := range []string{"", "{", "[]", "{}"} {
		got := ParseDefaults(raw)
		if !got.Default.Pct.Equal(decimal.NewFromFloat(0.01)) {
			t.Errorf("ParseDefaults(%q) did not fall back to hardcoded defaults", raw)
		}
	}
}

// =============================================================================
// DEFAULTS CACHE
// =============================================================================

func TestDefaultsCacheTTL(t *testing.T) {
	fetches := 0
	cache := NewDefaultsCache(5*time.Minute, func(ctx context.Context) (string, error) {
		fetches++
		return `{"default":{"pct":"0.02","abs":"0"}}`, nil
	})
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return clock }

	ctx := context.Background()
	cache.Get(ctx)
	cache.Get(ctx)
	if fetches != 1 {
		t.Fatalf("fetches = %d, want 1 within the TTL window", fetches)
	}

	clock = clock.Add(5*time.Minute + time.Second)
	cache.Get(ctx)
	if fetches != 2 {
		t.Fatalf("fetches = %d, want 2 after the TTL lapsed", fetches)
	}

	cache.Invalidate()
	cache.Get(ctx)
	if fetches != 3 {
		t.Fatalf("fetches = %d, want 3 after invalidation", fetches)
	}
}

func TestDefaultsCacheFetchFailure(t *testing.T) {
	cache := NewDefaultsCache(time.Minute, func(ctx context.Context) (string, error) {
		return "", context.DeadlineExceeded
	})

	got := cache.Get(context.Background())
	if !got.Default.Pct.Equal(decimal.NewFromFloat(0.01)) {
		t.Error("failed fetch must serve the hardcoded fallback")
	}
}
