package assembly

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/warp/production-ledger/ledger"
)

func TestResolveOrderQty(t *testing.T) {
	tests := []struct {
		name       string
		asm        Assembly
		wantQty    float64
		wantSource string
	}{
		{
			name:       "breakdown wins over flat quantity",
			asm:        Assembly{OrderedBreakdown: ledger.NewBreakdown(10, 5), Quantity: decimal.NewFromInt(99)},
			wantQty:    15,
			wantSource: SourceOrderedBreakdown,
		},
		{
			name:       "zero breakdown still wins",
			asm:        Assembly{OrderedBreakdown: ledger.NewBreakdown(0, 0), Quantity: decimal.NewFromInt(99)},
			wantQty:    0,
			wantSource: SourceOrderedBreakdown,
		},
		{
			name:       "flat quantity when breakdown absent",
			asm:        Assembly{Quantity: decimal.NewFromInt(40)},
			wantQty:    40,
			wantSource: SourceQuantity,
		},
		{
			name:       "nothing set",
			asm:        Assembly{},
			wantQty:    0,
			wantSource: SourceFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveOrderQty(&tt.asm)
			if got.Source != tt.wantSource {
				t.Errorf("source = %q, want %q", got.Source, tt.wantSource)
			}
			if !got.Qty.Equal(decimal.NewFromFloat(tt.wantQty)) {
				t.Errorf("qty = %s, want %v", got.Qty, tt.wantQty)
			}
		})
	}
}

func TestEffectiveOrdered(t *testing.T) {
	asm := &Assembly{OrderedBreakdown: ledger.NewBreakdown(10, 5)}

	got := EffectiveOrdered(asm, ledger.NewBreakdown(3, 8))
	if !got.Equal(ledger.NewBreakdown(7, 0)) {
		t.Errorf("effective = %v, want [7 0]", got.Floats())
	}
}

func TestEffectiveOrderedSynthesizesFromFlatQuantity(t *testing.T) {
	asm := &Assembly{Quantity: decimal.NewFromInt(12)}

	got := EffectiveOrdered(asm, nil)
	if !got.Equal(ledger.NewBreakdown(12)) {
		t.Errorf("effective = %v, want [12]", got.Floats())
	}
}
