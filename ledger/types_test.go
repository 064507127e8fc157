package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BREAKDOWN ARITHMETIC
// =============================================================================

func TestBreakdownAlignment(t *testing.T) {
	a := NewBreakdown(10, 5)
	b := NewBreakdown(1, 2, 3)

	sum := a.Add(b)
	if got, want := sum, NewBreakdown(11, 7, 3); !got.Equal(want) {
		t.Errorf("Add = %v, want %v", got.Floats(), want.Floats())
	}

	max := a.Max(b)
	if got, want := max, NewBreakdown(10, 5, 3); !got.Equal(want) {
		t.Errorf("Max = %v, want %v", got.Floats(), want.Floats())
	}

	min := a.Min(b)
	if got, want := min, NewBreakdown(1, 2, 0); !got.Equal(want) {
		t.Errorf("Min = %v, want %v", got.Floats(), want.Floats())
	}
}

func TestBreakdownClampZero(t *testing.T) {
	b := NewBreakdown(5, -3, 0)
	if got, want := b.ClampZero(), NewBreakdown(5, 0, 0); !got.Equal(want) {
		t.Errorf("ClampZero = %v, want %v", got.Floats(), want.Floats())
	}
}

func TestBreakdownSum(t *testing.T) {
	if got := NewBreakdown(1.5, 2.5, 6).Sum(); !got.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Sum = %s, want 10", got)
	}
	if got := (Breakdown{}).Sum(); !got.IsZero() {
		t.Errorf("empty Sum = %s, want 0", got)
	}
}

// =============================================================================
// FORGIVING COERCION
// =============================================================================

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"float", 12.5, 12.5},
		{"int", 7, 7},
		{"numeric string", "3.25", 3.25},
		{"padded string", "  4 ", 4},
		{"garbage string", "abc", 0},
		{"empty string", "", 0},
		{"nil", nil, 0},
		{"bool true", true, 1},
		{"unsupported type", struct{}{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := ParseQuantity(tt.in).Float64()
			if got != tt.want {
				t.Errorf("ParseQuantity(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

// =============================================================================
// ACTIVITY NORMALIZATION
// =============================================================================

func TestActivityNormalize(t *testing.T) {
	// Breakdown present: quantity is recomputed from it.
	act := Activity{QtyBreakdown: NewBreakdown(3, 4), Quantity: decimal.NewFromInt(99)}
	act.Normalize()
	if !act.Quantity.Equal(decimal.NewFromInt(7)) {
		t.Errorf("Quantity = %s, want 7", act.Quantity)
	}

	// Breakdown absent: synthesized as a single slot.
	legacy := Activity{Quantity: decimal.NewFromInt(12)}
	legacy.Normalize()
	if !legacy.QtyBreakdown.Equal(NewBreakdown(12)) {
		t.Errorf("QtyBreakdown = %v, want [12]", legacy.QtyBreakdown.Floats())
	}
}
