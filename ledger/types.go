/*
Package ledger provides the core stage quantity engine.

PURPOSE:
  This package contains the types and algorithms that track how many units
  of an assembly have passed each production stage, per size/variant. All
  physical-stock correctness flows through here: a stage can never report
  more usable output than its upstream stage produced minus what downstream
  stages have already consumed.

KEY CONCEPTS IN THIS FILE (types.go):
  - Breakdown: A per-variant quantity array (one slot per size/SKU variant)
  - Activity: An immutable ledger entry recording stage output
  - Stage/Kind/Action: The activity classification axes
  - ParseQuantity: Forgiving numeric coercion for legacy data

DESIGN PRINCIPLES:
  1. Immutability: Activities are never modified; corrections are new activities
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Alignment: All per-variant arithmetic zero-pads to the longest array
  4. Forgiveness: Malformed numeric input coerces to zero, never errors

USAGE:
  b := ledger.NewBreakdown(10, 5, 0)
  act := ledger.Activity{
      AssemblyID:   "asm-123",
      Stage:        ledger.StageCut,
      Kind:         ledger.KindNormal,
      Action:       ledger.ActionRecorded,
      QtyBreakdown: b,
  }

SEE ALSO:
  - stats.go: Stage aggregation from the activity stream
  - gate.go: External (vendor) gating
  - downstream.go: Downstream usage and finish caps
*/
package ledger

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BREAKDOWN - Per-variant quantity array
// =============================================================================

// Breakdown is a fixed-position quantity array where each index represents
// one garment size or SKU variant. Arrays of differing lengths are aligned
// by treating missing trailing elements as zero.
type Breakdown []decimal.Decimal

// NewBreakdown builds a Breakdown from float values.
func NewBreakdown(values ...float64) Breakdown {
	b := make(Breakdown, len(values))
	for i, v := range values {
		b[i] = decimal.NewFromFloat(v)
	}
	return b
}

// SingleSlot synthesizes a one-element Breakdown from a flat quantity.
// Used for legacy activities that carry a quantity but no breakdown.
func SingleSlot(q decimal.Decimal) Breakdown {
	return Breakdown{q}
}

// At returns the element at index i, zero if out of range.
func (b Breakdown) At(i int) decimal.Decimal {
	if i >= 0 && i < len(b) {
		return b[i]
	}
	return decimal.Zero
}

// Len returns the number of variant slots.
func (b Breakdown) Len() int { return len(b) }

// Clone returns a copy that shares no backing storage.
func (b Breakdown) Clone() Breakdown {
	out := make(Breakdown, len(b))
	copy(out, b)
	return out
}

// Sum returns the total quantity across all variant slots.
func (b Breakdown) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, v := range b {
		total = total.Add(v)
	}
	return total
}

// IsZero reports whether every slot is zero (or the breakdown is empty).
func (b Breakdown) IsZero() bool {
	for _, v := range b {
		if !v.IsZero() {
			return false
		}
	}
	return true
}

// AnyPositive reports whether any slot is strictly positive.
func (b Breakdown) AnyPositive() bool {
	for _, v := range b {
		if v.IsPositive() {
			return true
		}
	}
	return false
}

// ValidateRequested rejects a requested write breakdown that carries a
// negative variant slot or no positive quantity overall. Every writer runs
// this before any ceiling check: per-slot ceilings compare slot by slot, so
// a negative slot hidden behind a positive sum would slip past them.
func ValidateRequested(b Breakdown) error {
	for i, v := range b {
		if v.IsNegative() {
			return &NegativeQuantityError{VariantIndex: i, Requested: v}
		}
	}
	if !b.Sum().IsPositive() {
		return ErrZeroQuantity
	}
	return nil
}

func alignedLen(a, b Breakdown) int {
	if len(a) > len(b) {
		return len(a)
	}
	return len(b)
}

// Add returns the element-wise sum, zero-padding the shorter array.
func (b Breakdown) Add(o Breakdown) Breakdown {
	n := alignedLen(b, o)
	out := make(Breakdown, n)
	for i := 0; i < n; i++ {
		out[i] = b.At(i).Add(o.At(i))
	}
	return out
}

// Sub returns the element-wise difference, zero-padding the shorter array.
func (b Breakdown) Sub(o Breakdown) Breakdown {
	n := alignedLen(b, o)
	out := make(Breakdown, n)
	for i := 0; i < n; i++ {
		out[i] = b.At(i).Sub(o.At(i))
	}
	return out
}

// Max returns the element-wise maximum, zero-padding the shorter array.
func (b Breakdown) Max(o Breakdown) Breakdown {
	n := alignedLen(b, o)
	out := make(Breakdown, n)
	for i := 0; i < n; i++ {
		x, y := b.At(i), o.At(i)
		if y.GreaterThan(x) {
			out[i] = y
		} else {
			out[i] = x
		}
	}
	return out
}

// Min returns the element-wise minimum, zero-padding the shorter array.
// A slot missing on either side counts as zero.
func (b Breakdown) Min(o Breakdown) Breakdown {
	n := alignedLen(b, o)
	out := make(Breakdown, n)
	for i := 0; i < n; i++ {
		x, y := b.At(i), o.At(i)
		if y.LessThan(x) {
			out[i] = y
		} else {
			out[i] = x
		}
	}
	return out
}

// ClampZero returns a copy with every negative slot raised to zero.
func (b Breakdown) ClampZero() Breakdown {
	out := make(Breakdown, len(b))
	for i, v := range b {
		if v.IsNegative() {
			out[i] = decimal.Zero
		} else {
			out[i] = v
		}
	}
	return out
}

// Equal reports element-wise equality under zero-padding.
func (b Breakdown) Equal(o Breakdown) bool {
	n := alignedLen(b, o)
	for i := 0; i < n; i++ {
		if !b.At(i).Equal(o.At(i)) {
			return false
		}
	}
	return true
}

// Floats renders the breakdown as float64s for DTO/JSON use.
func (b Breakdown) Floats() []float64 {
	out := make([]float64, len(b))
	for i, v := range b {
		out[i], _ = v.Float64()
	}
	return out
}

// =============================================================================
// FORGIVING NUMERIC COERCION
// =============================================================================

// ParseQuantity coerces an arbitrary value into a quantity, defaulting to
// zero for anything unparseable. It never fails: legacy rows carry strings,
// nulls and partial numbers, and a zero default is always safe because every
// validation ceiling is computed after coercion.
func ParseQuantity(v any) decimal.Decimal {
	switch x := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return x
	case float64:
		return decimal.NewFromFloat(x)
	case float32:
		return decimal.NewFromFloat32(x)
	case int:
		return decimal.NewFromInt(int64(x))
	case int64:
		return decimal.NewFromInt(x)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero
		}
		return d
	case bool:
		if x {
			return decimal.NewFromInt(1)
		}
		return decimal.Zero
	default:
		return decimal.Zero
	}
}

// ParseBreakdown coerces a slice of arbitrary values into a Breakdown,
// slot by slot, with the same zero-default contract as ParseQuantity.
func ParseBreakdown(values []any) Breakdown {
	out := make(Breakdown, len(values))
	for i, v := range values {
		out[i] = ParseQuantity(v)
	}
	return out
}

// FormatQuantity renders a quantity without trailing zeros.
func FormatQuantity(d decimal.Decimal) string {
	s := d.String()
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

// =============================================================================
// ACTIVITY - Atomic record of stage output
// =============================================================================

// Stage is a production stage an assembly moves through.
type Stage string

const (
	StageCut    Stage = "cut"
	StageSew    Stage = "sew"
	StageFinish Stage = "finish"
	StagePack   Stage = "pack"
	StageRetain Stage = "retain"
	StageCancel Stage = "cancel"
)

// Stages lists the recordable stages in pipeline order.
func Stages() []Stage {
	return []Stage{StageCut, StageSew, StageFinish, StagePack, StageRetain, StageCancel}
}

// ValidStage reports whether s is a known stage.
func ValidStage(s Stage) bool {
	switch s {
	case StageCut, StageSew, StageFinish, StagePack, StageRetain, StageCancel:
		return true
	}
	return false
}

// Kind classifies activity output quality.
type Kind string

const (
	KindNormal Kind = "normal"
	KindDefect Kind = "defect"
)

// Action classifies how the activity entered the ledger.
type Action string

const (
	ActionRecorded       Action = "recorded"
	ActionLossReconciled Action = "loss_reconciled"
)

// ActivityID identifies a single ledger entry.
type ActivityID string

// Activity is one immutable ledger entry. Corrections are made by appending
// new activities (reconciliation), never by editing existing rows.
type Activity struct {
	ID           ActivityID
	AssemblyID   string
	Stage        Stage
	Kind         Kind
	Action       Action
	QtyBreakdown Breakdown
	Quantity     decimal.Decimal // denormalized sum of QtyBreakdown
	ActivityDate time.Time

	// Vendor/outsourcing context, set only for externally fulfilled steps.
	ExternalStepType string
	VendorCompanyID  string

	CreatedBy string
	CreatedAt time.Time
}

// Normalize reconciles Quantity and QtyBreakdown:
// when the breakdown is present, Quantity is recomputed as its sum;
// when absent, the breakdown is synthesized as a single slot from Quantity.
func (a *Activity) Normalize() {
	if len(a.QtyBreakdown) > 0 {
		a.Quantity = a.QtyBreakdown.Sum()
		return
	}
	a.QtyBreakdown = SingleSlot(a.Quantity)
}

// EffectiveBreakdown returns the breakdown, synthesizing a single slot
// from the flat quantity for legacy rows without one.
func (a Activity) EffectiveBreakdown() Breakdown {
	if len(a.QtyBreakdown) > 0 {
		return a.QtyBreakdown
	}
	if a.Quantity.IsZero() {
		return Breakdown{}
	}
	return SingleSlot(a.Quantity)
}

// =============================================================================
// INVENTORY MOVEMENT - Transactional companion to an activity
// =============================================================================

// MovementKind classifies what a movement does to stock.
type MovementKind string

const (
	MovementConsume  MovementKind = "consume"  // material consumed by production
	MovementReceive  MovementKind = "receive"  // finished goods into a location
	MovementTransfer MovementKind = "transfer" // stock moved between locations
)

// Movement is an inventory movement written in the same transaction as the
// activity that caused it.
type Movement struct {
	ID           string
	AssemblyID   string
	ProductID    string
	Kind         MovementKind
	Quantity     decimal.Decimal
	BatchID      string // required when the product is batch tracked
	FromLocation string
	ToLocation   string
	At           time.Time
}

// =============================================================================
// SMALL HELPERS
// =============================================================================

// VariantLabel names a variant slot for error messages (1-based for humans).
func VariantLabel(i int) string {
	return "variant " + strconv.Itoa(i+1)
}
