/*
Package assembly implements assembly-level production tracking on top of the
ledger engine: order quantity resolution, operational status derivation, and
the transactional activity writers (cut, pack, retain, reconcile).

An Assembly is one produced item/order line moving through production stages.
Its ordered quantity is derived preferentially from the per-variant ordered
breakdown; the flat quantity field is a legacy fallback only.
*/
package assembly

import (
	"github.com/shopspring/decimal"
	"github.com/warp/production-ledger/ledger"
)

// =============================================================================
// ASSEMBLY
// =============================================================================

// Type drives where retained units go.
type Type string

const (
	TypeProduction Type = "production" // retain to stock
	TypeSample     Type = "sample"     // retain to the sample room
)

// RetainLocation returns the destination location for retained units.
func (t Type) RetainLocation() string {
	if t == TypeSample {
		return "sample-room"
	}
	return "stock"
}

// Status is the persisted lifecycle status of an assembly.
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusFullyCut Status = "FULLY_CUT"
	StatusClosed   Status = "CLOSED"
)

// Assembly is a unit of production work.
type Assembly struct {
	ID               string
	ProductID        string
	Name             string
	OrderedBreakdown ledger.Breakdown // per-variant ordered quantities
	Quantity         decimal.Decimal  // legacy flat fallback
	AssemblyType     Type
	Status           Status

	// Coverage tolerance overrides; nil means no override for that field.
	TolerancePct *decimal.Decimal
	ToleranceAbs *decimal.Decimal
}

// =============================================================================
// ORDER QUANTITY RESOLUTION
// =============================================================================

// OrderQtySource tags where the resolved order quantity came from.
const (
	SourceOrderedBreakdown = "qtyOrderedBreakdown"
	SourceQuantity         = "quantity"
	SourceFallback         = "fallback"
)

// OrderQty is the resolved order quantity of an assembly with its provenance.
type OrderQty struct {
	Qty        decimal.Decimal
	Source     string
	Candidates ledger.Breakdown // the breakdown considered, if any
}

// ResolveOrderQty derives the order quantity for an assembly.
//
// A present ordered breakdown is trusted even when it sums to zero - an
// explicit empty order is a statement, not missing data. Only an absent or
// empty breakdown falls back to the legacy flat quantity.
func ResolveOrderQty(a *Assembly) OrderQty {
	if len(a.OrderedBreakdown) > 0 {
		return OrderQty{
			Qty:        a.OrderedBreakdown.Sum(),
			Source:     SourceOrderedBreakdown,
			Candidates: a.OrderedBreakdown.Clone(),
		}
	}
	if !a.Quantity.IsZero() {
		return OrderQty{Qty: a.Quantity, Source: SourceQuantity}
	}
	return OrderQty{Qty: decimal.Zero, Source: SourceFallback}
}

// EffectiveOrdered returns the per-variant ordered breakdown with canceled
// quantity subtracted, clamped at zero. Assemblies with only a flat quantity
// get a synthesized single-slot breakdown.
func EffectiveOrdered(a *Assembly, canceled ledger.Breakdown) ledger.Breakdown {
	ordered := a.OrderedBreakdown
	if len(ordered) == 0 && !a.Quantity.IsZero() {
		ordered = ledger.SingleSlot(a.Quantity)
	}
	return ordered.Sub(canceled).ClampZero()
}
