/*
Package supply tracks commitments of purchased material against assembly
demand: purchase-order lines, reservations against them, and the policies
that keep reservations honest (trim to expected capacity, settle on
receipt).

INVARIANT:
  Active reservations against one PO line must not, in aggregate, exceed
  max(qtyExpected - qtyReceived, 0). The trimmer enforces this by reducing
  the NEWEST reservations first - the oldest commitments are protected.
*/
package supply

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PURCHASE ORDER LINE
// =============================================================================

// PurchaseOrderLine is the supply side of a reservation.
type PurchaseOrderLine struct {
	ID              string
	ProductID       string
	Quantity        decimal.Decimal // expected quantity
	QuantityOrdered decimal.Decimal // legacy field, used when Quantity is zero
	QtyReceived     decimal.Decimal
}

// ExpectedQty returns the line's expected quantity: the quantity field,
// else the legacy quantityOrdered.
func (l PurchaseOrderLine) ExpectedQty() decimal.Decimal {
	if !l.Quantity.IsZero() {
		return l.Quantity
	}
	return l.QuantityOrdered
}

// MaxReservable returns max(expected - received, 0): what can still be
// committed against the line.
func (l PurchaseOrderLine) MaxReservable() decimal.Decimal {
	remaining := l.ExpectedQty().Sub(l.QtyReceived)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// =============================================================================
// RESERVATION
// =============================================================================

// Reservation commits part of a PO line or inventory batch to one
// (assembly, product) demand.
type Reservation struct {
	ID                  string
	PurchaseOrderLineID string
	BatchID             string
	AssemblyID          string
	ProductID           string
	QtyReserved         decimal.Decimal
	CreatedAt           time.Time
	SettledAt           *time.Time // nil while active
}

// Active reports whether the reservation still counts against supply.
func (r Reservation) Active() bool { return r.SettledAt == nil }

// =============================================================================
// RESULTS
// =============================================================================

// TrimStrategyNewestFirst is the only trim strategy: newest reservations are
// reduced first so the oldest commitments survive.
const TrimStrategyNewestFirst = "newest-first"

// TrimResult is the audit summary of one trim pass over a PO line.
type TrimResult struct {
	PurchaseOrderLineID string
	ReservedBefore      decimal.Decimal
	ReservedAfter       decimal.Decimal
	ExpectedQty         decimal.Decimal
	QtyReceived         decimal.Decimal
	Trimmed             decimal.Decimal
	Strategy            string
}

// SettleResult summarizes a settlement pass for an (assembly, product) pair.
type SettleResult struct {
	AssemblyID     string
	ProductID      string
	Settled        int
	ReservedBefore decimal.Decimal
	SettledAt      time.Time
}
