/*
trim.go - Reservation trimming and settlement

PURPOSE:
  Reservations are written optimistically; receipts and PO edits can leave a
  line over-committed. The trimmer restores the invariant

    sum(active reservations) <= max(expected - received, 0)

  by reducing the newest reservations first, leaving the oldest commitments
  untouched. Every trim writes an audit entry with before/after totals.

  Settlement closes out all active reservations for an (assembly, product)
  pair once goods are fully received or consumed, recording the
  pre-settlement total.
*/
package supply

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/production-ledger/ledger"
)

// =============================================================================
// STORE
// =============================================================================

// Store persists PO lines and reservations. Reservations are mutable
// commitments, not ledger rows: trimming adjusts quantities in place and
// settlement stamps them closed.
type Store interface {
	// PurchaseOrderLine returns a line, or nil when it doesn't exist.
	PurchaseOrderLine(ctx context.Context, id string) (*PurchaseOrderLine, error)

	// ActiveReservations returns unsettled reservations against a PO line,
	// oldest first.
	ActiveReservations(ctx context.Context, poLineID string) ([]Reservation, error)

	// ActiveReservationsForAssemblyProduct returns unsettled reservations
	// for one (assembly, product) pair.
	ActiveReservationsForAssemblyProduct(ctx context.Context, assemblyID, productID string) ([]Reservation, error)

	// SetReservationQty updates one reservation's reserved quantity.
	SetReservationQty(ctx context.Context, id string, qty decimal.Decimal) error

	// SettleReservation stamps one reservation settled.
	SettleReservation(ctx context.Context, id string, at time.Time) error
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// TRIMMER
// =============================================================================

// Trimmer owns the transactional boundary around reservation maintenance.
type Trimmer struct {
	Store TxStore
	Audit ledger.AuditLog // optional

	Now func() time.Time
}

func NewTrimmer(store TxStore, audit ledger.AuditLog) *Trimmer {
	return &Trimmer{Store: store, Audit: audit, Now: time.Now}
}

func (t *Trimmer) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// TrimReservationsToExpected prunes over-reservation against one PO line.
// Returns nil when the line doesn't exist and a zero-trim result when the
// line is not over-committed.
func (t *Trimmer) TrimReservationsToExpected(ctx context.Context, poLineID string) (*TrimResult, error) {
	var result *TrimResult

	err := t.Store.WithTx(ctx, func(tx Store) error {
		line, err := tx.PurchaseOrderLine(ctx, poLineID)
		if err != nil {
			return err
		}
		if line == nil {
			return nil
		}

		reservations, err := tx.ActiveReservations(ctx, poLineID)
		if err != nil {
			return err
		}

		maxAllowed := line.MaxReservable()
		total := decimal.Zero
		for _, r := range reservations {
			total = total.Add(r.QtyReserved)
		}

		result = &TrimResult{
			PurchaseOrderLineID: poLineID,
			ReservedBefore:      total,
			ReservedAfter:       total,
			ExpectedQty:         line.ExpectedQty(),
			QtyReceived:         line.QtyReceived,
			Trimmed:             decimal.Zero,
			Strategy:            TrimStrategyNewestFirst,
		}

		overage := total.Sub(maxAllowed)
		if !overage.IsPositive() {
			return nil
		}

		// Newest first: the oldest commitments are protected.
		sort.SliceStable(reservations, func(i, j int) bool {
			return reservations[i].CreatedAt.After(reservations[j].CreatedAt)
		})

		for _, r := range reservations {
			if !overage.IsPositive() {
				break
			}
			reduce := r.QtyReserved
			if reduce.GreaterThan(overage) {
				reduce = overage
			}
			if !reduce.IsPositive() {
				continue
			}
			if err := tx.SetReservationQty(ctx, r.ID, r.QtyReserved.Sub(reduce)); err != nil {
				return err
			}
			overage = overage.Sub(reduce)
			result.Trimmed = result.Trimmed.Add(reduce)
		}

		result.ReservedAfter = result.ReservedBefore.Sub(result.Trimmed)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}

	if result.Trimmed.IsPositive() {
		t.appendAudit(ctx, ledger.AuditEntry{
			ID:        fmt.Sprintf("audit-trim-%s-%d", poLineID, t.now().UnixNano()),
			Timestamp: t.now(),
			Action:    ledger.AuditReservationsTrimmed,
			Payload: map[string]any{
				"purchaseOrderLineId": result.PurchaseOrderLineID,
				"reservedBefore":      result.ReservedBefore.String(),
				"reservedAfter":       result.ReservedAfter.String(),
				"expectedQty":         result.ExpectedQty.String(),
				"qtyReceived":         result.QtyReceived.String(),
				"trimmed":             result.Trimmed.String(),
				"strategy":            result.Strategy,
			},
		})
	}
	return result, nil
}

// SettleReservationsForAssemblyProduct stamps every active reservation for
// the pair settled, recording the pre-settlement total for audit.
func (t *Trimmer) SettleReservationsForAssemblyProduct(ctx context.Context, assemblyID, productID string) (*SettleResult, error) {
	at := t.now()
	result := &SettleResult{
		AssemblyID: assemblyID,
		ProductID:  productID,
		SettledAt:  at,
	}

	err := t.Store.WithTx(ctx, func(tx Store) error {
		reservations, err := tx.ActiveReservationsForAssemblyProduct(ctx, assemblyID, productID)
		if err != nil {
			return err
		}
		for _, r := range reservations {
			if err := tx.SettleReservation(ctx, r.ID, at); err != nil {
				return err
			}
			result.Settled++
			result.ReservedBefore = result.ReservedBefore.Add(r.QtyReserved)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Settled > 0 {
		t.appendAudit(ctx, ledger.AuditEntry{
			ID:         fmt.Sprintf("audit-settle-%s-%s-%d", assemblyID, productID, at.UnixNano()),
			Timestamp:  at,
			Action:     ledger.AuditReservationsSettled,
			AssemblyID: assemblyID,
			ProductID:  productID,
			Payload: map[string]any{
				"settled":        result.Settled,
				"reservedBefore": result.ReservedBefore.String(),
			},
		})
	}
	return result, nil
}

// SumActive totals the active reservation quantity for an (assembly,
// product) pair. Used by the coverage matcher.
func SumActive(ctx context.Context, store Store, assemblyID, productID string) (decimal.Decimal, error) {
	reservations, err := store.ActiveReservationsForAssemblyProduct(ctx, assemblyID, productID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, r := range reservations {
		total = total.Add(r.QtyReserved)
	}
	return total, nil
}

func (t *Trimmer) appendAudit(ctx context.Context, entry ledger.AuditEntry) {
	if t.Audit == nil {
		return
	}
	_ = t.Audit.AppendAudit(ctx, entry)
}
