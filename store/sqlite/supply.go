/*
supply.go - Supply-side persistence (PO lines, reservations)

A separate view type over the same database: supply.TxStore and
ledger.TxStore both need a WithTx method with their own store signature, so
the supply interfaces hang off Supply() instead of Store itself.
*/
package sqlite

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/production-ledger/supply"
)

// SupplyStore implements supply.TxStore over the shared database. It shares
// the parent Store's mutex so ledger and supply writes serialize together.
type SupplyStore struct {
	db *sql.DB
	mu *sync.RWMutex
}

// Supply returns the supply-side view of the store.
func (s *Store) Supply() *SupplyStore {
	return &SupplyStore{db: s.db, mu: &s.mu}
}

// =============================================================================
// PURCHASE ORDER LINES
// =============================================================================

// SavePurchaseOrderLine inserts or replaces a PO line.
func (s *SupplyStore) SavePurchaseOrderLine(ctx context.Context, line supply.PurchaseOrderLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO purchase_order_lines (id, product_id, quantity, quantity_ordered, qty_received)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			product_id = excluded.product_id,
			quantity = excluded.quantity,
			quantity_ordered = excluded.quantity_ordered,
			qty_received = excluded.qty_received
	`
	_, err := s.db.ExecContext(ctx, query,
		line.ID, nullString(line.ProductID),
		line.Quantity.String(), line.QuantityOrdered.String(), line.QtyReceived.String(),
	)
	return err
}

// PurchaseOrderLine loads one PO line, nil when it doesn't exist.
func (s *SupplyStore) PurchaseOrderLine(ctx context.Context, id string) (*supply.PurchaseOrderLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryPurchaseOrderLine(ctx, s.db, id)
}

func (s *SupplyStore) queryPurchaseOrderLine(ctx context.Context, q dbtx, id string) (*supply.PurchaseOrderLine, error) {
	query := `
		SELECT id, product_id, quantity, quantity_ordered, qty_received
		FROM purchase_order_lines WHERE id = ?
	`
	var line supply.PurchaseOrderLine
	var productID sql.NullString
	var quantity, ordered, received string
	err := q.QueryRowContext(ctx, query, id).Scan(
		&line.ID, &productID, &quantity, &ordered, &received)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	line.ProductID = productID.String
	line.Quantity = parseDec(quantity)
	line.QuantityOrdered = parseDec(ordered)
	line.QtyReceived = parseDec(received)
	return &line, nil
}

// =============================================================================
// RESERVATIONS
// =============================================================================

// SaveReservation inserts or replaces a reservation.
func (s *SupplyStore) SaveReservation(ctx context.Context, r supply.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO reservations
		(id, purchase_order_line_id, batch_id, assembly_id, product_id, qty_reserved, created_at, settled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			qty_reserved = excluded.qty_reserved,
			settled_at = excluded.settled_at
	`
	var settledAt any
	if r.SettledAt != nil {
		settledAt = formatTime(*r.SettledAt)
	}
	_, err := s.db.ExecContext(ctx, query,
		r.ID, nullString(r.PurchaseOrderLineID), nullString(r.BatchID),
		r.AssemblyID, r.ProductID, r.QtyReserved.String(),
		formatTime(r.CreatedAt), settledAt,
	)
	return err
}

// ActiveReservations returns unsettled reservations against a PO line,
// oldest first.
func (s *SupplyStore) ActiveReservations(ctx context.Context, poLineID string) ([]supply.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryActiveReservations(ctx, s.db, poLineID)
}

func (s *SupplyStore) queryActiveReservations(ctx context.Context, q dbtx, poLineID string) ([]supply.Reservation, error) {
	query := `
		SELECT id, purchase_order_line_id, batch_id, assembly_id, product_id,
		       qty_reserved, created_at, settled_at
		FROM reservations
		WHERE purchase_order_line_id = ? AND settled_at IS NULL
		ORDER BY created_at, id
	`
	return queryReservations(ctx, q, query, poLineID)
}

// ActiveReservationsForAssemblyProduct returns unsettled reservations for
// one (assembly, product) pair, oldest first.
func (s *SupplyStore) ActiveReservationsForAssemblyProduct(ctx context.Context, assemblyID, productID string) ([]supply.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryActiveReservationsForAssemblyProduct(ctx, s.db, assemblyID, productID)
}

func (s *SupplyStore) queryActiveReservationsForAssemblyProduct(ctx context.Context, q dbtx, assemblyID, productID string) ([]supply.Reservation, error) {
	query := `
		SELECT id, purchase_order_line_id, batch_id, assembly_id, product_id,
		       qty_reserved, created_at, settled_at
		FROM reservations
		WHERE assembly_id = ? AND product_id = ? AND settled_at IS NULL
		ORDER BY created_at, id
	`
	return queryReservations(ctx, q, query, assemblyID, productID)
}

func queryReservations(ctx context.Context, q dbtx, query string, args ...any) ([]supply.Reservation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []supply.Reservation
	for rows.Next() {
		var r supply.Reservation
		var poLineID, batchID, settledAt sql.NullString
		var qty, createdAt string
		if err := rows.Scan(&r.ID, &poLineID, &batchID, &r.AssemblyID, &r.ProductID,
			&qty, &createdAt, &settledAt); err != nil {
			return nil, err
		}
		r.PurchaseOrderLineID = poLineID.String
		r.BatchID = batchID.String
		r.QtyReserved = parseDec(qty)
		r.CreatedAt = parseTime(createdAt)
		if settledAt.Valid {
			t := parseTime(settledAt.String)
			r.SettledAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetReservationQty updates one reservation's reserved quantity.
func (s *SupplyStore) SetReservationQty(ctx context.Context, id string, qty decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.execSetReservationQty(ctx, s.db, id, qty)
}

func (s *SupplyStore) execSetReservationQty(ctx context.Context, q dbtx, id string, qty decimal.Decimal) error {
	_, err := q.ExecContext(ctx,
		`UPDATE reservations SET qty_reserved = ? WHERE id = ?`, qty.String(), id)
	return err
}

// SettleReservation stamps one reservation settled.
func (s *SupplyStore) SettleReservation(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.execSettleReservation(ctx, s.db, id, at)
}

func (s *SupplyStore) execSettleReservation(ctx context.Context, q dbtx, id string, at time.Time) error {
	_, err := q.ExecContext(ctx,
		`UPDATE reservations SET settled_at = ? WHERE id = ? AND settled_at IS NULL`,
		formatTime(at), id)
	return err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn inside one database transaction. The write lock is
// held for the whole transaction; the view handed to fn routes all queries
// through the transaction without re-taking it.
func (s *SupplyStore) WithTx(ctx context.Context, fn func(supply.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&txSupplyView{tx: tx, parent: s}); err != nil {
		return err
	}
	return tx.Commit()
}

// txSupplyView is the in-transaction view. The parent's lock is already held.
type txSupplyView struct {
	tx     *sql.Tx
	parent *SupplyStore
}

func (v *txSupplyView) PurchaseOrderLine(ctx context.Context, id string) (*supply.PurchaseOrderLine, error) {
	return v.parent.queryPurchaseOrderLine(ctx, v.tx, id)
}

func (v *txSupplyView) ActiveReservations(ctx context.Context, poLineID string) ([]supply.Reservation, error) {
	return v.parent.queryActiveReservations(ctx, v.tx, poLineID)
}

func (v *txSupplyView) ActiveReservationsForAssemblyProduct(ctx context.Context, assemblyID, productID string) ([]supply.Reservation, error) {
	return v.parent.queryActiveReservationsForAssemblyProduct(ctx, v.tx, assemblyID, productID)
}

func (v *txSupplyView) SetReservationQty(ctx context.Context, id string, qty decimal.Decimal) error {
	return v.parent.execSetReservationQty(ctx, v.tx, id, qty)
}

func (v *txSupplyView) SettleReservation(ctx context.Context, id string, at time.Time) error {
	return v.parent.execSettleReservation(ctx, v.tx, id, at)
}

var (
	_ supply.TxStore = (*SupplyStore)(nil)
	_ supply.Store   = (*txSupplyView)(nil)
)
