/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements persistence for the stage quantity ledger and the supply side
  (PO lines, reservations) using SQLite. In production the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  ledger.TxStore:  Activity stream, external steps, movements
  ledger.AuditLog: Append-only audit entries
  supply.TxStore:  PO lines and reservations (via Supply())

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statements touch the activities, movements or
  audit_log tables. Corrections are reconciliation activities.

KEY TABLES:
  assemblies:           Production work units
  activities:           Immutable stage quantity ledger
  external_steps:       Vendor sent/received state per outsourced step
  movements:            Inventory movements tied to activities
  costing_lines:        BOM components per assembly
  purchase_order_lines: Supply side
  reservations:         Commitments against PO lines/batches
  boxes/box_lines:      Packing output
  settings:             Raw JSON settings (coverage tolerance)
  audit_log:            Who did what when

WAL MODE:
  Opened with WAL for better concurrency: readers don't block, single
  writer at a time, better crash recovery.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety; WithTx holds the write lock for the
  whole transaction so concurrent writers to the same assembly serialize.
  With PostgreSQL, database-level row locking handles this instead.

USAGE:
  st, err := sqlite.New("./data/production.db")
  ...
  svc := assembly.NewActivityService(st, st)
  trimmer := supply.NewTrimmer(st.Supply(), st)

SEE ALSO:
  - ledger/store.go: Interface definitions
  - supply/trim.go: Reservation maintenance
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/production-ledger/assembly"
	"github.com/warp/production-ledger/ledger"
	"github.com/warp/production-ledger/material"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements the ledger storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer, and each :memory: connection is its own
	// database, so the pool is pinned to one connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Assemblies
	CREATE TABLE IF NOT EXISTS assemblies (
		id TEXT PRIMARY KEY,
		product_id TEXT,
		name TEXT NOT NULL DEFAULT '',
		ordered_breakdown_json TEXT,
		quantity TEXT NOT NULL DEFAULT '0',
		assembly_type TEXT NOT NULL DEFAULT 'production',
		status TEXT NOT NULL DEFAULT 'OPEN',
		tolerance_pct TEXT,
		tolerance_abs TEXT,
		created_at TEXT NOT NULL
	);

	-- Activities (append-only stage quantity ledger)
	CREATE TABLE IF NOT EXISTS activities (
		id TEXT PRIMARY KEY,
		assembly_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		kind TEXT NOT NULL,
		action TEXT NOT NULL,
		qty_breakdown_json TEXT NOT NULL,
		quantity TEXT NOT NULL,
		activity_date TEXT NOT NULL,
		external_step_type TEXT,
		vendor_company_id TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activities_assembly
		ON activities(assembly_id);
	CREATE INDEX IF NOT EXISTS idx_activities_assembly_stage
		ON activities(assembly_id, stage);
	CREATE INDEX IF NOT EXISTS idx_activities_created_at
		ON activities(created_at);

	-- External steps (vendor sent/received per outsourced step)
	CREATE TABLE IF NOT EXISTS external_steps (
		assembly_id TEXT NOT NULL,
		step_type TEXT NOT NULL,
		vendor_company_id TEXT NOT NULL DEFAULT '',
		sent_json TEXT NOT NULL DEFAULT '[]',
		received_json TEXT NOT NULL DEFAULT '[]',
		updated_at TEXT NOT NULL,
		PRIMARY KEY (assembly_id, step_type)
	);

	-- Inventory movements (append-only, tied to activities)
	CREATE TABLE IF NOT EXISTS movements (
		id TEXT PRIMARY KEY,
		assembly_id TEXT NOT NULL,
		product_id TEXT,
		kind TEXT NOT NULL,
		quantity TEXT NOT NULL,
		batch_id TEXT,
		from_location TEXT,
		to_location TEXT,
		at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_movements_assembly
		ON movements(assembly_id);

	-- BOM costing lines
	CREATE TABLE IF NOT EXISTS costing_lines (
		assembly_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		product_type TEXT NOT NULL,
		qty_per_unit TEXT NOT NULL,
		stage TEXT NOT NULL,
		enabled BOOLEAN NOT NULL DEFAULT TRUE,
		stock_tracked BOOLEAN NOT NULL DEFAULT TRUE,
		PRIMARY KEY (assembly_id, product_id)
	);

	-- Purchase order lines
	CREATE TABLE IF NOT EXISTS purchase_order_lines (
		id TEXT PRIMARY KEY,
		product_id TEXT,
		quantity TEXT NOT NULL DEFAULT '0',
		quantity_ordered TEXT NOT NULL DEFAULT '0',
		qty_received TEXT NOT NULL DEFAULT '0'
	);

	-- Reservations (mutable commitments, settled not deleted)
	CREATE TABLE IF NOT EXISTS reservations (
		id TEXT PRIMARY KEY,
		purchase_order_line_id TEXT,
		batch_id TEXT,
		assembly_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		qty_reserved TEXT NOT NULL,
		created_at TEXT NOT NULL,
		settled_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_reservations_po_line
		ON reservations(purchase_order_line_id) WHERE settled_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_reservations_assembly_product
		ON reservations(assembly_id, product_id) WHERE settled_at IS NULL;

	-- Boxes
	CREATE TABLE IF NOT EXISTS boxes (
		id TEXT PRIMARY KEY,
		assembly_id TEXT NOT NULL,
		address_destination TEXT NOT NULL DEFAULT '',
		location_destination TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS box_lines (
		box_id TEXT NOT NULL,
		assembly_id TEXT NOT NULL,
		qty_breakdown_json TEXT NOT NULL,
		PRIMARY KEY (box_id, assembly_id)
	);

	-- Settings (raw JSON per key)
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Audit log (append-only)
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		at TEXT NOT NULL,
		actor_id TEXT,
		action TEXT NOT NULL,
		assembly_id TEXT,
		product_id TEXT,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_action
		ON audit_log(action);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// JSON HELPERS
// =============================================================================

func marshalBreakdown(b ledger.Breakdown) string {
	strs := make([]string, len(b))
	for i, v := range b {
		strs[i] = v.String()
	}
	data, _ := json.Marshal(strs)
	return string(data)
}

func unmarshalBreakdown(raw string) ledger.Breakdown {
	if raw == "" {
		return ledger.Breakdown{}
	}
	var strs []string
	if err := json.Unmarshal([]byte(raw), &strs); err != nil {
		return ledger.Breakdown{}
	}
	out := make(ledger.Breakdown, len(strs))
	for i, s := range strs {
		out[i] = ledger.ParseQuantity(s)
	}
	return out
}

func parseDec(raw string) decimal.Decimal {
	return ledger.ParseQuantity(raw)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// =============================================================================
// LEDGER STORE (ledger.TxStore interface)
// =============================================================================

// AppendActivity adds an activity to the ledger.
func (s *Store) AppendActivity(ctx context.Context, act ledger.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendActivity(ctx, s.db, act)
}

func (s *Store) appendActivity(ctx context.Context, q dbtx, act ledger.Activity) error {
	act.Normalize()
	query := `
		INSERT INTO activities
		(id, assembly_id, stage, kind, action, qty_breakdown_json, quantity,
		 activity_date, external_step_type, vendor_company_id, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	createdAt := act.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := q.ExecContext(ctx, query,
		act.ID,
		act.AssemblyID,
		act.Stage,
		act.Kind,
		act.Action,
		marshalBreakdown(act.QtyBreakdown),
		act.Quantity.String(),
		formatTime(act.ActivityDate),
		nullString(act.ExternalStepType),
		nullString(act.VendorCompanyID),
		act.CreatedBy,
		formatTime(createdAt),
	)
	return err
}

// Activities returns all activities for an assembly in creation order.
func (s *Store) Activities(ctx context.Context, assemblyID string) ([]ledger.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryActivities(ctx, s.db, assemblyID)
}

func (s *Store) queryActivities(ctx context.Context, q dbtx, assemblyID string) ([]ledger.Activity, error) {
	query := `
		SELECT id, assembly_id, stage, kind, action, qty_breakdown_json, quantity,
		       activity_date, external_step_type, vendor_company_id, created_by, created_at
		FROM activities
		WHERE assembly_id = ?
		ORDER BY created_at, id
	`
	rows, err := q.QueryContext(ctx, query, assemblyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var acts []ledger.Activity
	for rows.Next() {
		var act ledger.Activity
		var breakdownJSON, quantity, activityDate, createdAt string
		var stepType, vendorID sql.NullString
		if err := rows.Scan(&act.ID, &act.AssemblyID, &act.Stage, &act.Kind, &act.Action,
			&breakdownJSON, &quantity, &activityDate, &stepType, &vendorID,
			&act.CreatedBy, &createdAt); err != nil {
			return nil, err
		}
		act.QtyBreakdown = unmarshalBreakdown(breakdownJSON)
		act.Quantity = parseDec(quantity)
		act.ActivityDate = parseTime(activityDate)
		act.ExternalStepType = stepType.String
		act.VendorCompanyID = vendorID.String
		act.CreatedAt = parseTime(createdAt)
		acts = append(acts, act)
	}
	return acts, rows.Err()
}

// ExternalSteps returns the vendor sent/received state for an assembly.
func (s *Store) ExternalSteps(ctx context.Context, assemblyID string) ([]ledger.ExternalStep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryExternalSteps(ctx, s.db, assemblyID)
}

func (s *Store) queryExternalSteps(ctx context.Context, q dbtx, assemblyID string) ([]ledger.ExternalStep, error) {
	query := `
		SELECT step_type, vendor_company_id, sent_json, received_json
		FROM external_steps
		WHERE assembly_id = ?
		ORDER BY step_type
	`
	rows, err := q.QueryContext(ctx, query, assemblyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var steps []ledger.ExternalStep
	for rows.Next() {
		var step ledger.ExternalStep
		var sentJSON, receivedJSON string
		if err := rows.Scan(&step.StepType, &step.VendorCompanyID, &sentJSON, &receivedJSON); err != nil {
			return nil, err
		}
		step.Sent = unmarshalBreakdown(sentJSON)
		step.Received = unmarshalBreakdown(receivedJSON)
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

// UpsertExternalStep records the latest vendor sent/received state for one
// outsourced step.
func (s *Store) UpsertExternalStep(ctx context.Context, assemblyID string, step ledger.ExternalStep) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO external_steps (assembly_id, step_type, vendor_company_id, sent_json, received_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(assembly_id, step_type) DO UPDATE SET
			vendor_company_id = excluded.vendor_company_id,
			sent_json = excluded.sent_json,
			received_json = excluded.received_json,
			updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		assemblyID, step.StepType, step.VendorCompanyID,
		marshalBreakdown(step.Sent), marshalBreakdown(step.Received),
		formatTime(time.Now()),
	)
	return err
}

// AppendMovement records an inventory movement.
func (s *Store) AppendMovement(ctx context.Context, mv ledger.Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendMovement(ctx, s.db, mv)
}

func (s *Store) appendMovement(ctx context.Context, q dbtx, mv ledger.Movement) error {
	if err := ledger.AssertTransferLocations(mv); err != nil {
		return err
	}

	query := `
		INSERT INTO movements
		(id, assembly_id, product_id, kind, quantity, batch_id, from_location, to_location, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		mv.ID, mv.AssemblyID, nullString(mv.ProductID), mv.Kind,
		mv.Quantity.String(), nullString(mv.BatchID),
		nullString(mv.FromLocation), nullString(mv.ToLocation),
		formatTime(mv.At),
	)
	return err
}

// Movements returns all movements for an assembly.
func (s *Store) Movements(ctx context.Context, assemblyID string) ([]ledger.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, assembly_id, product_id, kind, quantity, batch_id, from_location, to_location, at
		FROM movements WHERE assembly_id = ? ORDER BY at, id
	`
	rows, err := s.db.QueryContext(ctx, query, assemblyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mvs []ledger.Movement
	for rows.Next() {
		var mv ledger.Movement
		var quantity, at string
		var productID, batchID, fromLoc, toLoc sql.NullString
		if err := rows.Scan(&mv.ID, &mv.AssemblyID, &productID, &mv.Kind, &quantity,
			&batchID, &fromLoc, &toLoc, &at); err != nil {
			return nil, err
		}
		mv.ProductID = productID.String
		mv.Quantity = parseDec(quantity)
		mv.BatchID = batchID.String
		mv.FromLocation = fromLoc.String
		mv.ToLocation = toLoc.String
		mv.At = parseTime(at)
		mvs = append(mvs, mv)
	}
	return mvs, rows.Err()
}

// WithTx executes fn inside one database transaction. The write lock is
// held for the whole transaction; the view handed to fn routes all queries
// through the transaction without re-taking it.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&txView{tx: tx, parent: s}); err != nil {
		return err
	}
	return tx.Commit()
}

// txView is the in-transaction view. The parent's lock is already held.
type txView struct {
	tx     *sql.Tx
	parent *Store
}

func (v *txView) AppendActivity(ctx context.Context, act ledger.Activity) error {
	return v.parent.appendActivity(ctx, v.tx, act)
}

func (v *txView) Activities(ctx context.Context, assemblyID string) ([]ledger.Activity, error) {
	return v.parent.queryActivities(ctx, v.tx, assemblyID)
}

func (v *txView) ExternalSteps(ctx context.Context, assemblyID string) ([]ledger.ExternalStep, error) {
	return v.parent.queryExternalSteps(ctx, v.tx, assemblyID)
}

func (v *txView) AppendMovement(ctx context.Context, mv ledger.Movement) error {
	return v.parent.appendMovement(ctx, v.tx, mv)
}

// =============================================================================
// AUDIT LOG (ledger.AuditLog interface)
// =============================================================================

// AppendAudit records an audit entry. Append-only.
func (s *Store) AppendAudit(ctx context.Context, entry ledger.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payloadJSON, _ := json.Marshal(entry.Payload)
	query := `
		INSERT INTO audit_log (id, at, actor_id, action, assembly_id, product_id, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.ID, formatTime(entry.Timestamp), entry.ActorID, entry.Action,
		nullString(entry.AssemblyID), nullString(entry.ProductID), string(payloadJSON),
	)
	return err
}

// AuditEntries returns audit entries for an action, newest first.
func (s *Store) AuditEntries(ctx context.Context, action ledger.AuditAction) ([]ledger.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, at, actor_id, action, assembly_id, product_id, payload_json
		FROM audit_log WHERE action = ? ORDER BY at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, action)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ledger.AuditEntry
	for rows.Next() {
		var e ledger.AuditEntry
		var at, payloadJSON string
		var assemblyID, productID sql.NullString
		if err := rows.Scan(&e.ID, &at, &e.ActorID, &e.Action, &assemblyID, &productID, &payloadJSON); err != nil {
			return nil, err
		}
		e.Timestamp = parseTime(at)
		e.AssemblyID = assemblyID.String
		e.ProductID = productID.String
		json.Unmarshal([]byte(payloadJSON), &e.Payload)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// =============================================================================
// ASSEMBLIES
// =============================================================================

// SaveAssembly inserts or replaces an assembly.
func (s *Store) SaveAssembly(ctx context.Context, a *assembly.Assembly) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO assemblies
		(id, product_id, name, ordered_breakdown_json, quantity, assembly_type, status,
		 tolerance_pct, tolerance_abs, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			product_id = excluded.product_id,
			name = excluded.name,
			ordered_breakdown_json = excluded.ordered_breakdown_json,
			quantity = excluded.quantity,
			assembly_type = excluded.assembly_type,
			status = excluded.status,
			tolerance_pct = excluded.tolerance_pct,
			tolerance_abs = excluded.tolerance_abs
	`
	_, err := s.db.ExecContext(ctx, query,
		a.ID, nullString(a.ProductID), a.Name,
		marshalBreakdown(a.OrderedBreakdown), a.Quantity.String(),
		a.AssemblyType, a.Status,
		nullDecimal(a.TolerancePct), nullDecimal(a.ToleranceAbs),
		formatTime(time.Now()),
	)
	return err
}

// GetAssembly loads one assembly.
func (s *Store) GetAssembly(ctx context.Context, id string) (*assembly.Assembly, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, product_id, name, ordered_breakdown_json, quantity, assembly_type,
		       status, tolerance_pct, tolerance_abs
		FROM assemblies WHERE id = ?
	`
	row := s.db.QueryRowContext(ctx, query, id)
	a, err := scanAssembly(row)
	if err == sql.ErrNoRows {
		return nil, &ledger.NotFoundError{Kind: "assembly", ID: id}
	}
	return a, err
}

// ListAssemblies returns all assemblies.
func (s *Store) ListAssemblies(ctx context.Context) ([]*assembly.Assembly, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, product_id, name, ordered_breakdown_json, quantity, assembly_type,
		       status, tolerance_pct, tolerance_abs
		FROM assemblies ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*assembly.Assembly
	for rows.Next() {
		a, err := scanAssembly(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAssembly(row scanner) (*assembly.Assembly, error) {
	var a assembly.Assembly
	var productID, breakdownJSON, tolPct, tolAbs sql.NullString
	var quantity string
	if err := row.Scan(&a.ID, &productID, &a.Name, &breakdownJSON, &quantity,
		&a.AssemblyType, &a.Status, &tolPct, &tolAbs); err != nil {
		return nil, err
	}
	a.ProductID = productID.String
	a.OrderedBreakdown = unmarshalBreakdown(breakdownJSON.String)
	a.Quantity = parseDec(quantity)
	if tolPct.Valid {
		d := parseDec(tolPct.String)
		a.TolerancePct = &d
	}
	if tolAbs.Valid {
		d := parseDec(tolAbs.String)
		a.ToleranceAbs = &d
	}
	return &a, nil
}

// =============================================================================
// COSTING LINES
// =============================================================================

// ReplaceCostingLines swaps the BOM costing lines of an assembly.
func (s *Store) ReplaceCostingLines(ctx context.Context, assemblyID string, lines []material.CostingLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM costing_lines WHERE assembly_id = ?`, assemblyID); err != nil {
		return err
	}
	query := `
		INSERT INTO costing_lines
		(assembly_id, product_id, product_type, qty_per_unit, stage, enabled, stock_tracked)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	for _, line := range lines {
		if _, err := s.db.ExecContext(ctx, query,
			assemblyID, line.ProductID, line.ProductType,
			line.QtyPerUnit.String(), line.Stage, line.Enabled, line.StockTracked,
		); err != nil {
			return err
		}
	}
	return nil
}

// CostingLines returns the BOM costing lines of an assembly.
func (s *Store) CostingLines(ctx context.Context, assemblyID string) ([]material.CostingLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT assembly_id, product_id, product_type, qty_per_unit, stage, enabled, stock_tracked
		FROM costing_lines WHERE assembly_id = ? ORDER BY product_id
	`
	rows, err := s.db.QueryContext(ctx, query, assemblyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []material.CostingLine
	for rows.Next() {
		var line material.CostingLine
		var qtyPerUnit string
		if err := rows.Scan(&line.AssemblyID, &line.ProductID, &line.ProductType,
			&qtyPerUnit, &line.Stage, &line.Enabled, &line.StockTracked); err != nil {
			return nil, err
		}
		line.QtyPerUnit = parseDec(qtyPerUnit)
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// =============================================================================
// BOXES
// =============================================================================

// SaveBox upserts a box and its lines.
func (s *Store) SaveBox(ctx context.Context, b *assembly.Box) error {
	if err := assembly.AssertBoxDestinationValid(b); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO boxes (id, assembly_id, address_destination, location_destination, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			address_destination = excluded.address_destination,
			location_destination = excluded.location_destination
	`
	if _, err := s.db.ExecContext(ctx, query,
		b.ID, b.AssemblyID, b.AddressDestination, b.LocationDestination,
		formatTime(time.Now())); err != nil {
		return err
	}

	lineQuery := `
		INSERT INTO box_lines (box_id, assembly_id, qty_breakdown_json)
		VALUES (?, ?, ?)
		ON CONFLICT(box_id, assembly_id) DO UPDATE SET
			qty_breakdown_json = excluded.qty_breakdown_json
	`
	for _, line := range b.Lines {
		if _, err := s.db.ExecContext(ctx, lineQuery,
			b.ID, line.AssemblyID, marshalBreakdown(line.QtyBreakdown)); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// SETTINGS
// =============================================================================

// GetSetting returns the raw JSON value for a settings key, empty when unset.
func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetSetting writes the raw JSON value for a settings key.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, key, value, formatTime(time.Now()))
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

var (
	_ ledger.TxStore  = (*Store)(nil)
	_ ledger.AuditLog = (*Store)(nil)
	_ ledger.Store    = (*txView)(nil)
)
