/*
store.go - Persistence interfaces for the activity ledger

PURPOSE:
  Defines the interface between the engine and the database. The Store keeps
  the activity stream append-only; mutating operations re-read ledger state
  and write inside one transaction via WithTx.

APPEND-ONLY CONTRACT:
  Activities have no Update or Delete. Corrections are reconciliation
  activities, appended like everything else.

CONCURRENCY:
  Correctness under concurrent writers to the same assembly relies on the
  transaction serializing conflicting reads/writes. The writer re-reads the
  activity rows inside WithTx before validating, so two concurrent packs
  cannot both pass a ceiling only one of them fits under.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - ledger/store: In-memory for tests

SEE ALSO:
  - assembly/writer.go: The transactional callers
*/
package ledger

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Ledger persistence (append-only activities)
// =============================================================================

// Store persists the activity stream and its transactional companions.
// Activities are APPEND-ONLY: no Update, no Delete.
type Store interface {
	// AppendActivity persists one activity. The only activity write.
	AppendActivity(ctx context.Context, act Activity) error

	// Activities returns all activities for an assembly in creation order.
	Activities(ctx context.Context, assemblyID string) ([]Activity, error)

	// ExternalSteps returns the sent/received state of each outsourced step
	// associated with an assembly.
	ExternalSteps(ctx context.Context, assemblyID string) ([]ExternalStep, error)

	// AppendMovement persists an inventory movement caused by an activity.
	AppendMovement(ctx context.Context, mv Movement) error
}

// TxStore wraps Store with transaction support. If fn returns an error the
// transaction is rolled back; otherwise it is committed.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// AUDIT LOG - Separate from the ledger, tracks who did what when
// =============================================================================

type AuditAction string

const (
	AuditActivityRecorded    AuditAction = "activity_recorded"
	AuditReconcileRecorded   AuditAction = "reconcile_recorded"
	AuditReservationsTrimmed AuditAction = "reservations_trimmed"
	AuditReservationsSettled AuditAction = "reservations_settled"
	AuditToleranceChanged    AuditAction = "tolerance_changed"
)

// AuditEntry records one administrative or ledger-affecting action.
type AuditEntry struct {
	ID         string
	Timestamp  time.Time
	ActorID    string
	Action     AuditAction
	AssemblyID string
	ProductID  string
	Payload    map[string]any
}

// AuditLog stores audit entries. Also append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
}
