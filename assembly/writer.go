/*
writer.go - Transactional activity writers

PURPOSE:
  The only paths that mutate ledger state. Every writer follows the same
  shape:
    1. Open a store transaction
    2. Re-read the assembly's activities and external steps
    3. Recompute the validation ceiling from current state
    4. Validate the requested quantity against it
    5. Append the activity and any inventory movement
    6. Write an audit entry

  The re-read happens INSIDE the transaction so concurrent writers to the
  same assembly cannot both pass a ceiling only one of them fits under.

WRITERS:
  RecordCut:     pooled cut across sizes, consumes fabric
  RecordPack:    draws from the finished pool into a box
  RecordRetain:  draws from the same pool to stock or the sample room
  Reconcile:     recovers bounded defect slack

A failed validation returns before any write; the transaction rolls back
with state unchanged.

SEE ALSO:
  - ledger/reconcile.go: Slack math
  - ledger/downstream.go: Pool availability
*/
package assembly

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/production-ledger/ledger"
)

// Messages surfaced verbatim to callers on availability failures.
const (
	MsgCannotPack   = "Cannot pack more units than are available."
	MsgCannotRetain = "Cannot retain more units than are available."
)

// =============================================================================
// ACTIVITY SERVICE
// =============================================================================

// ActivityService owns the transactional boundary around activity writes.
type ActivityService struct {
	Store ledger.TxStore
	Audit ledger.AuditLog // optional

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func NewActivityService(store ledger.TxStore, audit ledger.AuditLog) *ActivityService {
	return &ActivityService{Store: store, Audit: audit, Now: time.Now}
}

func (s *ActivityService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func newActivityID(assemblyID string, stage ledger.Stage, at time.Time) ledger.ActivityID {
	return ledger.ActivityID(fmt.Sprintf("%s-%s-%d", assemblyID, stage, at.UnixNano()))
}

func (s *ActivityService) audit(ctx context.Context, entry ledger.AuditEntry) {
	if s.Audit == nil {
		return
	}
	// Audit failures must not undo a committed write.
	_ = s.Audit.AppendAudit(ctx, entry)
}

// =============================================================================
// POOLED CUT
// =============================================================================

// MaterialConsumption is one raw-material draw caused by a cut.
type MaterialConsumption struct {
	ProductID    string
	Quantity     decimal.Decimal
	BatchID      string
	BatchTracked bool
	FromLocation string
}

// CutRequest records cut output across sizes from pooled fabric.
type CutRequest struct {
	Assembly     *Assembly
	Breakdown    ledger.Breakdown
	ActivityDate time.Time
	ActorID      string
	Consumptions []MaterialConsumption
}

// RecordCut appends a cut activity and the fabric consumption movements it
// caused, atomically. Cut has no ledger ceiling: it is bounded physically by
// fabric on the table, and material coverage is policed separately.
func (s *ActivityService) RecordCut(ctx context.Context, req CutRequest) (*ledger.Activity, error) {
	if err := ledger.ValidateRequested(req.Breakdown); err != nil {
		return nil, err
	}

	at := s.now()
	act := ledger.Activity{
		ID:           newActivityID(req.Assembly.ID, ledger.StageCut, at),
		AssemblyID:   req.Assembly.ID,
		Stage:        ledger.StageCut,
		Kind:         ledger.KindNormal,
		Action:       ledger.ActionRecorded,
		QtyBreakdown: req.Breakdown.Clone(),
		ActivityDate: req.ActivityDate,
		CreatedBy:    req.ActorID,
		CreatedAt:    at,
	}
	act.Normalize()

	err := s.Store.WithTx(ctx, func(tx ledger.Store) error {
		for i, c := range req.Consumptions {
			mv := ledger.Movement{
				ID:           fmt.Sprintf("%s-mv-%d", act.ID, i),
				AssemblyID:   req.Assembly.ID,
				ProductID:    c.ProductID,
				Kind:         ledger.MovementConsume,
				Quantity:     c.Quantity,
				BatchID:      c.BatchID,
				FromLocation: c.FromLocation,
				At:           at,
			}
			if err := ledger.AssertBatchLinePresence(mv, c.BatchTracked); err != nil {
				return err
			}
			if err := tx.AppendMovement(ctx, mv); err != nil {
				return err
			}
		}
		return tx.AppendActivity(ctx, act)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, ledger.AuditEntry{
		ID:         fmt.Sprintf("audit-%s", act.ID),
		Timestamp:  at,
		ActorID:    req.ActorID,
		Action:     ledger.AuditActivityRecorded,
		AssemblyID: req.Assembly.ID,
		Payload: map[string]any{
			"stage":    string(ledger.StageCut),
			"quantity": act.Quantity.String(),
		},
	})
	return &act, nil
}

// =============================================================================
// PACK
// =============================================================================

// PackRequest draws finished units into a box.
type PackRequest struct {
	Assembly     *Assembly
	Breakdown    ledger.Breakdown
	ActivityDate time.Time
	ActorID      string
	Box          *Box // optional; validated when present
}

// RecordPack validates the requested quantity against the finished pool and
// appends a pack activity.
func (s *ActivityService) RecordPack(ctx context.Context, req PackRequest) (*ledger.Activity, error) {
	if err := ledger.ValidateRequested(req.Breakdown); err != nil {
		return nil, err
	}
	if req.Box != nil {
		if err := AssertBoxDestinationValid(req.Box); err != nil {
			return nil, err
		}
	}

	at := s.now()
	act := ledger.Activity{
		ID:           newActivityID(req.Assembly.ID, ledger.StagePack, at),
		AssemblyID:   req.Assembly.ID,
		Stage:        ledger.StagePack,
		Kind:         ledger.KindNormal,
		Action:       ledger.ActionRecorded,
		QtyBreakdown: req.Breakdown.Clone(),
		ActivityDate: req.ActivityDate,
		CreatedBy:    req.ActorID,
		CreatedAt:    at,
	}
	act.Normalize()

	err := s.Store.WithTx(ctx, func(tx ledger.Store) error {
		available, err := s.availableFor(ctx, tx, req.Assembly.ID, ledger.AvailableForPack)
		if err != nil {
			return err
		}
		if err := checkAvailability(req.Assembly.ID, ledger.StagePack, req.Breakdown, available, MsgCannotPack); err != nil {
			return err
		}

		if req.Box != nil && req.Box.LocationDestination != "" {
			mv := ledger.Movement{
				ID:         fmt.Sprintf("%s-mv-0", act.ID),
				AssemblyID: req.Assembly.ID,
				ProductID:  req.Assembly.ProductID,
				Kind:       ledger.MovementReceive,
				Quantity:   act.Quantity,
				ToLocation: req.Box.LocationDestination,
				At:         at,
			}
			if err := tx.AppendMovement(ctx, mv); err != nil {
				return err
			}
		}
		return tx.AppendActivity(ctx, act)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, ledger.AuditEntry{
		ID:         fmt.Sprintf("audit-%s", act.ID),
		Timestamp:  at,
		ActorID:    req.ActorID,
		Action:     ledger.AuditActivityRecorded,
		AssemblyID: req.Assembly.ID,
		Payload: map[string]any{
			"stage":    string(ledger.StagePack),
			"quantity": act.Quantity.String(),
		},
	})
	return &act, nil
}

// =============================================================================
// RETAIN
// =============================================================================

// RetainRequest draws finished units out of circulation; the assembly type
// decides whether they land in stock or the sample room.
type RetainRequest struct {
	Assembly     *Assembly
	Breakdown    ledger.Breakdown
	ActivityDate time.Time
	ActorID      string
}

// RecordRetain validates against the finished pool and appends a retain
// activity plus the stock movement into the retain destination.
func (s *ActivityService) RecordRetain(ctx context.Context, req RetainRequest) (*ledger.Activity, error) {
	if err := ledger.ValidateRequested(req.Breakdown); err != nil {
		return nil, err
	}

	at := s.now()
	act := ledger.Activity{
		ID:           newActivityID(req.Assembly.ID, ledger.StageRetain, at),
		AssemblyID:   req.Assembly.ID,
		Stage:        ledger.StageRetain,
		Kind:         ledger.KindNormal,
		Action:       ledger.ActionRecorded,
		QtyBreakdown: req.Breakdown.Clone(),
		ActivityDate: req.ActivityDate,
		CreatedBy:    req.ActorID,
		CreatedAt:    at,
	}
	act.Normalize()

	err := s.Store.WithTx(ctx, func(tx ledger.Store) error {
		available, err := s.availableFor(ctx, tx, req.Assembly.ID, ledger.AvailableForRetain)
		if err != nil {
			return err
		}
		if err := checkAvailability(req.Assembly.ID, ledger.StageRetain, req.Breakdown, available, MsgCannotRetain); err != nil {
			return err
		}

		mv := ledger.Movement{
			ID:         fmt.Sprintf("%s-mv-0", act.ID),
			AssemblyID: req.Assembly.ID,
			ProductID:  req.Assembly.ProductID,
			Kind:       ledger.MovementReceive,
			Quantity:   act.Quantity,
			ToLocation: req.Assembly.AssemblyType.RetainLocation(),
			At:         at,
		}
		if err := tx.AppendMovement(ctx, mv); err != nil {
			return err
		}
		return tx.AppendActivity(ctx, act)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, ledger.AuditEntry{
		ID:         fmt.Sprintf("audit-%s", act.ID),
		Timestamp:  at,
		ActorID:    req.ActorID,
		Action:     ledger.AuditActivityRecorded,
		AssemblyID: req.Assembly.ID,
		Payload: map[string]any{
			"stage":       string(ledger.StageRetain),
			"quantity":    act.Quantity.String(),
			"destination": req.Assembly.AssemblyType.RetainLocation(),
		},
	})
	return &act, nil
}

// =============================================================================
// RECONCILE
// =============================================================================

// ReconcileRequest asks to recover defect slack at a stage.
type ReconcileRequest struct {
	AssemblyID   string
	Stage        ledger.Stage
	Breakdown    ledger.Breakdown
	ActivityDate time.Time
	ActorID      string
}

// ValidateReconcile checks a reconcile request against current ledger state
// without writing. Returns nil when the request would succeed.
func (s *ActivityService) ValidateReconcile(ctx context.Context, req ReconcileRequest) error {
	stats, gate, err := s.loadLedgerState(ctx, s.Store, req.AssemblyID)
	if err != nil {
		return err
	}
	return ledger.ValidateReconcile(req.AssemblyID, stats, gate, req.Stage, req.Breakdown)
}

// Reconcile re-validates inside the transaction and appends one defect
// loss-reconciliation activity. Purely additive: prior activities are
// never edited.
func (s *ActivityService) Reconcile(ctx context.Context, req ReconcileRequest) (*ledger.Activity, error) {
	at := s.now()
	act := ledger.Activity{
		ID:           newActivityID(req.AssemblyID, req.Stage, at),
		AssemblyID:   req.AssemblyID,
		Stage:        req.Stage,
		Kind:         ledger.KindDefect,
		Action:       ledger.ActionLossReconciled,
		QtyBreakdown: req.Breakdown.Clone(),
		ActivityDate: req.ActivityDate,
		CreatedBy:    req.ActorID,
		CreatedAt:    at,
	}
	act.Normalize()

	err := s.Store.WithTx(ctx, func(tx ledger.Store) error {
		stats, gate, err := s.loadLedgerState(ctx, tx, req.AssemblyID)
		if err != nil {
			return err
		}
		if err := ledger.ValidateReconcile(req.AssemblyID, stats, gate, req.Stage, req.Breakdown); err != nil {
			return err
		}
		return tx.AppendActivity(ctx, act)
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, ledger.AuditEntry{
		ID:         fmt.Sprintf("audit-%s", act.ID),
		Timestamp:  at,
		ActorID:    req.ActorID,
		Action:     ledger.AuditReconcileRecorded,
		AssemblyID: req.AssemblyID,
		Payload: map[string]any{
			"stage":    string(req.Stage),
			"quantity": act.Quantity.String(),
		},
	})
	return &act, nil
}

// =============================================================================
// SHARED LEDGER LOADING
// =============================================================================

func (s *ActivityService) loadLedgerState(ctx context.Context, store ledger.Store, assemblyID string) (ledger.StatsByStage, ledger.ExternalGate, error) {
	activities, err := store.Activities(ctx, assemblyID)
	if err != nil {
		return nil, ledger.ExternalGate{}, err
	}
	steps, err := store.ExternalSteps(ctx, assemblyID)
	if err != nil {
		return nil, ledger.ExternalGate{}, err
	}
	return ledger.Aggregate(activities), ledger.ResolveExternalGate(steps), nil
}

func (s *ActivityService) availableFor(ctx context.Context, store ledger.Store, assemblyID string, pool func(ledger.StatsByStage, ledger.ExternalGate) ledger.Breakdown) (ledger.Breakdown, error) {
	stats, gate, err := s.loadLedgerState(ctx, store, assemblyID)
	if err != nil {
		return nil, err
	}
	return pool(stats, gate), nil
}

func checkAvailability(assemblyID string, stage ledger.Stage, requested, available ledger.Breakdown, msg string) error {
	n := len(requested)
	if len(available) > n {
		n = len(available)
	}
	for i := 0; i < n; i++ {
		if requested.At(i).GreaterThan(available.At(i)) {
			return &ledger.AvailabilityError{
				AssemblyID:   assemblyID,
				Stage:        stage,
				VariantIndex: i,
				Requested:    requested.At(i),
				Available:    available.At(i),
				Message:      msg,
			}
		}
	}
	return nil
}
