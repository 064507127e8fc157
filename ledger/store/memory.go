// Package store provides Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/production-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	activities map[string][]ledger.Activity
	steps      map[string][]ledger.ExternalStep
	movements  map[string][]ledger.Movement
	audit      []ledger.AuditEntry
}

func NewMemory() *Memory {
	return &Memory{
		activities: make(map[string][]ledger.Activity),
		steps:      make(map[string][]ledger.ExternalStep),
		movements:  make(map[string][]ledger.Movement),
	}
}

// AppendActivity adds a single activity. Append-only.
func (m *Memory) AppendActivity(_ context.Context, act ledger.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendActivityLocked(act)
}

func (m *Memory) appendActivityLocked(act ledger.Activity) error {
	act.Normalize()
	m.activities[act.AssemblyID] = append(m.activities[act.AssemblyID], act)
	return nil
}

// Activities returns all activities for an assembly in creation order.
func (m *Memory) Activities(_ context.Context, assemblyID string) ([]ledger.Activity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activitiesLocked(assemblyID), nil
}

func (m *Memory) activitiesLocked(assemblyID string) []ledger.Activity {
	acts := m.activities[assemblyID]
	out := make([]ledger.Activity, len(acts))
	copy(out, acts)
	return out
}

// ExternalSteps returns the outsourced-step state for an assembly.
func (m *Memory) ExternalSteps(_ context.Context, assemblyID string) ([]ledger.ExternalStep, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.externalStepsLocked(assemblyID), nil
}

func (m *Memory) externalStepsLocked(assemblyID string) []ledger.ExternalStep {
	steps := m.steps[assemblyID]
	out := make([]ledger.ExternalStep, len(steps))
	copy(out, steps)
	return out
}

// SetExternalSteps replaces the outsourced-step state for an assembly.
// Test/dev helper; production state comes from vendor send/receive records.
func (m *Memory) SetExternalSteps(assemblyID string, steps []ledger.ExternalStep) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps[assemblyID] = steps
}

// AppendMovement records an inventory movement.
func (m *Memory) AppendMovement(_ context.Context, mv ledger.Movement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendMovementLocked(mv)
}

func (m *Memory) appendMovementLocked(mv ledger.Movement) error {
	if err := ledger.AssertTransferLocations(mv); err != nil {
		return err
	}
	m.movements[mv.AssemblyID] = append(m.movements[mv.AssemblyID], mv)
	return nil
}

// Movements returns recorded movements for an assembly. Test helper.
func (m *Memory) Movements(assemblyID string) []ledger.Movement {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mvs := m.movements[assemblyID]
	out := make([]ledger.Movement, len(mvs))
	copy(out, mvs)
	return out
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For the memory store, this is simulated with a snapshot + rollback on
// error. The mutex is held for the whole transaction; the view handed to fn
// writes through without re-taking it.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()

	if err := fn(&txMemoryView{parent: m}); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

func (m *Memory) snapshot() memorySnapshot {
	actsCopy := make(map[string][]ledger.Activity)
	for k, v := range m.activities {
		actsCopy[k] = append([]ledger.Activity{}, v...)
	}
	stepsCopy := make(map[string][]ledger.ExternalStep)
	for k, v := range m.steps {
		stepsCopy[k] = append([]ledger.ExternalStep{}, v...)
	}
	mvsCopy := make(map[string][]ledger.Movement)
	for k, v := range m.movements {
		mvsCopy[k] = append([]ledger.Movement{}, v...)
	}
	return memorySnapshot{activities: actsCopy, steps: stepsCopy, movements: mvsCopy}
}

func (m *Memory) restore(s memorySnapshot) {
	m.activities = s.activities
	m.steps = s.steps
	m.movements = s.movements
}

type memorySnapshot struct {
	activities map[string][]ledger.Activity
	steps      map[string][]ledger.ExternalStep
	movements  map[string][]ledger.Movement
}

// txMemoryView is the in-transaction view. The parent's mutex is already
// held, so every method delegates to the locked internals.
type txMemoryView struct {
	parent *Memory
}

func (tv *txMemoryView) AppendActivity(_ context.Context, act ledger.Activity) error {
	return tv.parent.appendActivityLocked(act)
}

func (tv *txMemoryView) Activities(_ context.Context, assemblyID string) ([]ledger.Activity, error) {
	return tv.parent.activitiesLocked(assemblyID), nil
}

func (tv *txMemoryView) ExternalSteps(_ context.Context, assemblyID string) ([]ledger.ExternalStep, error) {
	return tv.parent.externalStepsLocked(assemblyID), nil
}

func (tv *txMemoryView) AppendMovement(_ context.Context, mv ledger.Movement) error {
	return tv.parent.appendMovementLocked(mv)
}

// =============================================================================
// AUDIT LOG
// =============================================================================

// AppendAudit records an audit entry.
func (m *Memory) AppendAudit(_ context.Context, entry ledger.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

// AuditEntries returns all audit entries. Test helper.
func (m *Memory) AuditEntries() []ledger.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.AuditEntry, len(m.audit))
	copy(out, m.audit)
	return out
}

var (
	_ ledger.TxStore  = (*Memory)(nil)
	_ ledger.AuditLog = (*Memory)(nil)
	_ ledger.Store    = (*txMemoryView)(nil)
)
