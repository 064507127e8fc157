/*
stats.go - Stage aggregation from the activity stream

PURPOSE:
  Folds the per-assembly activity stream into per-stage statistics.
  Statistics are always derived fresh from the stream - there is no
  persisted "stage total" column that can drift out of sync.

WHAT EACH ARRAY MEANS:
  ProcessedArr:        all normal, recorded output at the stage
  ReconciledDefectArr: defect quantity recovered via loss reconciliation
  UsableArr:           good output available to downstream stages

LEGACY DATA:
  Rows predating per-variant breakdowns carry only a flat quantity; those
  synthesize a single-slot array. Callers migrating historical totals can
  seed a stage via Fallback entries, which apply only when the stream has
  no activity at that stage.

SEE ALSO:
  - types.go: Activity, Breakdown
  - downstream.go: Consumes StageStats
*/
package ledger

// =============================================================================
// STAGE STATS - Derived per-stage state
// =============================================================================

// StageStats is the derived quantity state of one stage.
type StageStats struct {
	Stage               Stage
	ProcessedArr        Breakdown
	ReconciledDefectArr Breakdown
	UsableArr           Breakdown
}

// Usable returns the usable array, never nil.
func (s StageStats) Usable() Breakdown {
	if s.UsableArr == nil {
		return Breakdown{}
	}
	return s.UsableArr
}

// Processed returns the processed array, never nil.
func (s StageStats) Processed() Breakdown {
	if s.ProcessedArr == nil {
		return Breakdown{}
	}
	return s.ProcessedArr
}

// Reconciled returns the reconciled-defect array, never nil.
func (s StageStats) Reconciled() Breakdown {
	if s.ReconciledDefectArr == nil {
		return Breakdown{}
	}
	return s.ReconciledDefectArr
}

// HasActivity reports whether any activity was folded into this stage.
func (s StageStats) HasActivity() bool {
	return len(s.ProcessedArr) > 0 || len(s.ReconciledDefectArr) > 0
}

// StatsByStage maps each stage to its derived statistics. Stages with no
// activity map to empty (not missing) stats so lookups never fail.
type StatsByStage map[Stage]StageStats

// Get returns the stats for a stage, empty stats if none were recorded.
func (m StatsByStage) Get(stage Stage) StageStats {
	if s, ok := m[stage]; ok {
		return s
	}
	return StageStats{Stage: stage}
}

// =============================================================================
// FALLBACK - Legacy persisted totals
// =============================================================================

// Fallback seeds a stage with persisted totals from before activity-stream
// tracking. It applies only when the stream carries no activity for the stage.
type Fallback struct {
	Stage     Stage
	Processed Breakdown
	Usable    Breakdown // optional explicit usable override
}

// =============================================================================
// AGGREGATION
// =============================================================================

// Aggregate folds an assembly's activities into per-stage statistics.
//
// Per stage, element-wise with zero-padding:
//   - kind=normal, action=recorded       -> ProcessedArr
//   - kind=defect, action=loss_reconciled -> ReconciledDefectArr
//
// UsableArr mirrors ProcessedArr unless a fallback supplies an explicit
// usable override for a stage with no recorded activity.
func Aggregate(activities []Activity, fallbacks ...Fallback) StatsByStage {
	out := make(StatsByStage, len(Stages()))
	for _, stage := range Stages() {
		out[stage] = StageStats{Stage: stage}
	}

	for _, act := range activities {
		if !ValidStage(act.Stage) {
			continue
		}
		stats := out[act.Stage]
		qty := act.EffectiveBreakdown()
		switch {
		case act.Kind == KindNormal && act.Action == ActionRecorded:
			stats.ProcessedArr = stats.Processed().Add(qty)
		case act.Kind == KindDefect && act.Action == ActionLossReconciled:
			stats.ReconciledDefectArr = stats.Reconciled().Add(qty)
		}
		out[act.Stage] = stats
	}

	for stage, stats := range out {
		stats.UsableArr = stats.Processed().Clone()
		out[stage] = stats
	}

	// Legacy persisted totals apply only where the stream is silent.
	for _, fb := range fallbacks {
		if !ValidStage(fb.Stage) {
			continue
		}
		stats := out[fb.Stage]
		if stats.HasActivity() {
			continue
		}
		stats.ProcessedArr = fb.Processed.Clone()
		if fb.Usable != nil {
			stats.UsableArr = fb.Usable.Clone()
		} else {
			stats.UsableArr = fb.Processed.Clone()
		}
		out[fb.Stage] = stats
	}

	return out
}

// CanceledQty returns the total canceled breakdown for an assembly's stream.
// Canceled quantity reduces the effective ordered quantity before any
// completion comparison.
func CanceledQty(stats StatsByStage) Breakdown {
	return stats.Get(StageCancel).Processed()
}
