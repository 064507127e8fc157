/*
downstream.go - Downstream usage and stage ceilings

PURPOSE:
  Computes, per stage, how much of that stage's usable output has already
  been spent by later stages. This is the conservation core: no stage may
  report more usable output than its upstream produced minus what downstream
  already consumed.

WHY MAX, NOT SUM:
  Later activity is monotonic - a stage's truth is whichever later record is
  furthest along. Pack and retain are alternative destinations for the same
  finished units, so their union is max(pack, retain), not their sum.

THE CHAIN (element-wise, per variant slot):
  packLike        = max(packRecorded, retainRecorded)
  finishDownstream = max(finishRecorded, packLike)
  sewDownstream    = max(finishDownstream, externalGate)
  cutDownstream    = max(sewDownstream, sewRecorded)

SEE ALSO:
  - gate.go: External gate resolution
  - reconcile.go: Uses downstream usage to bound slack recovery
*/
package ledger

// =============================================================================
// DOWNSTREAM USAGE
// =============================================================================

// DownstreamUsage holds, per stage, the quantity already consumed by later
// stages. All arrays are clamped to be non-negative.
type DownstreamUsage struct {
	PackLike Breakdown // union of pack and retain outflow
	Finish   Breakdown
	Sew      Breakdown
	Cut      Breakdown
}

// ForStage returns the downstream-used array for a stage. Pack and retain
// terminate the pipeline, so nothing downstream consumes them.
func (d DownstreamUsage) ForStage(stage Stage) Breakdown {
	switch stage {
	case StageCut:
		return d.Cut
	case StageSew:
		return d.Sew
	case StageFinish:
		return d.Finish
	default:
		return Breakdown{}
	}
}

// ComputeDownstreamUsage walks the pipeline from the end back to cut.
func ComputeDownstreamUsage(stats StatsByStage, gate ExternalGate) DownstreamUsage {
	packLike := stats.Get(StagePack).Processed().Max(stats.Get(StageRetain).Processed())
	finish := stats.Get(StageFinish).Processed().Max(packLike)
	sew := finish.Max(gate.Gate)
	cut := sew.Max(stats.Get(StageSew).Processed())

	return DownstreamUsage{
		PackLike: packLike.ClampZero(),
		Finish:   finish.ClampZero(),
		Sew:      sew.ClampZero(),
		Cut:      cut.ClampZero(),
	}
}

// =============================================================================
// FINISH CAP
// =============================================================================

// FinishCap returns the per-variant ceiling on finish quantity.
//
// Precedence:
//  1. An active external gate is authoritative - the vendor return count is
//     the physical truth for what can be finished.
//  2. Sew recorded activity, when any exists - can't finish more than was sewn.
//  3. Otherwise max(cutRecorded, finish already recorded + reconciled): the
//     cap never regresses below recorded finish history, even when cut data
//     is inconsistent.
func FinishCap(stats StatsByStage, gate ExternalGate) Breakdown {
	if gate.Active() {
		return gate.Gate.Clone()
	}

	sew := stats.Get(StageSew)
	if sew.HasActivity() {
		return sew.Processed().Clone()
	}

	finish := stats.Get(StageFinish)
	finishKnown := finish.Processed().Add(finish.Reconciled())
	return stats.Get(StageCut).Processed().Max(finishKnown)
}

// =============================================================================
// FINISHED-POOL AVAILABILITY
// =============================================================================

// MakeOutput returns the output of the make phase that feeds pack/retain.
// Finish output is preferred; assemblies whose finishing was folded into sew
// (legacy streams with no finish activity) fall back to sew output.
func MakeOutput(stats StatsByStage) Breakdown {
	finish := stats.Get(StageFinish)
	if finish.HasActivity() {
		return finish.Usable()
	}
	return stats.Get(StageSew).Usable()
}

// AvailableForPack returns the per-variant quantity still packable:
// made output minus what pack/retain have already drawn from the pool.
func AvailableForPack(stats StatsByStage, gate ExternalGate) Breakdown {
	usage := ComputeDownstreamUsage(stats, gate)
	return MakeOutput(stats).Sub(usage.PackLike).ClampZero()
}

// AvailableForRetain returns the per-variant quantity still retainable.
// Retain draws from the same finished pool as pack.
func AvailableForRetain(stats StatsByStage, gate ExternalGate) Breakdown {
	return AvailableForPack(stats, gate)
}
