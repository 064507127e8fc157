/*
reconcile.go - Bounded defect slack recovery

PURPOSE:
  Defect-flagged output can be recovered back into usable slack, but only
  up to what the conservation invariant allows. The recoverable slack at a
  stage is what the stage produced, minus what downstream already consumed,
  minus what was already reconciled.

  maxReconcile = max(0, usable - downstreamUsed - alreadyReconciled)

  Reconciliation is additive: it appends a new activity with kind=defect,
  action=loss_reconciled. Prior activities are never edited, so the full
  audit history survives.

SEE ALSO:
  - downstream.go: Downstream usage calculation
  - errors.go: SlackError, ErrNoSlack
*/
package ledger

// =============================================================================
// SLACK COMPUTATION
// =============================================================================

// MaxReconcile returns the per-variant ceiling for defect reconciliation at
// a stage, never negative.
func MaxReconcile(stats StatsByStage, gate ExternalGate, stage Stage) Breakdown {
	usage := ComputeDownstreamUsage(stats, gate)
	s := stats.Get(stage)
	return s.Usable().Sub(usage.ForStage(stage)).Sub(s.Reconciled()).ClampZero()
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidateReconcile checks a requested reconciliation breakdown against the
// remaining slack at a stage.
//
// Returns:
//   - ErrUnknownStage for a stage outside the pipeline
//   - *NegativeQuantityError when any variant slot is negative
//   - ErrZeroQuantity when the request sums to zero or less
//   - ErrNoSlack when no slack remains anywhere at the stage
//   - *SlackError naming the first offending variant slot otherwise
//   - nil when the request fits
func ValidateReconcile(assemblyID string, stats StatsByStage, gate ExternalGate, stage Stage, requested Breakdown) error {
	if !ValidStage(stage) {
		return ErrUnknownStage
	}
	if err := ValidateRequested(requested); err != nil {
		return err
	}

	max := MaxReconcile(stats, gate, stage)
	if max.IsZero() {
		return ErrNoSlack
	}

	n := len(requested)
	if len(max) > n {
		n = len(max)
	}
	for i := 0; i < n; i++ {
		if requested.At(i).GreaterThan(max.At(i)) {
			return &SlackError{
				AssemblyID:   assemblyID,
				Stage:        stage,
				VariantIndex: i,
				Requested:    requested.At(i),
				Remaining:    max.At(i),
			}
		}
	}
	return nil
}
