/*
status.go - Operational status derivation

Derived per assembly from the ledger, never persisted. Canceled quantity
reduces the effective ordered quantity before any comparison, per variant.

  COMPLETE          make output >= effective ordered, every variant
  MAKE_IN_PROGRESS  any make output exists
  READY_FOR_MAKE    cut output >= effective ordered, every variant
  CUT_IN_PROGRESS   any cut output exists
  NOT_STARTED       otherwise
*/
package assembly

import "github.com/warp/production-ledger/ledger"

// OperationalStatus is the derived production state of an assembly.
type OperationalStatus string

const (
	StatusNotStarted     OperationalStatus = "NOT_STARTED"
	StatusCutInProgress  OperationalStatus = "CUT_IN_PROGRESS"
	StatusReadyForMake   OperationalStatus = "READY_FOR_MAKE"
	StatusMakeInProgress OperationalStatus = "MAKE_IN_PROGRESS"
	StatusComplete       OperationalStatus = "COMPLETE"
)

// covers reports whether have meets or exceeds want in every variant slot.
// An all-zero want is never "covered": an order with nothing to produce
// cannot complete by doing nothing.
func covers(have, want ledger.Breakdown) bool {
	if !want.AnyPositive() {
		return false
	}
	n := len(want)
	if len(have) > n {
		n = len(have)
	}
	for i := 0; i < n; i++ {
		if have.At(i).LessThan(want.At(i)) {
			return false
		}
	}
	return true
}

// DeriveOperationalStatus computes the production state of an assembly from
// its aggregated ledger state.
func DeriveOperationalStatus(a *Assembly, stats ledger.StatsByStage) OperationalStatus {
	ordered := EffectiveOrdered(a, ledger.CanceledQty(stats))
	cut := stats.Get(ledger.StageCut).Usable()
	make_ := ledger.MakeOutput(stats)

	switch {
	case covers(make_, ordered):
		return StatusComplete
	case make_.AnyPositive():
		return StatusMakeInProgress
	case covers(cut, ordered):
		return StatusReadyForMake
	case cut.AnyPositive():
		return StatusCutInProgress
	default:
		return StatusNotStarted
	}
}
