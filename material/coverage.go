/*
coverage.go - Matching required quantity against live reservations

Decides whether an assembly is materially blocked: a demand row is matched
against the sum of its active reservations, and a shortfall within the
resolved tolerance band passes as POTENTIAL_UNDERCUT instead of PO_HOLD.
*/
package material

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COVERAGE STATUS
// =============================================================================

type CoverageStatus string

const (
	StatusCovered           CoverageStatus = "COVERED"
	StatusPotentialUndercut CoverageStatus = "POTENTIAL_UNDERCUT"
	StatusPOHold            CoverageStatus = "PO_HOLD"
)

// CoverageResult reports how a demand row is covered by reservations.
type CoverageResult struct {
	ProductID    string
	Status       CoverageStatus
	Required     decimal.Decimal
	Reserved     decimal.Decimal
	Uncovered    decimal.Decimal
	ToleranceQty decimal.Decimal
	Tolerance    Tolerance
	Reasons      []string
}

// Blocking reports whether the result should hold production.
func (r CoverageResult) Blocking() bool { return r.Status == StatusPOHold }

// =============================================================================
// MATCHING
// =============================================================================

// MatchCoverage matches one demand row's required quantity against the total
// of its active reservations under the resolved tolerance band.
func MatchCoverage(row DemandRow, reserved decimal.Decimal, tol Tolerance) CoverageResult {
	uncovered := row.QtyRequired.Sub(reserved)
	if uncovered.IsNegative() {
		uncovered = decimal.Zero
	}
	tolQty := ComputeToleranceQty(tol, row.QtyRequired)

	result := CoverageResult{
		ProductID:    row.ProductID,
		Required:     row.QtyRequired,
		Reserved:     reserved,
		Uncovered:    uncovered,
		ToleranceQty: tolQty,
		Tolerance:    tol,
	}

	switch {
	case uncovered.IsZero():
		result.Status = StatusCovered
	case uncovered.LessThanOrEqual(tolQty):
		result.Status = StatusPotentialUndercut
		result.Reasons = append(result.Reasons, fmt.Sprintf(
			"uncovered %s within tolerance %s (%s)",
			uncovered.String(), tolQty.String(), tol.Source))
	default:
		result.Status = StatusPOHold
		result.Reasons = append(result.Reasons, fmt.Sprintf(
			"uncovered %s exceeds tolerance %s: reserved %s of %s required",
			uncovered.String(), tolQty.String(), reserved.String(), row.QtyRequired.String()))
	}
	return result
}
