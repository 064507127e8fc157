/*
service.go - Assembly material coverage view

Combines the demand resolver, the tolerance resolver and live reservations
into the per-material coverage view dashboards read: one row per costing
line with its demand trace and coverage status.
*/
package material

import (
	"context"

	"github.com/warp/production-ledger/assembly"
	"github.com/warp/production-ledger/ledger"
	"github.com/warp/production-ledger/supply"
)

// CostingSource loads BOM costing lines for an assembly.
type CostingSource interface {
	CostingLines(ctx context.Context, assemblyID string) ([]CostingLine, error)
}

// CoverageRow is one material's demand plus its coverage verdict.
type CoverageRow struct {
	Demand   DemandRow
	Coverage CoverageResult
}

// CoverageService recomputes the material view of an assembly on demand.
type CoverageService struct {
	Ledger     ledger.Store
	Costings   CostingSource
	Supply     supply.Store
	Tolerances *DefaultsCache
}

// AssemblyCoverage derives demand rows for an assembly and matches each
// against its active reservations within the resolved tolerance band.
func (s *CoverageService) AssemblyCoverage(ctx context.Context, a *assembly.Assembly) ([]CoverageRow, error) {
	activities, err := s.Ledger.Activities(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	stats := ledger.Aggregate(activities)
	cutGood := stats.Get(ledger.StageCut).Usable().Sum()

	costings, err := s.Costings.CostingLines(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	rows := BuildDemandRows(a, costings, cutGood)

	defaults := FallbackDefaults()
	if s.Tolerances != nil {
		defaults = s.Tolerances.Get(ctx)
	}

	out := make([]CoverageRow, 0, len(rows))
	for _, row := range rows {
		reserved, err := supply.SumActive(ctx, s.Supply, a.ID, row.ProductID)
		if err != nil {
			return nil, err
		}
		tol := ResolveTolerance(a, row.ProductType, defaults)
		out = append(out, CoverageRow{
			Demand:   row,
			Coverage: MatchCoverage(row, reserved, tol),
		})
	}
	return out, nil
}

// Blocked reports whether any row holds production.
func Blocked(rows []CoverageRow) bool {
	for _, r := range rows {
		if r.Coverage.Blocking() {
			return true
		}
	}
	return false
}
