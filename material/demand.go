/*
demand.go - Derived material demand rows

Recomputed on demand from the assembly, its costing lines, and the cut
ledger. Never persisted by this engine.
*/
package material

import (
	"github.com/shopspring/decimal"
	"github.com/warp/production-ledger/assembly"
	"github.com/warp/production-ledger/ledger"
)

// =============================================================================
// DEMAND DERIVATION
// =============================================================================

// RemainingToCut returns how much of the order is still un-cut:
// max(orderQty - cutGoodQty, 0).
func RemainingToCut(orderQty, cutGoodQty decimal.Decimal) decimal.Decimal {
	remaining := orderQty.Sub(cutGoodQty)
	if remaining.IsNegative() {
		return decimal.Zero
	}
	return remaining
}

// BuildDemandRows derives the material demand for every enabled,
// stock-tracked costing line with a positive per-unit quantity.
//
// Fabric lines compute against remaining-to-cut and are skipped entirely
// once the assembly is fully cut or nothing remains. Trim and packaging
// lines compute against the full order quantity and only at their
// sew/finish consumption stage.
func BuildDemandRows(a *assembly.Assembly, costings []CostingLine, cutGoodQty decimal.Decimal) []DemandRow {
	order := assembly.ResolveOrderQty(a)
	remaining := RemainingToCut(order.Qty, cutGoodQty)

	var rows []DemandRow
	for _, line := range costings {
		if !line.Enabled || !line.StockTracked || !line.QtyPerUnit.IsPositive() {
			continue
		}

		var baseQty decimal.Decimal
		switch {
		case line.ProductType.ConsumptionRateSensitive():
			if a.Status == assembly.StatusFullyCut || remaining.IsZero() {
				continue
			}
			baseQty = remaining
		default:
			if line.Stage != ledger.StageSew && line.Stage != ledger.StageFinish {
				continue
			}
			baseQty = order.Qty
		}

		rows = append(rows, DemandRow{
			AssemblyID:     a.ID,
			ProductID:      line.ProductID,
			ProductType:    line.ProductType,
			QtyRequired:    line.QtyPerUnit.Mul(baseQty),
			OrderQty:       order.Qty,
			OrderQtySource: order.Source,
			CutGoodQty:     cutGoodQty,
			RemainingToCut: remaining,
			QtyPerUnit:     line.QtyPerUnit,
			Stage:          line.Stage,
		})
	}
	return rows
}
