/*
Package material implements raw-material demand derivation and coverage
matching for assemblies: how much of each BOM component an assembly still
needs, and whether live purchase-order/batch reservations cover it within a
configurable tolerance band.

CONSUMPTION MODEL:
  Fabric is consumed once, at cut, and only for what has not yet been cut.
  Trims and packaging are consumed proportionally to the whole order at the
  sew/finish stage, regardless of cut progress.
*/
package material

import (
	"github.com/shopspring/decimal"
	"github.com/warp/production-ledger/ledger"
)

// =============================================================================
// PRODUCT TYPES
// =============================================================================

// ProductType classifies a BOM component's consumption behavior.
type ProductType string

const (
	TypeFabric    ProductType = "FABRIC"
	TypeTrim      ProductType = "TRIM"
	TypePackaging ProductType = "PACKAGING"
)

// ConsumptionRateSensitive reports whether the type consumes against
// remaining-to-cut rather than the full order.
func (t ProductType) ConsumptionRateSensitive() bool {
	return t == TypeFabric
}

// =============================================================================
// COSTING LINE - One BOM component of an assembly
// =============================================================================

// CostingLine is one bill-of-materials component seeded from the product
// template when the assembly is created.
type CostingLine struct {
	AssemblyID   string
	ProductID    string
	ProductType  ProductType
	QtyPerUnit   decimal.Decimal
	Stage        ledger.Stage // consumption stage for the component
	Enabled      bool
	StockTracked bool
}

// =============================================================================
// DEMAND ROW - Derived per (assembly, costing line)
// =============================================================================

// DemandRow is the derived material demand for one costing line, with the
// full calculation trace for dashboards and debugging.
type DemandRow struct {
	AssemblyID  string
	ProductID   string
	ProductType ProductType
	QtyRequired decimal.Decimal

	// Calculation trace
	OrderQty       decimal.Decimal
	OrderQtySource string
	CutGoodQty     decimal.Decimal
	RemainingToCut decimal.Decimal
	QtyPerUnit     decimal.Decimal
	Stage          ledger.Stage
}
