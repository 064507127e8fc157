package material

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/warp/production-ledger/assembly"
	"github.com/warp/production-ledger/ledger"
)

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestRemainingToCut(t *testing.T) {
	tests := []struct {
		order, cut, want float64
	}{
		{100, 30, 70},
		{100, 100, 0},
		{100, 120, 0}, // over-cut clamps, never negative demand
	}
	for _, tt := range tests {
		got := RemainingToCut(dec(tt.order), dec(tt.cut))
		if !got.Equal(dec(tt.want)) {
			t.Errorf("RemainingToCut(%v, %v) = %s, want %v", tt.order, tt.cut, got, tt.want)
		}
	}
}

func TestBuildDemandRows(t *testing.T) {
	asm := &assembly.Assembly{
		ID:               "asm-1",
		OrderedBreakdown: ledger.NewBreakdown(60, 40),
		Status:           assembly.StatusOpen,
	}
	costings := []CostingLine{
		{ProductID: "fabric-1", ProductType: TypeFabric, QtyPerUnit: dec(1.5), Stage: ledger.StageCut, Enabled: true, StockTracked: true},
		{ProductID: "trim-1", ProductType: TypeTrim, QtyPerUnit: dec(2), Stage: ledger.StageSew, Enabled: true, StockTracked: true},
		{ProductID: "bag-1", ProductType: TypePackaging, QtyPerUnit: dec(1), Stage: ledger.StageFinish, Enabled: true, StockTracked: true},
		{ProductID: "trim-cut", ProductType: TypeTrim, QtyPerUnit: dec(1), Stage: ledger.StageCut, Enabled: true, StockTracked: true},
		{ProductID: "disabled", ProductType: TypeFabric, QtyPerUnit: dec(1), Stage: ledger.StageCut, StockTracked: true},
		{ProductID: "untracked", ProductType: TypeFabric, QtyPerUnit: dec(1), Stage: ledger.StageCut, Enabled: true},
		{ProductID: "zero-rate", ProductType: TypeFabric, Stage: ledger.StageCut, Enabled: true, StockTracked: true},
	}

	rows := BuildDemandRows(asm, costings, dec(30))
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3 (fabric, trim at sew, packaging at finish)", len(rows))
	}

	byProduct := map[string]DemandRow{}
	for _, r := range rows {
		byProduct[r.ProductID] = r
	}

	// Fabric scales with remaining-to-cut: (100 - 30) * 1.5.
	fabric := byProduct["fabric-1"]
	if !fabric.QtyRequired.Equal(dec(105)) {
		t.Errorf("fabric required = %s, want 105", fabric.QtyRequired)
	}
	if !fabric.RemainingToCut.Equal(dec(70)) {
		t.Errorf("fabric remainingToCut = %s, want 70", fabric.RemainingToCut)
	}
	if fabric.OrderQtySource != assembly.SourceOrderedBreakdown {
		t.Errorf("order qty source = %q, want %q", fabric.OrderQtySource, assembly.SourceOrderedBreakdown)
	}

	// Trim and packaging scale with the full order quantity.
	if got := byProduct["trim-1"].QtyRequired; !got.Equal(dec(200)) {
		t.Errorf("trim required = %s, want 200", got)
	}
	if got := byProduct["bag-1"].QtyRequired; !got.Equal(dec(100)) {
		t.Errorf("packaging required = %s, want 100", got)
	}
}

func TestBuildDemandRowsFullyCutSkipsFabric(t *testing.T) {
	asm := &assembly.Assembly{
		ID:               "asm-1",
		OrderedBreakdown: ledger.NewBreakdown(100),
		Status:           assembly.StatusFullyCut,
	}
	costings := []CostingLine{
		{ProductID: "fabric-1", ProductType: TypeFabric, QtyPerUnit: dec(1), Stage: ledger.StageCut, Enabled: true, StockTracked: true},
		{ProductID: "trim-1", ProductType: TypeTrim, QtyPerUnit: dec(1), Stage: ledger.StageSew, Enabled: true, StockTracked: true},
	}

	rows := BuildDemandRows(asm, costings, dec(40))
	if len(rows) != 1 || rows[0].ProductID != "trim-1" {
		t.Errorf("rows = %+v, want only the trim line once fully cut", rows)
	}
}

func TestMatchCoverage(t *testing.T) {
	tol := Tolerance{Pct: dec(0.03), Abs: dec(5), Source: ToleranceSourceType}

	tests := []struct {
		name     string
		required float64
		reserved float64
		want     CoverageStatus
	}{
		{"fully reserved", 1000, 1000, StatusCovered},
		{"over reserved", 1000, 1200, StatusCovered},
		{"shortfall within band", 1000, 975, StatusPotentialUndercut}, // tolerance = max(5, 30) = 30
		{"shortfall at band edge", 1000, 970, StatusPotentialUndercut},
		{"shortfall past band", 1000, 969, StatusPOHold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := DemandRow{ProductID: "p-1", QtyRequired: dec(tt.required)}
			got := MatchCoverage(row, dec(tt.reserved), tol)
			if got.Status != tt.want {
				t.Errorf("status = %s, want %s (uncovered %s, tolerance %s)",
					got.Status, tt.want, got.Uncovered, got.ToleranceQty)
			}
			if got.Blocking() != (tt.want == StatusPOHold) {
				t.Errorf("Blocking() = %v for status %s", got.Blocking(), got.Status)
			}
		})
	}
}
