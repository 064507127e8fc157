/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers and the engine, not in DTOs. DTOs are pure
  data carriers; numeric fields coerce through ledger.ParseQuantity so
  legacy/partial payloads degrade to zero instead of erroring.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/warp/production-ledger/assembly"
	"github.com/warp/production-ledger/ledger"
	"github.com/warp/production-ledger/material"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateAssemblyRequest creates or replaces an assembly with its BOM.
type CreateAssemblyRequest struct {
	ID               string           `json:"id"`
	ProductID        string           `json:"productId"`
	Name             string           `json:"name"`
	OrderedBreakdown []any            `json:"qtyOrderedBreakdown"`
	Quantity         any              `json:"quantity"`
	AssemblyType     string           `json:"assemblyType"`
	TolerancePct     *float64         `json:"tolerancePct"`
	ToleranceAbs     *float64         `json:"toleranceAbs"`
	Costings         []CostingLineDTO `json:"costings"`
}

// CostingLineDTO is one BOM component in API form.
type CostingLineDTO struct {
	ProductID    string `json:"productId"`
	ProductType  string `json:"productType"`
	QtyPerUnit   any    `json:"qtyPerUnit"`
	Stage        string `json:"stage"`
	Enabled      bool   `json:"enabled"`
	StockTracked bool   `json:"stockTracked"`
}

// RecordActivityRequest records stage output for an assembly.
type RecordActivityRequest struct {
	Breakdown    []any  `json:"qtyBreakdown"`
	ActivityDate string `json:"activityDate"`
	ActorID      string `json:"actorId"`

	// Cut only: material draws caused by the cut.
	Consumptions []ConsumptionDTO `json:"consumptions"`

	// Pack only: destination box.
	Box *BoxDTO `json:"box"`
}

// ConsumptionDTO is one raw-material draw in API form.
type ConsumptionDTO struct {
	ProductID    string `json:"productId"`
	Quantity     any    `json:"quantity"`
	BatchID      string `json:"batchId"`
	BatchTracked bool   `json:"batchTracked"`
	FromLocation string `json:"fromLocation"`
}

// BoxDTO is a packing destination in API form.
type BoxDTO struct {
	ID                  string `json:"id"`
	AddressDestination  string `json:"addressDestination"`
	LocationDestination string `json:"locationDestination"`
}

// ReconcileRequestDTO asks to recover defect slack at a stage.
type ReconcileRequestDTO struct {
	Stage     string `json:"stage"`
	Breakdown []any  `json:"breakdown"`
	ActorID   string `json:"actorId"`
}

// ExternalStepRequest upserts vendor sent/received state for one step.
type ExternalStepRequest struct {
	StepType        string `json:"stepType"`
	VendorCompanyID string `json:"vendorCompanyId"`
	Sent            []any  `json:"sent"`
	Received        []any  `json:"received"`
}

// PurchaseOrderLineRequest creates or replaces a PO line.
type PurchaseOrderLineRequest struct {
	ID              string `json:"id"`
	ProductID       string `json:"productId"`
	Quantity        any    `json:"quantity"`
	QuantityOrdered any    `json:"quantityOrdered"`
	QtyReceived     any    `json:"qtyReceived"`
}

// ReservationRequest creates or replaces a reservation.
type ReservationRequest struct {
	ID                  string `json:"id"`
	PurchaseOrderLineID string `json:"purchaseOrderLineId"`
	BatchID             string `json:"batchId"`
	AssemblyID          string `json:"assemblyId"`
	ProductID           string `json:"productId"`
	QtyReserved         any    `json:"qtyReserved"`
	CreatedAt           string `json:"createdAt"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// AssemblyDTO represents an assembly in API responses.
type AssemblyDTO struct {
	ID               string    `json:"id"`
	ProductID        string    `json:"productId,omitempty"`
	Name             string    `json:"name"`
	OrderedBreakdown []float64 `json:"qtyOrderedBreakdown"`
	Quantity         float64   `json:"quantity"`
	AssemblyType     string    `json:"assemblyType"`
	Status           string    `json:"status"`
	OrderQty         float64   `json:"orderQty"`
	OrderQtySource   string    `json:"orderQtySource"`
}

// StageStatsDTO is one stage's derived state.
type StageStatsDTO struct {
	Stage            string    `json:"stage"`
	Processed        []float64 `json:"processedArr"`
	ReconciledDefect []float64 `json:"reconciledDefectArr"`
	Usable           []float64 `json:"usableArr"`
	DownstreamUsed   []float64 `json:"downstreamUsed"`
	MaxReconcile     []float64 `json:"maxReconcile"`
}

// LedgerViewDTO is the full derived ledger state of an assembly.
type LedgerViewDTO struct {
	AssemblyID        string          `json:"assemblyId"`
	Stages            []StageStatsDTO `json:"stages"`
	GateSource        string          `json:"gateSource"`
	Gate              []float64       `json:"gate"`
	FinishCap         []float64       `json:"finishCap"`
	AvailableForPack  []float64       `json:"availableForPack"`
	OperationalStatus string          `json:"operationalStatus"`
}

// ActivityDTO represents one ledger entry.
type ActivityDTO struct {
	ID           string    `json:"id"`
	Stage        string    `json:"stage"`
	Kind         string    `json:"kind"`
	Action       string    `json:"action"`
	QtyBreakdown []float64 `json:"qtyBreakdown"`
	Quantity     float64   `json:"quantity"`
	ActivityDate string    `json:"activityDate"`
}

// CoverageRowDTO is one material's demand and coverage.
type CoverageRowDTO struct {
	ProductID      string   `json:"productId"`
	ProductType    string   `json:"productType"`
	QtyRequired    float64  `json:"qtyRequired"`
	OrderQty       float64  `json:"orderQty"`
	OrderQtySource string   `json:"orderQtySource"`
	CutGoodQty     float64  `json:"cutGoodQty"`
	RemainingToCut float64  `json:"remainingToCut"`
	QtyPerUnit     float64  `json:"qtyPerUnit"`
	Stage          string   `json:"stage"`
	Status         string   `json:"status"`
	Reserved       float64  `json:"reserved"`
	Uncovered      float64  `json:"uncovered"`
	ToleranceQty   float64  `json:"toleranceQty"`
	ToleranceSrc   string   `json:"toleranceSource"`
	Reasons        []string `json:"reasons,omitempty"`
}

// TrimResultDTO is the audit summary of a trim pass.
type TrimResultDTO struct {
	PurchaseOrderLineID string  `json:"purchaseOrderLineId"`
	ReservedBefore      float64 `json:"reservedBefore"`
	ReservedAfter       float64 `json:"reservedAfter"`
	ExpectedQty         float64 `json:"expectedQty"`
	QtyReceived         float64 `json:"qtyReceived"`
	Trimmed             float64 `json:"trimmed"`
	Strategy            string  `json:"strategy"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toAssemblyDTO(a *assembly.Assembly) AssemblyDTO {
	order := assembly.ResolveOrderQty(a)
	qty, _ := a.Quantity.Float64()
	orderQty, _ := order.Qty.Float64()
	return AssemblyDTO{
		ID:               a.ID,
		ProductID:        a.ProductID,
		Name:             a.Name,
		OrderedBreakdown: a.OrderedBreakdown.Floats(),
		Quantity:         qty,
		AssemblyType:     string(a.AssemblyType),
		Status:           string(a.Status),
		OrderQty:         orderQty,
		OrderQtySource:   order.Source,
	}
}

func toActivityDTO(act ledger.Activity) ActivityDTO {
	qty, _ := act.Quantity.Float64()
	return ActivityDTO{
		ID:           string(act.ID),
		Stage:        string(act.Stage),
		Kind:         string(act.Kind),
		Action:       string(act.Action),
		QtyBreakdown: act.QtyBreakdown.Floats(),
		Quantity:     qty,
		ActivityDate: act.ActivityDate.Format("2006-01-02"),
	}
}

func toCoverageRowDTO(row material.CoverageRow) CoverageRowDTO {
	f := func(d interface{ Float64() (float64, bool) }) float64 {
		v, _ := d.Float64()
		return v
	}
	return CoverageRowDTO{
		ProductID:      row.Demand.ProductID,
		ProductType:    string(row.Demand.ProductType),
		QtyRequired:    f(row.Demand.QtyRequired),
		OrderQty:       f(row.Demand.OrderQty),
		OrderQtySource: row.Demand.OrderQtySource,
		CutGoodQty:     f(row.Demand.CutGoodQty),
		RemainingToCut: f(row.Demand.RemainingToCut),
		QtyPerUnit:     f(row.Demand.QtyPerUnit),
		Stage:          string(row.Demand.Stage),
		Status:         string(row.Coverage.Status),
		Reserved:       f(row.Coverage.Reserved),
		Uncovered:      f(row.Coverage.Uncovered),
		ToleranceQty:   f(row.Coverage.ToleranceQty),
		ToleranceSrc:   row.Coverage.Tolerance.Source,
		Reasons:        row.Coverage.Reasons,
	}
}
