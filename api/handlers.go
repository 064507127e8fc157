/*
handlers.go - HTTP handlers over the stage quantity engine

PURPOSE:
  Thin translation layer: decode the DTO, call the engine/writers, map the
  error taxonomy onto HTTP status codes, encode the response. No business
  rules live here.

ERROR MAPPING:
  ledger.IsClientError        -> 422 (validation: ceilings, zero quantity)
  ledger.IsNotFound           -> 404
  ledger.IsInvariantViolation -> 500 (corrupt data/bug; logged at error)
  anything else               -> 500

SEE ALSO:
  - dto.go: Request/response shapes
  - server.go: Routing
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/warp/production-ledger/assembly"
	"github.com/warp/production-ledger/ledger"
	"github.com/warp/production-ledger/material"
	"github.com/warp/production-ledger/store/sqlite"
	"github.com/warp/production-ledger/supply"
)

// SettingCoverageTolerance is the settings key holding the tolerance JSON.
const SettingCoverageTolerance = "coverage_tolerance"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Activities *assembly.ActivityService
	Trimmer    *supply.Trimmer
	Coverage   *material.CoverageService
	Tolerances *material.DefaultsCache
}

// NewHandler wires the engine services over one store.
func NewHandler(store *sqlite.Store) *Handler {
	tolerances := material.NewDefaultsCache(material.DefaultTTL, func(ctx context.Context) (string, error) {
		return store.GetSetting(ctx, SettingCoverageTolerance)
	})
	return &Handler{
		Store:      store,
		Activities: assembly.NewActivityService(store, store),
		Trimmer:    supply.NewTrimmer(store.Supply(), store),
		Coverage: &material.CoverageService{
			Ledger:     store,
			Costings:   store,
			Supply:     store.Supply(),
			Tolerances: tolerances,
		},
		Tolerances: tolerances,
	}
}

// =============================================================================
// ASSEMBLY HANDLERS
// =============================================================================

// ListAssemblies returns all assemblies.
func (h *Handler) ListAssemblies(w http.ResponseWriter, r *http.Request) {
	assemblies, err := h.Store.ListAssemblies(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	dtos := make([]AssemblyDTO, len(assemblies))
	for i, a := range assemblies {
		dtos[i] = toAssemblyDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAssembly creates or replaces an assembly with its BOM.
func (h *Handler) CreateAssembly(w http.ResponseWriter, r *http.Request) {
	var req CreateAssemblyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "Assembly id is required", nil)
		return
	}

	a := &assembly.Assembly{
		ID:               req.ID,
		ProductID:        req.ProductID,
		Name:             req.Name,
		OrderedBreakdown: ledger.ParseBreakdown(req.OrderedBreakdown),
		Quantity:         ledger.ParseQuantity(req.Quantity),
		AssemblyType:     assembly.Type(req.AssemblyType),
		Status:           assembly.StatusOpen,
	}
	if a.AssemblyType == "" {
		a.AssemblyType = assembly.TypeProduction
	}
	if req.TolerancePct != nil {
		d := decimal.NewFromFloat(*req.TolerancePct)
		a.TolerancePct = &d
	}
	if req.ToleranceAbs != nil {
		d := decimal.NewFromFloat(*req.ToleranceAbs)
		a.ToleranceAbs = &d
	}

	ctx := r.Context()
	if err := h.Store.SaveAssembly(ctx, a); err != nil {
		writeEngineError(w, err)
		return
	}
	if len(req.Costings) > 0 {
		lines := make([]material.CostingLine, len(req.Costings))
		for i, c := range req.Costings {
			lines[i] = material.CostingLine{
				AssemblyID:   a.ID,
				ProductID:    c.ProductID,
				ProductType:  material.ProductType(c.ProductType),
				QtyPerUnit:   ledger.ParseQuantity(c.QtyPerUnit),
				Stage:        ledger.Stage(c.Stage),
				Enabled:      c.Enabled,
				StockTracked: c.StockTracked,
			}
		}
		if err := h.Store.ReplaceCostingLines(ctx, a.ID, lines); err != nil {
			writeEngineError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, toAssemblyDTO(a))
}

// GetAssembly returns a single assembly.
func (h *Handler) GetAssembly(w http.ResponseWriter, r *http.Request) {
	a, err := h.Store.GetAssembly(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAssemblyDTO(a))
}

// GetLedgerView returns the full derived ledger state of an assembly.
func (h *Handler) GetLedgerView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	a, err := h.Store.GetAssembly(ctx, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	activities, err := h.Store.Activities(ctx, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	steps, err := h.Store.ExternalSteps(ctx, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	stats := ledger.Aggregate(activities)
	gate := ledger.ResolveExternalGate(steps)
	usage := ledger.ComputeDownstreamUsage(stats, gate)

	view := LedgerViewDTO{
		AssemblyID:        id,
		GateSource:        string(gate.Source),
		Gate:              gate.Gate.Floats(),
		FinishCap:         ledger.FinishCap(stats, gate).Floats(),
		AvailableForPack:  ledger.AvailableForPack(stats, gate).Floats(),
		OperationalStatus: string(assembly.DeriveOperationalStatus(a, stats)),
	}
	for _, stage := range ledger.Stages() {
		s := stats.Get(stage)
		view.Stages = append(view.Stages, StageStatsDTO{
			Stage:            string(stage),
			Processed:        s.Processed().Floats(),
			ReconciledDefect: s.Reconciled().Floats(),
			Usable:           s.Usable().Floats(),
			DownstreamUsed:   usage.ForStage(stage).Floats(),
			MaxReconcile:     ledger.MaxReconcile(stats, gate, stage).Floats(),
		})
	}
	writeJSON(w, http.StatusOK, view)
}

// GetActivities returns the raw activity stream of an assembly.
func (h *Handler) GetActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := h.Store.Activities(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	dtos := make([]ActivityDTO, len(activities))
	for i, act := range activities {
		dtos[i] = toActivityDTO(act)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ACTIVITY HANDLERS
// =============================================================================

func (h *Handler) decodeActivity(w http.ResponseWriter, r *http.Request) (*assembly.Assembly, *RecordActivityRequest, bool) {
	a, err := h.Store.GetAssembly(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return nil, nil, false
	}
	var req RecordActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return nil, nil, false
	}
	return a, &req, true
}

func activityDate(raw string) time.Time {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t
	}
	return time.Now()
}

// RecordCut records pooled cut output and its fabric draws.
// POST /api/assemblies/{id}/activities/cut
func (h *Handler) RecordCut(w http.ResponseWriter, r *http.Request) {
	a, req, ok := h.decodeActivity(w, r)
	if !ok {
		return
	}
	consumptions := make([]assembly.MaterialConsumption, len(req.Consumptions))
	for i, c := range req.Consumptions {
		consumptions[i] = assembly.MaterialConsumption{
			ProductID:    c.ProductID,
			Quantity:     ledger.ParseQuantity(c.Quantity),
			BatchID:      c.BatchID,
			BatchTracked: c.BatchTracked,
			FromLocation: c.FromLocation,
		}
	}
	act, err := h.Activities.RecordCut(r.Context(), assembly.CutRequest{
		Assembly:     a,
		Breakdown:    ledger.ParseBreakdown(req.Breakdown),
		ActivityDate: activityDate(req.ActivityDate),
		ActorID:      req.ActorID,
		Consumptions: consumptions,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toActivityDTO(*act))
}

// RecordPack packs finished units into a box.
// POST /api/assemblies/{id}/activities/pack
func (h *Handler) RecordPack(w http.ResponseWriter, r *http.Request) {
	a, req, ok := h.decodeActivity(w, r)
	if !ok {
		return
	}
	packReq := assembly.PackRequest{
		Assembly:     a,
		Breakdown:    ledger.ParseBreakdown(req.Breakdown),
		ActivityDate: activityDate(req.ActivityDate),
		ActorID:      req.ActorID,
	}
	if req.Box != nil {
		packReq.Box = &assembly.Box{
			ID:                  req.Box.ID,
			AssemblyID:          a.ID,
			AddressDestination:  req.Box.AddressDestination,
			LocationDestination: req.Box.LocationDestination,
		}
	}
	act, err := h.Activities.RecordPack(r.Context(), packReq)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if packReq.Box != nil {
		packReq.Box.Lines = []assembly.BoxLine{{AssemblyID: a.ID, QtyBreakdown: act.QtyBreakdown}}
		if err := h.Store.SaveBox(r.Context(), packReq.Box); err != nil {
			writeEngineError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusCreated, toActivityDTO(*act))
}

// RecordRetain retains finished units to stock or the sample room.
// POST /api/assemblies/{id}/activities/retain
func (h *Handler) RecordRetain(w http.ResponseWriter, r *http.Request) {
	a, req, ok := h.decodeActivity(w, r)
	if !ok {
		return
	}
	act, err := h.Activities.RecordRetain(r.Context(), assembly.RetainRequest{
		Assembly:     a,
		Breakdown:    ledger.ParseBreakdown(req.Breakdown),
		ActivityDate: activityDate(req.ActivityDate),
		ActorID:      req.ActorID,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toActivityDTO(*act))
}

// Reconcile recovers defect slack at a stage.
// POST /api/assemblies/{id}/reconcile
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	a, err := h.Store.GetAssembly(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	var req ReconcileRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	act, err := h.Activities.Reconcile(r.Context(), assembly.ReconcileRequest{
		AssemblyID:   a.ID,
		Stage:        ledger.Stage(req.Stage),
		Breakdown:    ledger.ParseBreakdown(req.Breakdown),
		ActivityDate: time.Now(),
		ActorID:      req.ActorID,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toActivityDTO(*act))
}

// UpsertExternalStep records vendor sent/received state for one step.
// PUT /api/assemblies/{id}/external-steps
func (h *Handler) UpsertExternalStep(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.Store.GetAssembly(r.Context(), id); err != nil {
		writeEngineError(w, err)
		return
	}
	var req ExternalStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.StepType == "" {
		writeError(w, http.StatusBadRequest, "stepType is required", nil)
		return
	}
	step := ledger.ExternalStep{
		StepType:        req.StepType,
		VendorCompanyID: req.VendorCompanyID,
		Sent:            ledger.ParseBreakdown(req.Sent),
		Received:        ledger.ParseBreakdown(req.Received),
	}
	if err := h.Store.UpsertExternalStep(r.Context(), id, step); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// MATERIAL HANDLERS
// =============================================================================

// GetMaterialCoverage returns the derived demand/coverage view.
// GET /api/assemblies/{id}/materials
func (h *Handler) GetMaterialCoverage(w http.ResponseWriter, r *http.Request) {
	a, err := h.Store.GetAssembly(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	rows, err := h.Coverage.AssemblyCoverage(r.Context(), a)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	dtos := make([]CoverageRowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toCoverageRowDTO(row)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"assemblyId": a.ID,
		"blocked":    material.Blocked(rows),
		"materials":  dtos,
	})
}

// =============================================================================
// SUPPLY HANDLERS
// =============================================================================

// SavePurchaseOrderLine creates or replaces a PO line.
// POST /api/purchase-order-lines
func (h *Handler) SavePurchaseOrderLine(w http.ResponseWriter, r *http.Request) {
	var req PurchaseOrderLineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "Purchase order line id is required", nil)
		return
	}
	line := supply.PurchaseOrderLine{
		ID:              req.ID,
		ProductID:       req.ProductID,
		Quantity:        ledger.ParseQuantity(req.Quantity),
		QuantityOrdered: ledger.ParseQuantity(req.QuantityOrdered),
		QtyReceived:     ledger.ParseQuantity(req.QtyReceived),
	}
	if err := h.Store.Supply().SavePurchaseOrderLine(r.Context(), line); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": line.ID})
}

// SaveReservation creates or replaces a reservation.
// POST /api/reservations
func (h *Handler) SaveReservation(w http.ResponseWriter, r *http.Request) {
	var req ReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	createdAt := time.Now()
	if t, err := time.Parse(time.RFC3339, req.CreatedAt); err == nil {
		createdAt = t
	}
	res := supply.Reservation{
		ID:                  req.ID,
		PurchaseOrderLineID: req.PurchaseOrderLineID,
		BatchID:             req.BatchID,
		AssemblyID:          req.AssemblyID,
		ProductID:           req.ProductID,
		QtyReserved:         ledger.ParseQuantity(req.QtyReserved),
		CreatedAt:           createdAt,
	}
	if err := h.Store.Supply().SaveReservation(r.Context(), res); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": res.ID})
}

// TrimReservations prunes over-reservation against a PO line.
// POST /api/purchase-order-lines/{id}/trim
func (h *Handler) TrimReservations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	result, err := h.Trimmer.TrimReservationsToExpected(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if result == nil {
		writeError(w, http.StatusNotFound, "Purchase order line not found", nil)
		return
	}
	f := func(d decimal.Decimal) float64 { v, _ := d.Float64(); return v }
	writeJSON(w, http.StatusOK, TrimResultDTO{
		PurchaseOrderLineID: result.PurchaseOrderLineID,
		ReservedBefore:      f(result.ReservedBefore),
		ReservedAfter:       f(result.ReservedAfter),
		ExpectedQty:         f(result.ExpectedQty),
		QtyReceived:         f(result.QtyReceived),
		Trimmed:             f(result.Trimmed),
		Strategy:            result.Strategy,
	})
}

// SettleReservations settles all active reservations for a pair.
// POST /api/assemblies/{id}/products/{productId}/settle
func (h *Handler) SettleReservations(w http.ResponseWriter, r *http.Request) {
	result, err := h.Trimmer.SettleReservationsForAssemblyProduct(
		r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "productId"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	before, _ := result.ReservedBefore.Float64()
	writeJSON(w, http.StatusOK, map[string]any{
		"settled":        result.Settled,
		"reservedBefore": before,
		"settledAt":      result.SettledAt.Format(time.RFC3339),
	})
}

// =============================================================================
// SETTINGS HANDLERS
// =============================================================================

// GetToleranceSettings returns the raw coverage tolerance JSON.
// GET /api/settings/coverage-tolerance
func (h *Handler) GetToleranceSettings(w http.ResponseWriter, r *http.Request) {
	raw, err := h.Store.GetSetting(r.Context(), SettingCoverageTolerance)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if raw == "" {
		raw = "{}"
	}
	w.Write([]byte(raw))
}

// PutToleranceSettings stores new tolerance JSON and drops the cache.
// PUT /api/settings/coverage-tolerance
func (h *Handler) PutToleranceSettings(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	if err := h.Store.SetSetting(r.Context(), SettingCoverageTolerance, string(raw)); err != nil {
		writeEngineError(w, err)
		return
	}
	h.Tolerances.Invalidate()

	// Settings changes are audited; a failed audit write must not fail the
	// committed settings write.
	_ = h.Store.AppendAudit(r.Context(), ledger.AuditEntry{
		ID:        fmt.Sprintf("audit-tolerance-%d", time.Now().UnixNano()),
		Timestamp: time.Now(),
		Action:    ledger.AuditToleranceChanged,
		Payload:   map[string]any{"setting": SettingCoverageTolerance, "value": string(raw)},
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case ledger.IsClientError(err):
		writeError(w, http.StatusUnprocessableEntity, "Validation failed", err)
	case ledger.IsInvariantViolation(err):
		log.Printf("ERROR invariant violation: %v", err)
		writeError(w, http.StatusInternalServerError, "Data integrity violation", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
