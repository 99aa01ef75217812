/*
handlers.go - HTTP API handlers for the tranche loan engine

PURPOSE:
  Exposes the amortization engine and scenario storage via REST API.
  Handles HTTP request/response, JSON serialization, and delegates to the
  engine and the scenario package.

ENDPOINTS:
  Calculators:
    POST   /api/installment            Fixed EMI for a fully disbursed loan
    POST   /api/baseline               Single-disbursement reference loan
    POST   /api/rates/compare          Baseline over candidate rates
    GET    /api/prepayments/project    Growth-projected prepayment amount

  Schedules:
    POST   /api/schedule               Run a scenario body
    POST   /api/compare                Interest-only vs full-from-start

  Scenarios:
    GET    /api/scenarios              List saved scenarios
    POST   /api/scenarios              Save (upsert by name)
    GET    /api/scenarios/{name}       Load
    DELETE /api/scenarios/{name}       Delete
    POST   /api/scenarios/{name}/run   Run a saved scenario
    GET    /api/export                 Export bundle
    POST   /api/import                 Import bundle (replaces all)
    GET    /api/autosave               Working copy
    PUT    /api/autosave               Overwrite working copy

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store:   scenario persistence (sqlite or memory)
  - Engine:  logging and metrics wrapper over the pure scheduler
  - Cache:   optional result cache for schedule and compare

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed bodies, invalid loan parameters, no positive tranche
  - 404: Scenario not found
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - presets.go: Built-in loan setups
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/tranche-engine/amortization"
	"github.com/warp/tranche-engine/cache"
	"github.com/warp/tranche-engine/observability"
	"github.com/warp/tranche-engine/scenario"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   scenario.Store
	Engine  *amortization.Engine
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Cache is optional; nil disables result caching.
	Cache    cache.Cache
	CacheTTL time.Duration

	now func() time.Time
}

// NewHandler creates a handler over store. logger and metrics may be nil.
func NewHandler(store scenario.Store, logger *zap.Logger, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := amortization.NewEngine(logger, nil)
	if metrics != nil {
		engine.Metrics = metrics
	}
	return &Handler{
		Store:    store,
		Engine:   engine,
		Logger:   logger,
		Metrics:  metrics,
		CacheTTL: 10 * time.Minute,
		now:      time.Now,
	}
}

// =============================================================================
// CALCULATOR HANDLERS
// =============================================================================

// Installment returns the fixed EMI.
func (h *Handler) Installment(w http.ResponseWriter, r *http.Request) {
	var req InstallmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validateLoan(req.Principal, req.AnnualRatePercent, req.TermYears); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid loan", err)
		return
	}

	emi := amortization.Installment(req.Principal, req.AnnualRatePercent, req.TermYears)
	if math.IsInf(emi, 0) || math.IsNaN(emi) {
		writeError(w, http.StatusBadRequest, "Invalid loan", &amortization.RangeError{Quantity: "installment"})
		return
	}

	writeJSON(w, http.StatusOK, InstallmentResponse{
		Installment: emi,
		Months:      req.TermYears * 12,
	})
}

// Baseline returns the single-disbursement reference loan.
func (h *Handler) Baseline(w http.ResponseWriter, r *http.Request) {
	var req BaselineRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := validateLoan(req.StatedPrincipal, req.AnnualRatePercent, req.TenureYears); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid loan", err)
		return
	}

	baseline := amortization.Baseline(req.StatedPrincipal, req.AnnualRatePercent, req.TenureYears)
	if err := baseline.Err(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid loan", err)
		return
	}
	writeJSON(w, http.StatusOK, baseline)
}

// CompareRates ranks candidate rates by total interest.
func (h *Handler) CompareRates(w http.ResponseWriter, r *http.Request) {
	var req RatesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Rates) == 0 {
		writeError(w, http.StatusBadRequest, "At least one rate is required", nil)
		return
	}
	for _, rate := range req.Rates {
		if err := validateLoan(req.Principal, rate, req.TenureYears); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid loan", err)
			return
		}
	}

	cmp := amortization.CompareRates(req.Principal, req.TenureYears, req.Rates)
	for _, o := range cmp.Options {
		if err := o.Err(); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid loan", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, cmp)
}

// ProjectPrepayment projects a growing prepayment to a month.
// Query: month, base, rate (annual percent), compounding (annual|monthly).
func (h *Handler) ProjectPrepayment(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	month, err := strconv.Atoi(q.Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}
	base, err := strconv.ParseFloat(q.Get("base"), 64)
	if err != nil || base < 0 || math.IsInf(base, 0) {
		writeError(w, http.StatusBadRequest, "Invalid base amount", err)
		return
	}
	rate := 0.0
	if raw := q.Get("rate"); raw != "" {
		if rate, err = strconv.ParseFloat(raw, 64); err != nil || math.IsInf(rate, 0) {
			writeError(w, http.StatusBadRequest, "Invalid growth rate", err)
			return
		}
	}
	compounding := amortization.CompoundAnnual
	if raw := q.Get("compounding"); raw != "" {
		compounding = amortization.Compounding(strings.ToLower(raw))
		if !compounding.IsValid() {
			writeError(w, http.StatusBadRequest, "Invalid compounding (use annual or monthly)", nil)
			return
		}
	}

	amount := amortization.ProjectPrepaymentAmount(month, base, rate, compounding)
	if math.IsInf(amount, 0) || math.IsNaN(amount) {
		writeError(w, http.StatusBadRequest, "Projection out of numeric range", nil)
		return
	}

	writeJSON(w, http.StatusOK, ProjectionResponse{
		Month:       month,
		Amount:      amount,
		Compounding: compounding,
	})
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// Schedule runs the scenario body under its accrual policy.
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	s, ok := parseScenarioBody(w, r)
	if !ok {
		return
	}
	h.respondSchedule(w, r, s.Data)
}

// Compare runs the scenario body under both upfront policies.
func (h *Handler) Compare(w http.ResponseWriter, r *http.Request) {
	s, ok := parseScenarioBody(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	key, err := cache.Key("compare", s.Data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compare", err)
		return
	}
	resp, hit, err := cache.Remember(ctx, h.Cache, key, h.CacheTTL, h.cacheFailed, func() (CompareResponse, error) {
		in, err := s.Data.ToEngineInputs(h.Engine)
		if err != nil {
			return CompareResponse{}, err
		}
		c, err := h.Engine.Compare(ctx, in.Params, in.Tranches, in.Prepayments)
		if err != nil {
			return CompareResponse{}, err
		}
		return toCompareResponse(c, toWarningDTOs(in.Warnings)), nil
	})
	if err != nil {
		h.writeFailure(w, "Failed to compare", err)
		return
	}
	h.observeCache("compare", hit)

	resp.Cached = hit
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) respondSchedule(w http.ResponseWriter, r *http.Request, data scenario.Data) {
	ctx := r.Context()

	key, err := cache.Key("schedule", data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute schedule", err)
		return
	}
	resp, hit, err := cache.Remember(ctx, h.Cache, key, h.CacheTTL, h.cacheFailed, func() (ScheduleResponse, error) {
		return h.computeSchedule(ctx, data)
	})
	if err != nil {
		h.writeFailure(w, "Failed to compute schedule", err)
		return
	}
	h.observeCache("schedule", hit)

	resp.Cached = hit
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) computeSchedule(ctx context.Context, data scenario.Data) (ScheduleResponse, error) {
	in, err := data.ToEngineInputs(h.Engine)
	if err != nil {
		return ScheduleResponse{}, err
	}
	result, err := h.Engine.Run(ctx, in.Params, in.Tranches, in.Prepayments)
	if err != nil {
		return ScheduleResponse{}, err
	}

	p := in.Params
	baseline := amortization.Baseline(p.StatedPrincipal, p.AnnualRatePercent, p.TenureYears)
	if err := baseline.Err(); err != nil {
		return ScheduleResponse{}, err
	}
	return ScheduleResponse{
		Summary:       toRunSummary(result),
		Result:        result,
		Baseline:      baseline,
		InterestSaved: amortization.InterestSaved(baseline, result),
		Disbursement:  data.DisbursementSummary(),
		Prepayments:   data.PrepaymentSummary(),
		Warnings:      toWarningDTOs(in.Warnings),
	}, nil
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns all saved scenarios in save order.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	saved, err := h.Store.List(r.Context())
	if err != nil {
		h.writeFailure(w, "Failed to list scenarios", err)
		return
	}

	dtos := make([]ScenarioDTO, len(saved))
	for i, s := range saved {
		dtos[i] = toScenarioDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveScenario saves the body under its name, replacing any scenario with
// the same name.
func (h *Handler) SaveScenario(w http.ResponseWriter, r *http.Request) {
	var req SaveScenarioRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx := r.Context()

	s := scenario.New(req.Name, req.Data, h.now())
	if err := h.Store.Save(ctx, s); err != nil {
		h.writeFailure(w, "Failed to save scenario", err)
		return
	}
	saved, err := h.Store.Get(ctx, s.Name)
	if err != nil {
		h.writeFailure(w, "Failed to load saved scenario", err)
		return
	}

	h.Logger.Info("scenario saved", zap.String("name", saved.Name), zap.String("id", saved.ID))
	writeJSON(w, http.StatusCreated, saved)
}

// GetScenario returns one saved scenario.
func (h *Handler) GetScenario(w http.ResponseWriter, r *http.Request) {
	s, err := h.Store.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeFailure(w, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// DeleteScenario removes one saved scenario.
func (h *Handler) DeleteScenario(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.Store.Delete(r.Context(), name); err != nil {
		h.writeFailure(w, "Failed to delete scenario", err)
		return
	}

	h.Logger.Info("scenario deleted", zap.String("name", name))
	w.WriteHeader(http.StatusNoContent)
}

// RunScenario runs a saved scenario.
func (h *Handler) RunScenario(w http.ResponseWriter, r *http.Request) {
	s, err := h.Store.Get(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		h.writeFailure(w, "Failed to load scenario", err)
		return
	}
	h.respondSchedule(w, r, s.Data)
}

// Export returns every saved scenario plus the working copy.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	b, err := scenario.Export(r.Context(), h.Store, h.now())
	if err != nil {
		h.writeFailure(w, "Failed to export scenarios", err)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="loan-scenarios-%s.json"`, h.now().UTC().Format("2006-01-02")))
	writeJSON(w, http.StatusOK, b)
}

// Import replaces the saved scenarios with an export bundle.
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	b, err := scenario.ParseBundle(r.Body)
	if err != nil {
		h.writeFailure(w, "Invalid export bundle", err)
		return
	}

	n, err := scenario.Import(r.Context(), h.Store, b, h.now())
	if err != nil {
		h.writeFailure(w, "Failed to import scenarios", err)
		return
	}

	h.Logger.Info("scenarios imported", zap.Int("count", n))
	writeJSON(w, http.StatusOK, ImportResponse{Imported: n})
}

// GetAutosave returns the working copy, or null when none was saved.
func (h *Handler) GetAutosave(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Store.LoadAutosave(r.Context())
	if err != nil {
		h.writeFailure(w, "Failed to load autosave", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// PutAutosave overwrites the working copy, stamping it with the save time.
func (h *Handler) PutAutosave(w http.ResponseWriter, r *http.Request) {
	var snap scenario.Autosave
	if !decodeBody(w, r, &snap) {
		return
	}
	snap.SavedAt = h.now().UTC().Format(time.RFC3339)

	if err := h.Store.SaveAutosave(r.Context(), snap); err != nil {
		h.writeFailure(w, "Failed to save autosave", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ResetDatabase clears all scenarios and the working copy.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		h.writeFailure(w, "Failed to reset database", err)
		return
	}

	h.Logger.Warn("scenario store reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
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

// writeFailure maps domain errors to 404, 400 or 500.
func (h *Handler) writeFailure(w http.ResponseWriter, message string, err error) {
	switch {
	case scenario.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case scenario.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.Logger.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// parseScenarioBody accepts bare scenario data or a {name, data} wrapper.
func parseScenarioBody(w http.ResponseWriter, r *http.Request) (*scenario.Scenario, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	s, err := scenario.Parse(r.Body, scenario.FormatJSON)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid scenario", err)
		return nil, false
	}
	return s, true
}

func validateLoan(principal, annualRatePercent float64, years int) error {
	switch {
	case principal < 0 || math.IsNaN(principal) || math.IsInf(principal, 0):
		return errors.New("principal must be a non-negative number")
	case annualRatePercent < 0 || math.IsNaN(annualRatePercent) || math.IsInf(annualRatePercent, 0):
		return errors.New("annual rate must be a non-negative number")
	case years < 1:
		return errors.New("term must be at least one year")
	case years > amortization.MaxTenureYears:
		return fmt.Errorf("term must be at most %d years", amortization.MaxTenureYears)
	}
	return nil
}

func (h *Handler) cacheFailed(err error) {
	h.Logger.Warn("result cache unavailable", zap.Error(err))
}

func (h *Handler) observeCache(ns string, hit bool) {
	if h.Cache != nil && h.Metrics != nil {
		h.Metrics.ObserveCache(ns, hit)
	}
}
