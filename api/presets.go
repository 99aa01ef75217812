/*
presets.go - Built-in loan setups for demos and quick starts

PURPOSE:
  Provides pre-built scenario data that exercises each part of the engine:
  single disbursement, construction-linked tranches, prepayments and growing
  prepayments.

AVAILABLE PRESETS:
  single-disbursement:  Whole loan released at month 0, no construction
  construction-50-50:   Two equal tranches six months apart, 18-month build
  construction-slabs:   Five slab-linked tranches plus lump-sum prepayments
  growing-prepayments:  Yearly prepayments growing 5% a year

USAGE VIA API:
  POST /api/presets/load
  {"preset_id": "construction-50-50"}

  The preset becomes the autosaved working copy and is returned. Saved
  scenarios are left untouched.

ADDING NEW PRESETS:
  1. Add to 'presets' slice with ID, name, description
  2. Add a case to presetData

SEE ALSO:
  - handlers.go: autosave handlers
  - scenario/scenario.go: Data and its defaults
*/
package api

import (
	"net/http"
	"time"

	"github.com/warp/tranche-engine/amortization"
	"github.com/warp/tranche-engine/scenario"
	"go.uber.org/zap"
)

// =============================================================================
// PRESET DEFINITIONS
// =============================================================================

var presets = []PresetDTO{
	{
		ID:          "single-disbursement",
		Name:        "Single Disbursement",
		Description: "Whole loan released up front; matches the fixed-EMI baseline",
		Category:    "disbursement",
	},
	{
		ID:          "construction-50-50",
		Name:        "Construction 50/50",
		Description: "Half at booking, half after six months; interest-only during an 18-month build",
		Category:    "disbursement",
	},
	{
		ID:          "construction-slabs",
		Name:        "Construction Slabs",
		Description: "Five slab-linked tranches with lump-sum prepayments after possession",
		Category:    "disbursement",
	},
	{
		ID:          "growing-prepayments",
		Name:        "Growing Prepayments",
		Description: "Yearly prepayments starting at 1,00,000 and growing 5% a year",
		Category:    "prepayment",
	},
}

func presetData(id string) (scenario.Data, bool) {
	base := scenario.Data{
		StartDate:           scenario.DefaultStartDate,
		StatedPrincipal:     amortization.Num(scenario.DefaultPrincipal),
		AnnualRatePercent:   amortization.Num(scenario.DefaultAnnualRatePercent),
		TenureYears:         amortization.Num(scenario.DefaultTenureYears),
		ExtraMonthlyPayment: amortization.Num(0),
		ConstructionMonths:  amortization.Num(scenario.DefaultConstructionMonths),
		AccrualPolicy:       amortization.PolicyInterestOnlyDuringConstruction,
	}
	p := scenario.DefaultPrincipal

	switch id {
	case "single-disbursement":
		base.ConstructionMonths = amortization.Num(0)
		base.AccrualPolicy = amortization.PolicyRecomputeOnDisbursement
		base.Tranches = []amortization.RawEvent{amortization.Event(0, p)}
	case "construction-50-50":
		base.Tranches = []amortization.RawEvent{
			amortization.Event(0, p*0.5),
			amortization.Event(6, p*0.5),
		}
	case "construction-slabs":
		base.Tranches = []amortization.RawEvent{
			amortization.Event(0, p*0.10),
			amortization.Event(3, p*0.15),
			amortization.Event(6, p*0.20),
			amortization.Event(10, p*0.25),
			amortization.Event(14, p*0.30),
		}
		base.Prepayments = []amortization.RawEvent{
			amortization.Event(24, 500_000),
			amortization.Event(36, 500_000),
			amortization.Event(48, 1_000_000),
		}
	case "growing-prepayments":
		base.ConstructionMonths = amortization.Num(0)
		base.AccrualPolicy = amortization.PolicyFullFromStart
		base.Tranches = []amortization.RawEvent{amortization.Event(0, p)}
		base.PrepaymentGrowth = &amortization.GrowthRule{
			BaseAmount:       100_000,
			AnnualGrowthRate: 5,
			Compounding:      amortization.CompoundAnnual,
		}
		for _, m := range []int{12, 24, 36, 48, 60} {
			base.Prepayments = append(base.Prepayments, amortization.RawEvent{Month: amortization.Num(float64(m))})
		}
	default:
		return scenario.Data{}, false
	}
	return base, true
}

// =============================================================================
// PRESET HANDLERS
// =============================================================================

// ListPresets returns the available presets.
func (h *Handler) ListPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, presets)
}

// LoadPreset makes a preset the working copy and returns it.
func (h *Handler) LoadPreset(w http.ResponseWriter, r *http.Request) {
	var req LoadPresetRequest
	if !decodeBody(w, r, &req) {
		return
	}

	data, ok := presetData(req.PresetID)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown preset: "+req.PresetID, nil)
		return
	}

	snap := scenario.Autosave{
		Name:    presetName(req.PresetID),
		SavedAt: h.now().UTC().Format(time.RFC3339),
		Data:    data,
	}
	if err := h.Store.SaveAutosave(r.Context(), snap); err != nil {
		h.writeFailure(w, "Failed to load preset", err)
		return
	}

	h.Logger.Info("preset loaded", zap.String("preset", req.PresetID))
	writeJSON(w, http.StatusOK, snap)
}

func presetName(id string) string {
	for _, p := range presets {
		if p.ID == id {
			return p.Name
		}
	}
	return id
}
