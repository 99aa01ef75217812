/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Engine results are
  returned at full precision; summary blocks carry money rounded to paise
  for display.

NAMING CONVENTION:
  - *Request:  Request body types from clients
  - *Response: Response wrappers
  - *DTO:      Nested response values

VALIDATION:
  Validation is done in handlers, not in DTOs. Scenario bodies go through
  scenario.Parse, which applies the lenient numeric rules.

SEE ALSO:
  - handlers.go: Uses these types
  - scenario/scenario.go: Data, the scenario body shape
*/
package api

import (
	"math"

	"github.com/shopspring/decimal"
	"github.com/warp/tranche-engine/amortization"
	"github.com/warp/tranche-engine/scenario"
)

// =============================================================================
// CALCULATOR TYPES
// =============================================================================

// InstallmentRequest asks for the fixed EMI of a fully disbursed loan.
type InstallmentRequest struct {
	Principal         float64 `json:"principal"`
	AnnualRatePercent float64 `json:"annualRatePercent"`
	TermYears         int     `json:"termYears"`
}

// InstallmentResponse is the EMI and the number of installments.
type InstallmentResponse struct {
	Installment float64 `json:"installment"`
	Months      int     `json:"months"`
}

// BaselineRequest describes the single-disbursement reference loan.
type BaselineRequest struct {
	StatedPrincipal   float64 `json:"statedPrincipal"`
	AnnualRatePercent float64 `json:"annualRatePercent"`
	TenureYears       int     `json:"tenureYears"`
}

// RatesRequest compares candidate annual rates on one loan.
type RatesRequest struct {
	Principal   float64   `json:"principal"`
	TenureYears int       `json:"tenureYears"`
	Rates       []float64 `json:"rates"`
}

// ProjectionResponse is one projected prepayment amount.
type ProjectionResponse struct {
	Month       int                      `json:"month"`
	Amount      float64                  `json:"amount"`
	Compounding amortization.Compounding `json:"compounding"`
}

// =============================================================================
// SCHEDULE TYPES
// =============================================================================

// RunSummaryDTO is the headline of one run, rounded for display.
type RunSummaryDTO struct {
	Policy                  amortization.AccrualPolicy `json:"policy"`
	TotalInterest           float64                    `json:"totalInterest"`
	TotalPayment            float64                    `json:"totalPayment"`
	TotalDisbursed          float64                    `json:"totalDisbursed"`
	ActualTenureMonths      int                        `json:"actualTenureMonths"`
	FinalMonthlyInstallment float64                    `json:"finalMonthlyInstallment"`
	Incomplete              bool                       `json:"incomplete"`
	Residual                float64                    `json:"residual,omitempty"`
	Undisbursed             float64                    `json:"undisbursed,omitempty"`
}

// WarningDTO reports one coerced input record.
type WarningDTO struct {
	Kind    string `json:"kind"`
	Index   int    `json:"index"`
	Field   string `json:"field"`
	Raw     string `json:"raw,omitempty"`
	Message string `json:"message"`
}

// ScheduleResponse is a run plus everything the schedule view shows
// around it.
type ScheduleResponse struct {
	Summary       RunSummaryDTO                `json:"summary"`
	Result        *amortization.RunResult      `json:"result"`
	Baseline      amortization.BaselineResult  `json:"baseline"`
	InterestSaved float64                      `json:"interestSaved"`
	Disbursement  scenario.DisbursementSummary `json:"disbursement"`
	Prepayments   scenario.PrepaymentSummary   `json:"prepayments"`
	Warnings      []WarningDTO                 `json:"warnings"`
	Cached        bool                         `json:"cached"`
}

// CompareResponse is the interest-only versus full-from-start comparison.
type CompareResponse struct {
	InterestOnly               RunSummaryDTO                  `json:"interestOnly"`
	FullFromStart              RunSummaryDTO                  `json:"fullFromStart"`
	ConstructionCashDifference float64                        `json:"constructionCashDifference"`
	InterestDifference         float64                        `json:"interestDifference"`
	TenureDifference           int                            `json:"tenureDifference"`
	BreakEvenMonth             int                            `json:"breakEvenMonth"`
	HasBreakEven               bool                           `json:"hasBreakEven"`
	Comparison                 *amortization.ComparisonResult `json:"comparison"`
	Warnings                   []WarningDTO                   `json:"warnings"`
	Cached                     bool                           `json:"cached"`
}

// =============================================================================
// SCENARIO TYPES
// =============================================================================

// SaveScenarioRequest names a scenario body for saving.
type SaveScenarioRequest struct {
	Name string        `json:"name"`
	Data scenario.Data `json:"data"`
}

// ScenarioDTO is a saved scenario in list responses.
type ScenarioDTO struct {
	ID           string                       `json:"id"`
	Name         string                       `json:"name"`
	Timestamp    string                       `json:"timestamp"`
	Disbursement scenario.DisbursementSummary `json:"disbursement"`
}

// ImportResponse reports how many scenarios an import stored.
type ImportResponse struct {
	Imported int `json:"imported"`
}

// PresetDTO describes a built-in loan setup.
type PresetDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"` // "disbursement" or "prepayment"
}

// LoadPresetRequest selects a preset by id.
type LoadPresetRequest struct {
	PresetID string `json:"preset_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

// money rounds half away from zero to two places. Non-finite values, which
// the engine never returns, map to 0 rather than panicking.
func money(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

func toRunSummary(r *amortization.RunResult) RunSummaryDTO {
	if r == nil {
		return RunSummaryDTO{}
	}
	return RunSummaryDTO{
		Policy:                  r.Policy,
		TotalInterest:           money(r.TotalInterest),
		TotalPayment:            money(r.TotalPayment),
		TotalDisbursed:          money(r.TotalDisbursed),
		ActualTenureMonths:      r.ActualTenureMonths,
		FinalMonthlyInstallment: money(r.FinalMonthlyInstallment),
		Incomplete:              r.Incomplete,
		Residual:                money(r.Residual),
		Undisbursed:             money(r.Undisbursed),
	}
}

func toWarningDTOs(ws []amortization.MalformedRecordWarning) []WarningDTO {
	dtos := make([]WarningDTO, len(ws))
	for i, w := range ws {
		dtos[i] = WarningDTO{
			Kind:    w.Kind,
			Index:   w.Index,
			Field:   w.Field,
			Raw:     w.Raw,
			Message: w.Error(),
		}
	}
	return dtos
}

func toScenarioDTO(s scenario.Scenario) ScenarioDTO {
	return ScenarioDTO{
		ID:           s.ID,
		Name:         s.Name,
		Timestamp:    s.Timestamp,
		Disbursement: s.Data.DisbursementSummary(),
	}
}

func toCompareResponse(c *amortization.ComparisonResult, warnings []WarningDTO) CompareResponse {
	return CompareResponse{
		InterestOnly:               toRunSummary(c.InterestOnly),
		FullFromStart:              toRunSummary(c.FullFromStart),
		ConstructionCashDifference: money(c.ConstructionCashDifference()),
		InterestDifference:         money(c.InterestDifference),
		TenureDifference:           c.TenureDifference,
		BreakEvenMonth:             c.BreakEvenMonth,
		HasBreakEven:               c.HasBreakEven,
		Comparison:                 c,
		Warnings:                   warnings,
	}
}
