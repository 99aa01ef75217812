/*
Package scenario is the boundary between saved loan setups and the engine.

PURPOSE:
  A scenario is a named loan setup as a user keeps it: contract terms,
  disbursement plan, prepayments. Scenario documents are lenient (numbers
  may arrive as strings, fields may be missing, older documents use other
  field names). This package turns them into typed engine inputs, applying
  the documented defaults the engine itself never assumes.

DOCUMENT SHAPE:
  {
    "name": "Tower B flat",
    "timestamp": "2026-01-10T09:00:00Z",
    "data": {
      "startDate": "2026-01",
      "statedPrincipal": 15500000,
      "annualRatePercent": "7.65",
      "tenureYears": 25,
      "extraMonthlyPayment": 0,
      "constructionMonths": 18,
      "accrualPolicy": "interestOnlyDuringConstruction",
      "tranches":    [{"month": 0, "amount": 7750000}, {"month": 6, "amount": 7750000}],
      "prepayments": [{"month": 24, "amount": 1000000}],
      "prepaymentGrowth": {"baseAmount": 200000, "annualGrowthRate": 5, "compounding": "annual"}
    }
  }

  Older documents use loanAmount, interestRate, tenure, extraEMI and
  disbursements; those names are accepted on input and never written.

DEFAULTS (missing or non-numeric fields):
  startDate 2026-01, principal 15,500,000, rate 7.65, tenure 25 years,
  extra payment 0, construction 18 months, policy interest-only during
  construction.

SEE ALSO:
  - parse.go:  JSON/YAML decoding and legacy field names
  - bundle.go: export/import of all saved scenarios
  - store.go:  persistence interface
*/
package scenario

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/tranche-engine/amortization"
)

// Documented defaults for missing scenario fields.
const (
	DefaultStartDate          = "2026-01"
	DefaultPrincipal          = 15_500_000.0
	DefaultAnnualRatePercent  = 7.65
	DefaultTenureYears        = 25
	DefaultExtraPayment       = 0.0
	DefaultConstructionMonths = 18
	DefaultAccrualPolicy      = amortization.PolicyInterestOnlyDuringConstruction
)

// =============================================================================
// TYPES
// =============================================================================

// Scenario is a named, saved loan setup.
type Scenario struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Timestamp string `json:"timestamp,omitempty"`
	Data      Data   `json:"data"`
}

// New creates a scenario with a fresh ID stamped at now.
func New(name string, data Data, now time.Time) Scenario {
	return Scenario{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Timestamp: now.UTC().Format(time.RFC3339),
		Data:      data,
	}
}

// Validate checks the scenario can be saved.
func (s Scenario) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return &InvalidError{Reason: "name is required"}
	}
	return nil
}

// Data is the loan setup of a scenario, as entered. Numeric fields are
// lenient; use Params and Events to get engine inputs.
type Data struct {
	StartDate           string                     `json:"startDate,omitempty"`
	StatedPrincipal     amortization.Number        `json:"statedPrincipal"`
	AnnualRatePercent   amortization.Number        `json:"annualRatePercent"`
	TenureYears         amortization.Number        `json:"tenureYears"`
	ExtraMonthlyPayment amortization.Number        `json:"extraMonthlyPayment"`
	ConstructionMonths  amortization.Number        `json:"constructionMonths"`
	AccrualPolicy       amortization.AccrualPolicy `json:"accrualPolicy,omitempty"`
	Tranches            []amortization.RawEvent    `json:"tranches"`
	Prepayments         []amortization.RawEvent    `json:"prepayments"`
	PrepaymentGrowth    *amortization.GrowthRule   `json:"prepaymentGrowth,omitempty"`
}

// Params returns the loan parameters with defaults applied.
func (d Data) Params() amortization.LoanParameters {
	policy := d.AccrualPolicy
	if policy == "" {
		policy = DefaultAccrualPolicy
	}
	return amortization.LoanParameters{
		StatedPrincipal:     d.StatedPrincipal.Or(DefaultPrincipal),
		AnnualRatePercent:   d.AnnualRatePercent.Or(DefaultAnnualRatePercent),
		TenureYears:         wholeOr(d.TenureYears, DefaultTenureYears),
		ExtraMonthlyPayment: d.ExtraMonthlyPayment.Or(DefaultExtraPayment),
		ConstructionMonths:  wholeOr(d.ConstructionMonths, DefaultConstructionMonths),
		AccrualPolicy:       policy,
	}
}

// Start returns the loan start month, defaulting to DefaultStartDate.
func (d Data) Start() string {
	if strings.TrimSpace(d.StartDate) == "" {
		return DefaultStartDate
	}
	return d.StartDate
}

// Events returns the raw tranche and prepayment records. When a growth rule
// is set, prepayments without a numeric amount take the projected amount for
// their month; entered amounts are kept. A non-numeric amount counts as
// missing here, as it does once the scenario is stored or exported.
func (d Data) Events() (tranches, prepayments []amortization.RawEvent) {
	if d.PrepaymentGrowth == nil {
		return d.Tranches, d.Prepayments
	}

	entries := make([]amortization.PrepaymentEntry, len(d.Prepayments))
	for i, p := range d.Prepayments {
		entries[i] = amortization.PrepaymentEntry{
			Month:  int(p.Month.Float()),
			Amount: p.Amount.Float(),
			Manual: p.Amount.Valid,
		}
	}
	projected := d.PrepaymentGrowth.Apply(entries)

	prepayments = make([]amortization.RawEvent, len(d.Prepayments))
	for i, p := range d.Prepayments {
		prepayments[i] = p
		if !entries[i].Manual {
			prepayments[i].Amount = amortization.Num(projected[i].Amount)
		}
	}
	return d.Tranches, prepayments
}

// wholeOr truncates n, clamped to the int32 range so oversized values reach
// validation as out of range.
func wholeOr(n amortization.Number, def int) int {
	if !n.Valid {
		return def
	}
	return int(math.Max(math.MinInt32, math.Min(math.MaxInt32, math.Trunc(n.Value))))
}

// =============================================================================
// ENGINE INPUTS
// =============================================================================

// Normalizer turns raw records into typed events. *amortization.Engine
// implements it and logs every coercion.
type Normalizer interface {
	Normalize(rawTranches, rawPrepayments []amortization.RawEvent) ([]amortization.Tranche, []amortization.Prepayment, []amortization.MalformedRecordWarning, error)
}

// Inputs are typed engine inputs resolved from scenario data.
type Inputs struct {
	Params      amortization.LoanParameters
	Tranches    []amortization.Tranche
	Prepayments []amortization.Prepayment
	Warnings    []amortization.MalformedRecordWarning
}

// ToEngineInputs applies defaults and normalizes the events. A nil
// normalizer uses a silent engine. Warnings are returned even on error.
func (d Data) ToEngineInputs(n Normalizer) (*Inputs, error) {
	if n == nil {
		n = &amortization.Engine{}
	}
	if d.PrepaymentGrowth != nil {
		if err := d.PrepaymentGrowth.Validate(); err != nil {
			return nil, err
		}
	}

	rawTranches, rawPrepayments := d.Events()
	tranches, prepayments, warnings, err := n.Normalize(rawTranches, rawPrepayments)
	in := &Inputs{
		Params:      d.Params(),
		Tranches:    tranches,
		Prepayments: prepayments,
		Warnings:    warnings,
	}
	return in, err
}

// =============================================================================
// SUMMARIES
// =============================================================================

// DisbursementSummary compares the disbursement plan with the stated loan.
type DisbursementSummary struct {
	StatedPrincipal  float64 `json:"statedPrincipal"`
	TotalDisbursed   float64 `json:"totalDisbursed"`
	Remaining        float64 `json:"remaining"`
	PercentDisbursed float64 `json:"percentDisbursed"`
	Count            int     `json:"count"`
}

// DisbursementSummary totals the tranche plan. Malformed amounts count as 0.
func (d Data) DisbursementSummary() DisbursementSummary {
	s := DisbursementSummary{
		StatedPrincipal: d.StatedPrincipal.Or(DefaultPrincipal),
		Count:           len(d.Tranches),
	}
	for _, t := range d.Tranches {
		s.TotalDisbursed += max(0, t.Amount.Float())
	}
	s.Remaining = s.StatedPrincipal - s.TotalDisbursed
	if s.StatedPrincipal > 0 {
		s.PercentDisbursed = s.TotalDisbursed * 100 / s.StatedPrincipal
	}
	return s
}

// PrepaymentSummary totals the prepayment plan after growth projection.
type PrepaymentSummary struct {
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

// PrepaymentSummary totals prepayments. Malformed amounts count as 0.
func (d Data) PrepaymentSummary() PrepaymentSummary {
	_, prepayments := d.Events()
	s := PrepaymentSummary{Count: len(prepayments)}
	for _, p := range prepayments {
		s.Total += max(0, p.Amount.Float())
	}
	return s
}
