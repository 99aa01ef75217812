/*
Package amortization provides the progressive loan amortization engine.

PURPOSE:
  Turns a loan that is disbursed in tranches over time into a month-by-month
  payment schedule. The same engine handles construction-linked home loans
  (interest only until possession), loans that amortize from day one, and the
  classic "reprice the EMI whenever the bank releases more money" behavior.

KEY CONCEPTS IN THIS FILE (types.go):
  - Tranche:        principal released into the loan at the start of a month
  - Prepayment:     lump sum applied against principal in a month
  - LoanParameters: contract terms (stated principal, rate, tenure, policy)
  - ScheduleRow:    one simulated month of the schedule
  - RunResult:      the full schedule plus summary statistics
  - Number:         lenient numeric field used by raw boundary records

DESIGN PRINCIPLES:
  1. Pure: a run is a function of its inputs. No I/O, no shared state.
  2. Typed: the engine never looks up fields by name; raw records are
     normalized once (normalize.go) and the loop only sees Tranche/Prepayment.
  3. Deterministic: identical inputs produce identical schedules, bit for bit.
  4. Float arithmetic: amounts are float64 inside the loop because the annuity
     formula needs fractional powers. Rounding is a presentation concern.

USAGE:
  params := amortization.LoanParameters{
      StatedPrincipal:    15_500_000,
      AnnualRatePercent:  7.65,
      TenureYears:        25,
      ConstructionMonths: 18,
      AccrualPolicy:      amortization.PolicyInterestOnlyDuringConstruction,
  }
  result, err := amortization.Run(params, tranches, prepayments)

SEE ALSO:
  - emi.go:       installment formula
  - scheduler.go: the month-by-month state machine
  - compare.go:   policy comparison and break-even
*/
package amortization

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ACCRUAL POLICY - How the loan behaves while it is still being disbursed
// =============================================================================

// AccrualPolicy selects how installments are established and charged.
type AccrualPolicy string

const (
	// PolicyRecomputeOnDisbursement reprices the installment whenever a new
	// tranche lands: current outstanding principal amortized over the
	// remaining original term. This is the zero value.
	PolicyRecomputeOnDisbursement AccrualPolicy = "recomputeOnDisbursement"

	// PolicyInterestOnlyDuringConstruction ("pre-EMI") charges only interest
	// during months 1..ConstructionMonths, then the full installment.
	PolicyInterestOnlyDuringConstruction AccrualPolicy = "interestOnlyDuringConstruction"

	// PolicyFullFromStart ("full EMI") charges the full installment from
	// month 1 regardless of the construction window.
	PolicyFullFromStart AccrualPolicy = "fullFromStart"
)

// Normalize maps the empty policy to the legacy recompute behavior.
func (p AccrualPolicy) Normalize() AccrualPolicy {
	if p == "" {
		return PolicyRecomputeOnDisbursement
	}
	return p
}

// IsValid reports whether p names a known policy (empty counts as valid).
func (p AccrualPolicy) IsValid() bool {
	switch p.Normalize() {
	case PolicyRecomputeOnDisbursement, PolicyInterestOnlyDuringConstruction, PolicyFullFromStart:
		return true
	default:
		return false
	}
}

// upfrontInstallment is true for policies that fix the installment once over
// the stated principal and full tenure.
func (p AccrualPolicy) upfrontInstallment() bool {
	switch p.Normalize() {
	case PolicyInterestOnlyDuringConstruction, PolicyFullFromStart:
		return true
	default:
		return false
	}
}

// =============================================================================
// EVENTS - Disbursements and prepayments
// =============================================================================

// Tranche is principal released into the loan at the start of Month.
// Several tranches may share a month; their amounts are summed.
type Tranche struct {
	Month  int     `json:"month"`
	Amount float64 `json:"amount"`
}

// Prepayment is a lump sum applied to principal in Month, on top of the
// installment's principal component.
type Prepayment struct {
	Month  int     `json:"month"`
	Amount float64 `json:"amount"`
}

// =============================================================================
// LOAN PARAMETERS
// =============================================================================

// LoanParameters are the contract terms of a run.
//
// StatedPrincipal is the contracted amount. The scheduler works on what was
// actually disbursed; the stated value only feeds the up-front installment of
// the interest-only and full-from-start policies and the baseline.
type LoanParameters struct {
	StatedPrincipal     float64       `json:"statedPrincipal"`
	AnnualRatePercent   float64       `json:"annualRatePercent"`
	TenureYears         int           `json:"tenureYears"`
	ExtraMonthlyPayment float64       `json:"extraMonthlyPayment"`
	ConstructionMonths  int           `json:"constructionMonths"`
	AccrualPolicy       AccrualPolicy `json:"accrualPolicy"`
}

// TenureMonths is the nominal term in months.
func (p LoanParameters) TenureMonths() int { return p.TenureYears * 12 }

// MonthlyRate is the periodic rate as a fraction (7.65% -> 0.006375).
func (p LoanParameters) MonthlyRate() float64 { return p.AnnualRatePercent / 1200 }

// WithPolicy returns a copy of p running under policy.
func (p LoanParameters) WithPolicy(policy AccrualPolicy) LoanParameters {
	p.AccrualPolicy = policy
	return p
}

// =============================================================================
// SCHEDULE OUTPUT
// =============================================================================

// ScheduleRow is one simulated month. Month 0 is the opening row and never
// carries payment activity.
type ScheduleRow struct {
	Month                int     `json:"month"`
	DisbursedThisMonth   float64 `json:"disbursedThisMonth"`
	PrepaidThisMonth     float64 `json:"prepaidThisMonth"`
	InstallmentPaid      float64 `json:"installmentPaid"`
	InterestPortion      float64 `json:"interestPortion"`
	PrincipalPortion     float64 `json:"principalPortion"`
	OutstandingBalance   float64 `json:"outstandingBalance"`
	CumulativeInterest   float64 `json:"cumulativeInterest"`
	IsConstructionPeriod bool    `json:"isConstructionPeriod"`
}

// CashOut is everything the borrower paid in the row.
func (r ScheduleRow) CashOut() float64 { return r.InstallmentPaid + r.PrepaidThisMonth }

// RunResult is the outcome of one scheduler run. It is never mutated after
// the scheduler returns it.
type RunResult struct {
	Policy                  AccrualPolicy `json:"policy"`
	Schedule                []ScheduleRow `json:"schedule"`
	TotalInterest           float64       `json:"totalInterest"`
	TotalPrincipal          float64       `json:"totalPrincipal"`
	TotalPayment            float64       `json:"totalPayment"`
	TotalDisbursed          float64       `json:"totalDisbursed"`
	ActualTenureMonths      int           `json:"actualTenureMonths"`
	FinalMonthlyInstallment float64       `json:"finalMonthlyInstallment"`

	// Incomplete is set when the walk hit its bound before the balance
	// converged to <= PaidOffThreshold.
	Incomplete bool    `json:"incomplete"`
	Residual   float64 `json:"residual"`

	// Undisbursed totals tranches dated after the walk bound. They are
	// never released and do not count toward TotalDisbursed.
	Undisbursed float64 `json:"undisbursed,omitempty"`
}

// Err returns an *IncompleteRunError for incomplete runs, nil otherwise.
func (r *RunResult) Err() error {
	if r == nil || !r.Incomplete {
		return nil
	}
	return &IncompleteRunError{ReachedMonth: r.ActualTenureMonths, Residual: r.Residual}
}

// RowAt returns the row for month, if the schedule has one.
func (r *RunResult) RowAt(month int) (ScheduleRow, bool) {
	// Rows are strictly increasing by month, but months before the first
	// disbursement may be missing from hand-built results, so search.
	lo, hi := 0, len(r.Schedule)
	for lo < hi {
		mid := (lo + hi) / 2
		if r.Schedule[mid].Month < month {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(r.Schedule) && r.Schedule[lo].Month == month {
		return r.Schedule[lo], true
	}
	return ScheduleRow{}, false
}

// =============================================================================
// NUMBER - Lenient numeric field for raw boundary records
// =============================================================================

// Number is a numeric field decoded leniently: JSON numbers and numeric
// strings are accepted, anything else decodes as invalid instead of failing.
// Raw keeps the original token so coercions can be reported.
type Number struct {
	Value float64
	Valid bool
	Raw   string
}

// Num builds a Number. NaN and ±Inf build an invalid Number whose Raw
// names the value, so normalization reports it instead of using it.
func Num(v float64) Number {
	if !finite(v) {
		return Number{Raw: strconv.FormatFloat(v, 'g', -1, 64)}
	}
	return Number{Value: v, Valid: true, Raw: decimal.NewFromFloat(v).String()}
}

// Float returns the value, or 0 when invalid.
func (n Number) Float() float64 {
	if !n.Valid {
		return 0
	}
	return n.Value
}

// Or returns the value, or def when the field is missing or invalid.
func (n Number) Or(def float64) float64 {
	if !n.Valid {
		return def
	}
	return n.Value
}

// IsSet reports whether the field was present in the input at all.
func (n Number) IsSet() bool { return n.Raw != "" && n.Raw != "null" }

func (n *Number) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	*n = Number{Raw: raw}
	if raw == "" || raw == "null" {
		return nil
	}

	text := raw
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		text = strings.TrimSpace(s)
	}

	d, err := decimal.NewFromString(text)
	if err != nil {
		return nil
	}
	// Tokens such as 1e400 parse as decimals but overflow float64.
	if v := d.InexactFloat64(); finite(v) {
		n.Value = v
		n.Valid = true
	}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid || !finite(n.Value) {
		return []byte("null"), nil
	}
	return []byte(decimal.NewFromFloat(n.Value).String()), nil
}

// RawEvent is a tranche or prepayment as it arrives from the boundary,
// before normalization.
type RawEvent struct {
	Month  Number `json:"month"`
	Amount Number `json:"amount"`
}

// Event builds a well-formed RawEvent.
func Event(month int, amount float64) RawEvent {
	return RawEvent{Month: Num(float64(month)), Amount: Num(amount)}
}
