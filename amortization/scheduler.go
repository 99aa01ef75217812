/*
scheduler.go - The month-by-month amortization state machine

PURPOSE:
  Walks a loan forward one month at a time: release tranches, accrue
  interest, charge the installment, absorb prepayments, and stop once the
  balance is repaid. All three accrual policies share this one loop; they
  differ only in how the installment is established and whether construction
  months are interest only.

STATES:
  Before-disbursement  balance 0, a positive tranche still pending (zero rows)
  Accruing             balance > 0, policy-dependent charging
  Paid-off             balance <= PaidOffThreshold with nothing pending

WALK BOUND:
  The loop visits months 0..bound where

    bound = min(max(lastEventMonth+12, tenure+construction+12),
                tenure+construction+120)

  A run that reaches the bound with principal outstanding is returned with
  Incomplete set; callers check RunResult.Err(). Tranches dated after the
  bound are never released and are reported as Undisbursed.

LIMITS:
  Tenure is capped at MaxTenureYears and the construction window at
  MaxConstructionMonths. A run whose amounts leave the float64 range fails
  with *RangeError instead of producing NaN or Inf rows.

SEE ALSO:
  - emi.go:     installment formula
  - compare.go: runs this twice for the policy comparison
*/
package amortization

import (
	"fmt"
	"math"
)

const (
	// MaxTenureYears is the longest term the scheduler accepts.
	MaxTenureYears = 100

	// MaxConstructionMonths is the longest construction window it accepts.
	MaxConstructionMonths = MaxTenureYears * 12
)

// Validate checks that p can be scheduled.
func (p LoanParameters) Validate() error {
	switch {
	case p.TenureYears < 1:
		return &InvalidParameterError{Field: "tenureYears", Reason: "must be at least 1"}
	case p.TenureYears > MaxTenureYears:
		return &InvalidParameterError{Field: "tenureYears", Reason: fmt.Sprintf("must be at most %d", MaxTenureYears)}
	case !finite(p.AnnualRatePercent) || p.AnnualRatePercent < 0:
		return &InvalidParameterError{Field: "annualRatePercent", Reason: "must be a non-negative number"}
	case !finite(p.ExtraMonthlyPayment) || p.ExtraMonthlyPayment < 0:
		return &InvalidParameterError{Field: "extraMonthlyPayment", Reason: "must be a non-negative number"}
	case p.ConstructionMonths < 0:
		return &InvalidParameterError{Field: "constructionMonths", Reason: "must not be negative"}
	case p.ConstructionMonths > MaxConstructionMonths:
		return &InvalidParameterError{Field: "constructionMonths", Reason: fmt.Sprintf("must be at most %d", MaxConstructionMonths)}
	case !finite(p.StatedPrincipal) || p.StatedPrincipal < 0:
		return &InvalidParameterError{Field: "statedPrincipal", Reason: "must be a non-negative number"}
	case !p.AccrualPolicy.IsValid():
		return &InvalidParameterError{Field: "accrualPolicy", Reason: fmt.Sprintf("unknown policy %q", p.AccrualPolicy)}
	case p.AccrualPolicy.upfrontInstallment() && p.StatedPrincipal == 0:
		return &InvalidParameterError{Field: "statedPrincipal", Reason: "must be positive for " + string(p.AccrualPolicy)}
	}
	return nil
}

// WalkBound returns the last month the scheduler may visit for p given the
// latest tranche or prepayment month.
func WalkBound(p LoanParameters, lastEventMonth int) int {
	horizon := p.TenureMonths() + p.ConstructionMonths
	return min(max(lastEventMonth+12, horizon+12), horizon+120)
}

// Run produces the amortization schedule for params over the given events.
// It fails with *EmptyInputError when no tranche has a positive amount and
// with *InvalidParameterError when params cannot be scheduled. Tranches and
// prepayments need not be sorted; non-positive amounts are ignored.
func Run(params LoanParameters, tranches []Tranche, prepayments []Prepayment) (*RunResult, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if !hasPositiveTranche(tranches) {
		return nil, &EmptyInputError{Kind: kindTranche}
	}

	w := newWalk(params, tranches, prepayments)
	return w.run()
}

// =============================================================================
// WALK - One scheduler run
// =============================================================================

type walk struct {
	params       LoanParameters
	policy       AccrualPolicy
	monthlyRate  float64
	tenureMonths int

	disbursed map[int]float64
	prepaid   map[int]float64

	// lastTranche is the month of the latest positive disbursement within
	// the bound; the loan cannot be paid off before it.
	lastTranche int
	bound       int
	undisbursed float64
}

func newWalk(params LoanParameters, tranches []Tranche, prepayments []Prepayment) *walk {
	w := &walk{
		params:       params,
		policy:       params.AccrualPolicy.Normalize(),
		monthlyRate:  params.MonthlyRate(),
		tenureMonths: params.TenureMonths(),
		disbursed:    make(map[int]float64),
		prepaid:      make(map[int]float64),
	}

	lastEvent := 0
	for _, t := range tranches {
		if !releasable(t) {
			continue
		}
		w.disbursed[t.Month] += t.Amount
		lastEvent = max(lastEvent, t.Month)
	}
	for _, p := range prepayments {
		if !(p.Amount > 0) || p.Month < 1 || math.IsInf(p.Amount, 0) {
			continue
		}
		w.prepaid[p.Month] += p.Amount
		lastEvent = max(lastEvent, p.Month)
	}

	w.bound = WalkBound(params, lastEvent)
	for _, t := range tranches {
		if !releasable(t) {
			continue
		}
		if t.Month > w.bound {
			w.undisbursed += t.Amount
			continue
		}
		w.lastTranche = max(w.lastTranche, t.Month)
	}
	return w
}

func releasable(t Tranche) bool {
	return t.Amount > 0 && t.Month >= 0 && !math.IsInf(t.Amount, 0)
}

func (w *walk) run() (*RunResult, error) {
	var (
		balance     float64
		installment float64
		extra       = w.params.ExtraMonthlyPayment
		cons        = w.params.ConstructionMonths
		paidOff     bool
	)
	result := &RunResult{Policy: w.policy, Undisbursed: w.undisbursed}

	if w.policy.upfrontInstallment() {
		installment = InstallmentForMonths(w.params.StatedPrincipal, w.params.AnnualRatePercent, w.tenureMonths)
		if !finite(installment) {
			return nil, &RangeError{Quantity: "installment"}
		}
	}

	for month := 0; month <= w.bound; month++ {
		disbursed := w.disbursed[month]
		balance += disbursed
		result.TotalDisbursed += disbursed

		row := ScheduleRow{
			Month:                month,
			DisbursedThisMonth:   disbursed,
			IsConstructionPeriod: month >= 1 && month <= cons,
			CumulativeInterest:   result.TotalInterest,
		}

		// Opening row: records the day-one balance, no payment activity.
		if month == 0 {
			if w.policy == PolicyRecomputeOnDisbursement && disbursed > 0 {
				installment = InstallmentForMonths(balance, w.params.AnnualRatePercent, w.tenureMonths)
			}
			if !finite(balance) || !finite(installment) {
				return nil, &RangeError{Month: month, Quantity: "balance"}
			}
			row.OutstandingBalance = balance
			result.Schedule = append(result.Schedule, row)
			continue
		}

		if balance <= 0 {
			if month < w.lastTranche {
				result.Schedule = append(result.Schedule, row)
				continue
			}
			paidOff = true
			break
		}

		if w.policy == PolicyRecomputeOnDisbursement && disbursed > 0 {
			installment = InstallmentForMonths(balance, w.params.AnnualRatePercent, max(1, w.tenureMonths-month))
		}

		interest := balance * w.monthlyRate
		var payment, principal float64

		if w.policy == PolicyInterestOnlyDuringConstruction && month <= cons {
			payment = interest
		} else {
			due := installment + extra
			principal = due - interest
			payment = due
			if principal < 0 {
				principal = 0
				payment = interest
			}
			if balance < due {
				payment = balance + interest
				principal = balance
			}
		}

		principal = math.Min(principal, balance)
		prepaid := math.Min(w.prepaid[month], balance-principal)

		balance -= principal + prepaid
		if balance < 0 {
			balance = 0
		}

		result.TotalInterest += interest
		result.TotalPrincipal += principal + prepaid
		result.TotalPayment += payment + prepaid

		if !finite(balance) || !finite(installment) || !finite(result.TotalPayment) {
			return nil, &RangeError{Month: month, Quantity: "payments"}
		}

		row.PrepaidThisMonth = prepaid
		row.InstallmentPaid = payment
		row.InterestPortion = interest
		row.PrincipalPortion = principal
		row.OutstandingBalance = balance
		row.CumulativeInterest = result.TotalInterest
		result.Schedule = append(result.Schedule, row)

		if balance <= PaidOffThreshold && month >= w.lastTranche {
			paidOff = true
			break
		}
	}

	if len(result.Schedule) == 0 {
		return nil, &InvalidParameterError{Field: "tenureYears", Reason: "leaves no month to schedule"}
	}

	last := result.Schedule[len(result.Schedule)-1]
	result.ActualTenureMonths = last.Month
	result.FinalMonthlyInstallment = installment + extra
	if !finite(result.FinalMonthlyInstallment) {
		return nil, &RangeError{Month: last.Month, Quantity: "installment"}
	}
	if !paidOff {
		result.Incomplete = true
		result.Residual = last.OutstandingBalance
	}
	return result, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
