package amortization

// BaselineResult is the single-disbursement, no-prepayment reference loan.
type BaselineResult struct {
	Installment   float64 `json:"installment"`
	TotalInterest float64 `json:"totalInterest"`
	TotalPayment  float64 `json:"totalPayment"`
	TenureMonths  int     `json:"tenureMonths"`
}

// Baseline amortizes the stated principal over the full tenure as if it were
// disbursed at once. It never feeds back into a scheduler run. Check Err for
// inputs large enough to overflow.
func Baseline(statedPrincipal, annualRatePercent float64, termYears int) BaselineResult {
	emi := Installment(statedPrincipal, annualRatePercent, termYears)
	months := termYears * 12
	total := emi * float64(months)
	return BaselineResult{
		Installment:   emi,
		TotalInterest: total - statedPrincipal,
		TotalPayment:  total,
		TenureMonths:  months,
	}
}

// Err returns a *RangeError when the baseline overflowed float64.
func (b BaselineResult) Err() error {
	if !finite(b.Installment) || !finite(b.TotalPayment) || !finite(b.TotalInterest) {
		return &RangeError{Month: b.TenureMonths, Quantity: "baseline"}
	}
	return nil
}

// InterestSaved is how much less interest r pays than the baseline, floored
// at zero.
func InterestSaved(baseline BaselineResult, r *RunResult) float64 {
	return max(0, baseline.TotalInterest-r.TotalInterest)
}

// =============================================================================
// RATE COMPARISON
// =============================================================================

// RateOption is the baseline for one candidate rate.
type RateOption struct {
	AnnualRatePercent float64 `json:"annualRatePercent"`
	BaselineResult
	Best bool `json:"best"`
}

// RateComparison lists candidate rates in input order with the lowest total
// interest marked best.
type RateComparison struct {
	Options []RateOption `json:"options"`
	// BestIndex is the position of the best option, -1 when there are none.
	BestIndex int `json:"bestIndex"`
}

// CompareRates computes the baseline for principal over termYears at each
// rate. Ties keep the earliest rate as best.
func CompareRates(principal float64, termYears int, ratesPercent []float64) RateComparison {
	out := RateComparison{BestIndex: -1}
	for _, rate := range ratesPercent {
		out.Options = append(out.Options, RateOption{
			AnnualRatePercent: rate,
			BaselineResult:    Baseline(principal, rate, termYears),
		})
	}
	for i, o := range out.Options {
		if out.BestIndex < 0 || o.TotalInterest < out.Options[out.BestIndex].TotalInterest {
			out.BestIndex = i
		}
	}
	if out.BestIndex >= 0 {
		out.Options[out.BestIndex].Best = true
	}
	return out
}
