package amortization

import "math"

// PaidOffThreshold is the balance at or below which a loan counts as repaid.
const PaidOffThreshold = 1.0

// Installment returns the equated monthly installment for principal at
// annualRatePercent over termYears. No rounding is applied.
func Installment(principal, annualRatePercent float64, termYears int) float64 {
	return InstallmentForMonths(principal, annualRatePercent, termYears*12)
}

// InstallmentForMonths is Installment over an explicit number of monthly
// payments. months below 1 is treated as a single payment.
func InstallmentForMonths(principal, annualRatePercent float64, months int) float64 {
	if months < 1 {
		months = 1
	}
	n := float64(months)
	r := annualRatePercent / 1200

	// Straight-line when there is no interest; the annuity formula divides by zero.
	if r == 0 {
		return principal / n
	}

	// Past 2^53 factor-1 == factor, so the installment is principal*r. This
	// also covers a factor that overflows to +Inf.
	factor := math.Pow(1+r, n)
	if factor >= 1<<53 {
		return principal * r
	}
	return principal * r * factor / (factor - 1)
}
