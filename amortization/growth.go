package amortization

import (
	"fmt"
	"math"
)

// Compounding selects how a growth rule compounds its annual rate.
type Compounding string

const (
	CompoundAnnual  Compounding = "annual"
	CompoundMonthly Compounding = "monthly"
)

// IsValid reports whether c is a known compounding mode. Empty means annual.
func (c Compounding) IsValid() bool {
	return c == "" || c == CompoundAnnual || c == CompoundMonthly
}

// GrowthRule projects prepayment amounts that grow over time, e.g. an annual
// bonus expected to rise with salary.
type GrowthRule struct {
	BaseAmount       float64     `json:"baseAmount"`
	AnnualGrowthRate float64     `json:"annualGrowthRate"` // percent
	Compounding      Compounding `json:"compounding"`
}

// Validate checks the rule projects finite, non-negative amounts for its
// inputs. Projections can still overflow for extreme months; Apply callers
// get those as +Inf.
func (g GrowthRule) Validate() error {
	switch {
	case !finite(g.BaseAmount) || g.BaseAmount < 0:
		return &InvalidParameterError{Field: "prepaymentGrowth.baseAmount", Reason: "must be a non-negative number"}
	case !finite(g.AnnualGrowthRate) || g.AnnualGrowthRate <= -100:
		return &InvalidParameterError{Field: "prepaymentGrowth.annualGrowthRate", Reason: "must be a number above -100"}
	case !g.Compounding.IsValid():
		return &InvalidParameterError{Field: "prepaymentGrowth.compounding", Reason: fmt.Sprintf("unknown compounding %q", g.Compounding)}
	}
	return nil
}

// PrepaymentEntry is a prepayment row that may take its amount from a growth
// rule. Manual entries keep their Amount untouched.
type PrepaymentEntry struct {
	Month  int     `json:"month"`
	Amount float64 `json:"amount"`
	Manual bool    `json:"manual"`
}

// ProjectPrepaymentAmount returns the projected prepayment for month.
//
//	annual:  base * (1+rate)^(month/12)
//	monthly: base * (1+rate/12)^month
//
// with rate = annualGrowthRate/100. Months <= 0 return base unchanged.
func ProjectPrepaymentAmount(month int, base, annualGrowthRate float64, c Compounding) float64 {
	if month <= 0 {
		return base
	}
	rate := annualGrowthRate / 100
	if c == CompoundMonthly {
		return base * math.Pow(1+rate/12, float64(month))
	}
	return base * math.Pow(1+rate, float64(month)/12)
}

// Project returns the rule's amount for month.
func (g GrowthRule) Project(month int) float64 {
	return ProjectPrepaymentAmount(month, g.BaseAmount, g.AnnualGrowthRate, g.Compounding)
}

// Apply fills non-manual entries with projected amounts and returns them as
// prepayments, in input order.
func (g GrowthRule) Apply(entries []PrepaymentEntry) []Prepayment {
	out := make([]Prepayment, 0, len(entries))
	for _, e := range entries {
		amount := e.Amount
		if !e.Manual {
			amount = g.Project(e.Month)
		}
		out = append(out, Prepayment{Month: e.Month, Amount: amount})
	}
	return out
}
