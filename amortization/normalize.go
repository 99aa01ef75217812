package amortization

import (
	"math"
	"slices"
)

// =============================================================================
// NORMALIZER - Raw boundary records to typed events
// =============================================================================
//
// Normalization never fails on a single bad record. Missing or non-numeric
// fields become 0, negative amounts become 0 and fractional months are
// truncated; every such coercion is reported as a MalformedRecordWarning so it
// can be logged. The output is stable-sorted by month.

const (
	kindTranche    = "tranche"
	kindPrepayment = "prepayment"

	// maxEventMonth caps event months. Anything later lies past every walk
	// bound and is never applied.
	maxEventMonth = math.MaxInt32
)

// NormalizeTranches converts raw disbursement records into tranches sorted by
// month. It fails with *EmptyInputError when no record carries a positive
// amount; the coerced tranches and warnings are still returned in that case.
func NormalizeTranches(raw []RawEvent) ([]Tranche, []MalformedRecordWarning, error) {
	tranches := make([]Tranche, 0, len(raw))
	var warnings []MalformedRecordWarning

	for i, ev := range raw {
		month, amount, w := coerceEvent(kindTranche, i, ev, 0)
		warnings = append(warnings, w...)
		tranches = append(tranches, Tranche{Month: month, Amount: amount})
	}

	slices.SortStableFunc(tranches, func(a, b Tranche) int { return a.Month - b.Month })

	if !hasPositiveTranche(tranches) {
		return tranches, warnings, &EmptyInputError{Kind: kindTranche}
	}
	return tranches, warnings, nil
}

// NormalizePrepayments converts raw prepayment records into prepayments
// sorted by month. Prepayments before month 1 are kept but flagged: the
// scheduler never applies them because month 0 carries no payment activity.
func NormalizePrepayments(raw []RawEvent) ([]Prepayment, []MalformedRecordWarning) {
	prepayments := make([]Prepayment, 0, len(raw))
	var warnings []MalformedRecordWarning

	for i, ev := range raw {
		month, amount, w := coerceEvent(kindPrepayment, i, ev, 1)
		warnings = append(warnings, w...)
		prepayments = append(prepayments, Prepayment{Month: month, Amount: amount})
	}

	slices.SortStableFunc(prepayments, func(a, b Prepayment) int { return a.Month - b.Month })
	return prepayments, warnings
}

func coerceEvent(kind string, index int, ev RawEvent, minMonth int) (int, float64, []MalformedRecordWarning) {
	var warnings []MalformedRecordWarning
	warn := func(field string, n Number, reason string) {
		warnings = append(warnings, MalformedRecordWarning{
			Kind:   kind,
			Index:  index,
			Field:  field,
			Raw:    n.Raw,
			Reason: reason,
		})
	}

	month := 0
	switch {
	case !ev.Month.Valid:
		warn("month", ev.Month, "missing or non-numeric, using 0")
	case ev.Month.Value < 0:
		warn("month", ev.Month, "negative, using 0")
	default:
		whole := math.Trunc(ev.Month.Value)
		if whole != ev.Month.Value {
			warn("month", ev.Month, "fractional, truncated")
		}
		if whole > maxEventMonth {
			warn("month", ev.Month, "beyond any schedule, capped")
			whole = maxEventMonth
		}
		month = int(whole)
	}
	if month < minMonth {
		warn("month", ev.Month, "before first payment month, never applied")
	}

	amount := 0.0
	switch {
	case !ev.Amount.Valid:
		warn("amount", ev.Amount, "missing, non-numeric or out of range, using 0")
	case ev.Amount.Value < 0:
		warn("amount", ev.Amount, "negative, using 0")
	default:
		amount = ev.Amount.Value
	}

	return month, amount, warnings
}

func hasPositiveTranche(tranches []Tranche) bool {
	for _, t := range tranches {
		if t.Amount > 0 {
			return true
		}
	}
	return false
}
