/*
errors.go - Error types for the amortization engine

PURPOSE:
  The engine is total over well-formed inputs. It fails when there is no
  positive tranche to amortize, when a parameter is out of range, or when the
  amounts overflow float64. It reports two soft conditions: records it had to
  coerce while normalizing, and runs that hit the walk bound before the
  balance converged.

ERROR CATEGORIES:
  1. Input errors       - EmptyInputError, InvalidParameterError, RangeError
  2. Warnings           - MalformedRecordWarning (never returned as failures)
  3. Run completeness   - IncompleteRunError, surfaced via RunResult.Err()

SEE ALSO:
  - normalize.go: produces warnings and EmptyInputError
  - scheduler.go: marks runs incomplete
*/
package amortization

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrEmptyInput is returned when no tranche survives normalization.
	ErrEmptyInput = errors.New("no positive tranche to amortize")

	// ErrInvalidParameter is returned when loan parameters cannot be scheduled.
	ErrInvalidParameter = errors.New("invalid loan parameter")

	// ErrRunIncomplete is returned by RunResult.Err when the walk bound was
	// exhausted with principal still outstanding.
	ErrRunIncomplete = errors.New("schedule did not converge")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// EmptyInputError names the event list that came up empty.
type EmptyInputError struct {
	Kind string // "tranche"
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("no positive %s to amortize", e.Kind)
}

func (e *EmptyInputError) Unwrap() error {
	return ErrEmptyInput
}

// InvalidParameterError describes a parameter outside the engine's domain.
type InvalidParameterError struct {
	Field  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidParameterError) Unwrap() error {
	return ErrInvalidParameter
}

// RangeError reports a run whose amounts left the float64 range, e.g. an
// extreme rate compounding over a long term. It counts as invalid input.
type RangeError struct {
	Month    int
	Quantity string // "installment", "balance" or "payments"
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s out of numeric range at month %d", e.Quantity, e.Month)
}

func (e *RangeError) Unwrap() error {
	return ErrInvalidParameter
}

// MalformedRecordWarning reports a raw record field that was coerced or a
// record that was dropped during normalization.
type MalformedRecordWarning struct {
	Kind   string // "tranche" or "prepayment"
	Index  int    // position in the raw list
	Field  string // "month" or "amount"
	Raw    string // original token, empty when missing
	Reason string
}

func (w MalformedRecordWarning) Error() string {
	return fmt.Sprintf("%s[%d].%s %q: %s", w.Kind, w.Index, w.Field, w.Raw, w.Reason)
}

// IncompleteRunError reports a schedule that stopped at the walk bound.
type IncompleteRunError struct {
	ReachedMonth int
	Residual     float64
}

func (e *IncompleteRunError) Error() string {
	return fmt.Sprintf("schedule stopped at month %d with %.2f outstanding", e.ReachedMonth, e.Residual)
}

func (e *IncompleteRunError) Unwrap() error {
	return ErrRunIncomplete
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrEmptyInput) ||
		errors.Is(err, ErrInvalidParameter)
}
