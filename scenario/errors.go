package scenario

import (
	"errors"
	"fmt"

	"github.com/warp/tranche-engine/amortization"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrScenarioNotFound is returned when no saved scenario has the name.
	ErrScenarioNotFound = errors.New("scenario not found")

	// ErrInvalidScenario is returned for documents that cannot be used:
	// unparseable input, a missing name, an unknown file format.
	ErrInvalidScenario = errors.New("invalid scenario")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// NotFoundError names the missing scenario.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("scenario %q not found", e.Name)
}

func (e *NotFoundError) Unwrap() error {
	return ErrScenarioNotFound
}

// InvalidError describes why a scenario document was rejected.
type InvalidError struct {
	Reason string
	Err    error
}

func (e *InvalidError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid scenario: %s: %v", e.Reason, e.Err)
	}
	return "invalid scenario: " + e.Reason
}

func (e *InvalidError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidScenario, e.Err}
	}
	return []error{ErrInvalidScenario}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input,
// including engine input errors.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidScenario) ||
		amortization.IsClientError(err)
}

// IsNotFound returns true if the error indicates a missing scenario.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrScenarioNotFound)
}
