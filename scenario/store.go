package scenario

import "context"

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store persists named scenarios and the single autosaved working copy.
// Implementations: store/sqlite.Store, scenario/store.Memory.
type Store interface {
	// Save inserts the scenario or, when the name exists, replaces its data
	// and timestamp in place (ID and list position are kept).
	Save(ctx context.Context, s Scenario) error

	// Get returns the scenario or an error wrapping ErrScenarioNotFound.
	Get(ctx context.Context, name string) (*Scenario, error)

	// List returns scenarios in the order they were first saved.
	List(ctx context.Context) ([]Scenario, error)

	// Delete removes the scenario or returns ErrScenarioNotFound.
	Delete(ctx context.Context, name string) error

	// ReplaceAll atomically swaps the whole saved list.
	ReplaceAll(ctx context.Context, scenarios []Scenario) error

	// LoadAutosave returns the working copy, or nil, nil when none exists.
	LoadAutosave(ctx context.Context) (*Autosave, error)

	// SaveAutosave overwrites the working copy.
	SaveAutosave(ctx context.Context, a Autosave) error

	// Reset clears every scenario and the working copy.
	Reset(ctx context.Context) error
}

// Autosave is the latest unsaved working copy.
type Autosave struct {
	Name    string `json:"name,omitempty"`
	SavedAt string `json:"savedAt,omitempty"`
	Data    Data   `json:"data"`
}
