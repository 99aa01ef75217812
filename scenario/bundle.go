package scenario

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Bundle is the export/import document: every saved scenario plus the
// working copy at export time.
type Bundle struct {
	Scenarios       []Scenario `json:"scenarios"`
	CurrentScenario *Scenario  `json:"currentScenario,omitempty"`
	ExportDate      string     `json:"exportDate"`
}

// Export collects all saved scenarios and the autosaved working copy.
func Export(ctx context.Context, store Store, now time.Time) (*Bundle, error) {
	saved, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	current, err := store.LoadAutosave(ctx)
	if err != nil {
		return nil, fmt.Errorf("load autosave: %w", err)
	}

	b := &Bundle{
		Scenarios:  saved,
		ExportDate: now.UTC().Format(time.RFC3339),
	}
	if b.Scenarios == nil {
		b.Scenarios = []Scenario{}
	}
	if current != nil {
		b.CurrentScenario = &Scenario{Name: current.Name, Data: current.Data}
	}
	return b, nil
}

// ParseBundle decodes an export document.
func ParseBundle(r io.Reader) (*Bundle, error) {
	var b Bundle
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, &InvalidError{Reason: "malformed export bundle", Err: err}
	}
	return &b, nil
}

// Import replaces every saved scenario with the bundle's. Scenarios sharing a
// name collapse into one, keeping the first position and the last data. The
// bundle's current scenario, if any, becomes the autosaved working copy.
// Nothing is written when any scenario is invalid.
func Import(ctx context.Context, store Store, b *Bundle, now time.Time) (int, error) {
	scenarios, err := dedupe(b.Scenarios, now)
	if err != nil {
		return 0, err
	}

	if err := store.ReplaceAll(ctx, scenarios); err != nil {
		return 0, fmt.Errorf("replace scenarios: %w", err)
	}
	if b.CurrentScenario != nil {
		snap := Autosave{Name: b.CurrentScenario.Name, Data: b.CurrentScenario.Data}
		if err := store.SaveAutosave(ctx, snap); err != nil {
			return 0, fmt.Errorf("save autosave: %w", err)
		}
	}
	return len(scenarios), nil
}

// dedupe collapses scenarios by name. An ID already claimed by a scenario
// with another name is replaced with a fresh one so stores keyed on ID and
// name accept the result alike.
func dedupe(in []Scenario, now time.Time) ([]Scenario, error) {
	out := make([]Scenario, 0, len(in))
	position := make(map[string]int, len(in))
	claimed := make(map[string]bool, len(in))

	for i, s := range in {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("scenario %d: %w", i, err)
		}
		fresh := New(s.Name, s.Data, now)
		if s.ID != "" && !claimed[s.ID] {
			fresh.ID = s.ID
		}
		if s.Timestamp != "" {
			fresh.Timestamp = s.Timestamp
		}

		if at, seen := position[fresh.Name]; seen {
			fresh.ID = out[at].ID
			out[at] = fresh
			continue
		}
		position[fresh.Name] = len(out)
		claimed[fresh.ID] = true
		out = append(out, fresh)
	}
	return out, nil
}
