// Package store provides scenario.Store implementations.
package store

import (
	"context"
	"slices"
	"sync"

	"github.com/warp/tranche-engine/scenario"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	scenarios []scenario.Scenario
	byName    map[string]int
	autosave  *scenario.Autosave
}

func NewMemory() *Memory {
	return &Memory{byName: make(map[string]int)}
}

var _ scenario.Store = (*Memory)(nil)

// Save upserts by name.
func (m *Memory) Save(_ context.Context, s scenario.Scenario) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if i, ok := m.byName[s.Name]; ok {
		s.ID = m.scenarios[i].ID
		m.scenarios[i] = s
		return nil
	}
	m.byName[s.Name] = len(m.scenarios)
	m.scenarios = append(m.scenarios, s)
	return nil
}

func (m *Memory) Get(_ context.Context, name string) (*scenario.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.byName[name]
	if !ok {
		return nil, &scenario.NotFoundError{Name: name}
	}
	s := m.scenarios[i]
	return &s, nil
}

func (m *Memory) List(_ context.Context) ([]scenario.Scenario, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]scenario.Scenario, len(m.scenarios))
	copy(result, m.scenarios)
	return result, nil
}

func (m *Memory) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.byName[name]
	if !ok {
		return &scenario.NotFoundError{Name: name}
	}
	m.scenarios = slices.Delete(m.scenarios, i, i+1)
	m.reindexLocked()
	return nil
}

// ReplaceAll validates everything before swapping, so a bad entry leaves
// the store untouched.
func (m *Memory) ReplaceAll(_ context.Context, scenarios []scenario.Scenario) error {
	for _, s := range scenarios {
		if err := s.Validate(); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.scenarios = m.scenarios[:0:0]
	m.byName = make(map[string]int, len(scenarios))
	for _, s := range scenarios {
		if i, ok := m.byName[s.Name]; ok {
			m.scenarios[i] = s
			continue
		}
		m.byName[s.Name] = len(m.scenarios)
		m.scenarios = append(m.scenarios, s)
	}
	return nil
}

func (m *Memory) LoadAutosave(_ context.Context) (*scenario.Autosave, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.autosave == nil {
		return nil, nil
	}
	a := *m.autosave
	return &a, nil
}

func (m *Memory) SaveAutosave(_ context.Context, a scenario.Autosave) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autosave = &a
	return nil
}

func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scenarios = nil
	m.byName = make(map[string]int)
	m.autosave = nil
	return nil
}

func (m *Memory) reindexLocked() {
	m.byName = make(map[string]int, len(m.scenarios))
	for i, s := range m.scenarios {
		m.byName[s.Name] = i
	}
}
