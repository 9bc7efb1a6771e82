package config

import (
	"errors"
	"sync"

	"github.com/openfsr/fsrd/internal/models"
)

// MemStore is an in-memory Store for tests that never writes to disk.
type MemStore struct {
	mu       sync.Mutex
	state    *models.State
	saves    int
	failSave bool
}

// NewMemStore returns a new in-memory store (defaults to DefaultState on Load).
func NewMemStore() *MemStore {
	return &MemStore{}
}

// SetFailSave configures the store to fail all Save calls.
func (m *MemStore) SetFailSave(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSave = fail
}

// Load returns a copy of the stored state, or DefaultState if none has been saved yet.
func (m *MemStore) Load() (*models.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		def := models.DefaultState()
		return &def, nil
	}
	cp := m.state.DeepCopy()
	return &cp, nil
}

// Save stores a deep copy of the given state in memory.
func (m *MemStore) Save(state *models.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave {
		return errors.New("memstore: save failure configured")
	}
	cp := state.DeepCopy()
	m.state = &cp
	m.saves++
	return nil
}

// Path returns ":memory:" to indicate this is an in-memory store.
func (m *MemStore) Path() string { return ":memory:" }

// Saves returns how many successful Save calls have happened, for tests
// asserting persistence ordering.
func (m *MemStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Saved returns a copy of the last saved state, or nil if nothing was saved.
func (m *MemStore) Saved() *models.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil
	}
	cp := m.state.DeepCopy()
	return &cp
}

// Ensure MemStore implements Store
var _ Store = (*MemStore)(nil)
