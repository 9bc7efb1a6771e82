package config

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/openfsr/fsrd/internal/models"
)

const profilesFileName = "profiles.json"

// JSONStore persists the profile state as a single JSON document with
// atomic writes.
type JSONStore struct {
	path string

	mu       sync.Mutex
	lastSave time.Time
}

// NewJSONStore creates a store in the given config directory.
func NewJSONStore(configDir string) *JSONStore {
	return &JSONStore{
		path: filepath.Join(configDir, profilesFileName),
	}
}

// Path returns the file path used by this store.
func (s *JSONStore) Path() string { return s.path }

// Load reads the state from disk. A missing or corrupt file yields
// DefaultState rather than an error.
func (s *JSONStore) Load() (*models.State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			def := models.DefaultState()
			return &def, nil
		}
		return nil, err
	}

	var state models.State
	if err := json.Unmarshal(data, &state); err != nil {
		slog.Warn("config: corrupt profiles file, using defaults", "path", s.path, "err", err)
		def := models.DefaultState()
		return &def, nil
	}
	if state.Profiles == nil {
		state.Profiles = make(map[string]models.Profile)
	}
	if state.Players == nil {
		state.Players = make(map[string]models.Player)
	}
	return &state, nil
}

// Save writes the state to disk immediately. Commands only report success
// once the write has landed, so there is no debounce here.
func (s *JSONStore) Save(state *models.State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return err
	}

	// Write to temp file, then rename (atomic on Linux)
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return err
	}

	s.mu.Lock()
	s.lastSave = time.Now()
	s.mu.Unlock()
	return nil
}

// LastSave returns when the store last wrote the file. The file watcher
// uses it to tell the daemon's own saves apart from external edits.
func (s *JSONStore) LastSave() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSave
}

// Ensure JSONStore implements Store
var _ Store = (*JSONStore)(nil)
