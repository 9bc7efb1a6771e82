// Package config handles loading and saving the daemon's profile state.
package config

import "github.com/openfsr/fsrd/internal/models"

// Store is the interface for persisting profile state.
type Store interface {
	// Load loads the current state. Returns DefaultState if no file exists
	// or the file cannot be parsed; Load never fails on missing data.
	Load() (*models.State, error)

	// Save persists the state synchronously. The command path reports save
	// failures to clients, so implementations must not defer errors.
	Save(state *models.State) error

	// Path returns the file path used by this store.
	Path() string
}
