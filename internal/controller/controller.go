// Package controller implements the command processor. It is the single
// owner of the profile state and the only component that mutates it.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/openfsr/fsrd/internal/config"
	"github.com/openfsr/fsrd/internal/device"
	"github.com/openfsr/fsrd/internal/models"
	"github.com/openfsr/fsrd/internal/telemetry"
)

// Controller holds the profile state behind a read/write lock and applies
// client commands to it. Apply holds the write lock for the full duration
// of a command, device calls included: a slow device serializes concurrent
// commands but never blocks telemetry polling, which runs on the device
// driver's own lock.
type Controller struct {
	mu     sync.RWMutex
	state  models.State
	drv    *device.Driver
	store  config.Store
	stream *telemetry.Flag
}

// New loads the persisted state and creates a Controller. An empty store
// is seeded with a DEFAULT profile so the daemon is usable out of the box.
func New(drv *device.Driver, store config.Store, stream *telemetry.Flag) (*Controller, error) {
	state, err := store.Load()
	if err != nil {
		return nil, err
	}

	c := &Controller{
		state:  *state,
		drv:    drv,
		store:  store,
		stream: stream,
	}

	if len(c.state.Profiles) == 0 {
		c.state.Profiles["DEFAULT"] = models.Profile{Thresholds: [4]int{100, 200, 300, 400}}
		c.state.CurrentProfile = "DEFAULT"
		if err := store.Save(&c.state); err != nil {
			slog.Error("controller: failed to save seeded default profile", "err", err)
		}
	}

	return c, nil
}

// State returns a deep copy of the current profile state.
func (c *Controller) State() models.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state.DeepCopy()
}

// SetDefaultProfileName marks name as the default profile if it exists.
// Used at startup for the -default-profile flag; not persisted until the
// next mutating command.
func (c *Controller) SetDefaultProfileName(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.state.Profiles[name]; !ok {
		return false
	}
	c.state.DefaultProfile = name
	return true
}

// ProfileNames returns the names of all known profiles.
func (c *Controller) ProfileNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.state.Profiles))
	for name := range c.state.Profiles {
		names = append(names, name)
	}
	return names
}

// SyncDevice pushes the current profile's thresholds to the device. Called
// at startup so the pad matches the persisted configuration.
func (c *Controller) SyncDevice(ctx context.Context) error {
	c.mu.RLock()
	name := c.state.CurrentProfile
	profile, ok := c.state.Profiles[name]
	c.mu.RUnlock()

	if name == "" {
		return nil
	}
	if !ok {
		return fmt.Errorf("current profile %q not found in profiles", name)
	}
	if err := c.drv.SetAllThresholds(ctx, profile.Thresholds); err != nil {
		return fmt.Errorf("set thresholds for profile %q: %w", name, err)
	}
	return nil
}

// persist saves the state and converts a failure into the Response the
// command path reports. Called only after the device accepted the change.
func (c *Controller) persist() *models.Response {
	if err := c.store.Save(&c.state); err != nil {
		resp := models.CommandFailed(fmt.Sprintf("Failed to save profiles: %v", err))
		return &resp
	}
	return nil
}

// snapshot returns a copy of the state for embedding in a Response.
// Callers must hold at least the read lock.
func (c *Controller) snapshot() models.State {
	return c.state.DeepCopy()
}
