// Package telemetry runs the daemon's periodic publishers: the 60 Hz
// sensor poll loop and the 1 Hz presence broadcast.
package telemetry

import "sync"

// Flag is the shared stream-enabled gate. It has its own lock so toggling
// the stream never contends with profile state access. The stream starts
// disabled at process start.
type Flag struct {
	mu      sync.RWMutex
	enabled bool
}

// Set enables or disables the sensor stream.
func (f *Flag) Set(enabled bool) {
	f.mu.Lock()
	f.enabled = enabled
	f.mu.Unlock()
}

// Enabled reports whether the sensor stream is on.
func (f *Flag) Enabled() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.enabled
}
