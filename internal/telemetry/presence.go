package telemetry

import (
	"context"
	"time"

	"github.com/openfsr/fsrd/internal/events"
	"github.com/openfsr/fsrd/internal/models"
)

// StateProvider yields a consistent snapshot of the profile state.
type StateProvider interface {
	State() models.State
}

// RunPresence is a goroutine that broadcasts the full state snapshot once a
// second, keyed by the current player. It fires every tick whether or not
// anything changed, so late-joining clients converge within a second.
func RunPresence(ctx context.Context, src StateProvider, bus *events.Bus) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snapshot := src.State()
			bus.Publish(models.Presence(snapshot.CurrentPlayer, snapshot))
		}
	}
}
