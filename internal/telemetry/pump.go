package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/openfsr/fsrd/internal/device"
	"github.com/openfsr/fsrd/internal/events"
	"github.com/openfsr/fsrd/internal/models"
)

// pollInterval gives the ~60 Hz sample rate the web UI graphs at.
const pollInterval = 16 * time.Millisecond

// RunPump is a goroutine that polls the device at 60 Hz and publishes each
// sample. While the stream flag is off, ticks pass without a device read.
// Read errors are logged and skipped; the device may be transiently absent
// and the loop must outlive it.
func RunPump(ctx context.Context, drv *device.Driver, bus *events.Bus, flag *Flag) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !flag.Enabled() {
				continue
			}
			values, err := drv.ReadTelemetry(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("telemetry: read failed", "err", err)
				continue
			}
			bus.Publish(models.SensorStream(values))
		}
	}
}
