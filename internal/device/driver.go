package device

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// maxOpsPerSec caps device exchanges. The telemetry poller alone accounts
// for 60/s; the cap leaves headroom for command bursts without letting a
// misbehaving client saturate the link.
const maxOpsPerSec = 500

// Driver exposes the pad controller's four typed operations over a Port.
// A single mutex serializes all device traffic: each operation holds it for
// exactly one request/response exchange, so telemetry polls and
// configuration commands interleave without priority or preemption.
type Driver struct {
	mu      sync.Mutex
	port    Port
	limiter *rate.Limiter
}

// New creates a Driver on top of the given port.
func New(port Port) *Driver {
	return &Driver{
		port:    port,
		limiter: rate.NewLimiter(rate.Limit(maxOpsPerSec), 10),
	}
}

// ReadTelemetry polls the 4 live sensor readings ("v" request).
func (d *Driver) ReadTelemetry(ctx context.Context) ([4]int, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return [4]int{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.port.Write([]byte("v\n")); err != nil {
		return [4]int{}, err
	}
	line, err := readLine(d.port, "timeout reading sensor values")
	if err != nil {
		return [4]int{}, err
	}
	values, err := parseQuad(line, "v")
	if err != nil {
		return [4]int{}, errors.New("invalid response format")
	}
	return values, nil
}

// SetThreshold writes one threshold ("<index> <value>" request) and
// validates the device's echo: the echoed value at index must equal the
// requested value, otherwise the write is treated as failed.
func (d *Driver) SetThreshold(ctx context.Context, index, value int) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := fmt.Fprintf(d.port, "%d %d\n", index, value); err != nil {
		return err
	}
	line, err := readLine(d.port, "timeout reading threshold response")
	if err != nil {
		return err
	}
	echoed, err := parseQuad(line, "t")
	if err != nil {
		return errors.New("invalid threshold response format")
	}
	// The echo is the source of truth, not an assumption of success.
	if echoed[index] != value {
		return fmt.Errorf("threshold validation failed: expected %d, got %d", value, echoed[index])
	}
	return nil
}

// SetAllThresholds writes indices 0..3 in order, failing fast on the first
// rejected index. A mid-sequence failure leaves the remaining indices
// unset on the device; callers own that partial-application semantic.
func (d *Driver) SetAllThresholds(ctx context.Context, thresholds [4]int) error {
	for index, value := range thresholds {
		if err := d.SetThreshold(ctx, index, value); err != nil {
			return err
		}
	}
	return nil
}

// CurrentThresholds reads the thresholds the device actually holds
// ("t" request).
func (d *Driver) CurrentThresholds(ctx context.Context) ([4]int, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return [4]int{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.port.Write([]byte("t\n")); err != nil {
		return [4]int{}, err
	}
	line, err := readLine(d.port, "timeout reading threshold values")
	if err != nil {
		return [4]int{}, err
	}
	values, err := parseQuad(line, "t")
	if err != nil {
		return [4]int{}, errors.New("invalid threshold response format")
	}
	return values, nil
}

// parseQuad validates a "<tag> v0 v1 v2 v3" response line.
func parseQuad(line []byte, tag string) ([4]int, error) {
	fields := strings.Fields(strings.TrimSpace(string(line)))
	if len(fields) != 5 || fields[0] != tag {
		return [4]int{}, fmt.Errorf("expected 5 %q-tagged fields, got %q", tag, string(line))
	}
	var values [4]int
	for i := 0; i < 4; i++ {
		v, err := strconv.Atoi(fields[i+1])
		if err != nil {
			return [4]int{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		values[i] = v
	}
	return values, nil
}
