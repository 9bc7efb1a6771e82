package device

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
)

// SimPort simulates a pad controller for development and tests: telemetry
// oscillates smoothly per channel and threshold writes are echoed back the
// way the firmware does.
type SimPort struct {
	mu         sync.Mutex
	thresholds [4]int
	readBuf    []byte
	phases     [4]float64
	phaseStep  float64
	history    []ThresholdWrite
}

// ThresholdWrite records one applied threshold set for test inspection.
type ThresholdWrite struct {
	Index int
	Value int
}

// NewSim creates a simulated device holding the given initial thresholds.
func NewSim(initial [4]int) *SimPort {
	return &SimPort{
		thresholds: initial,
		// Phase offsets differentiate the four channels; ~0.2 Hz at 60 Hz
		// polling gives a ~5 s period.
		phases:    [4]float64{0, math.Pi * 0.5, math.Pi, math.Pi * 1.5},
		phaseStep: 2 * math.Pi * 0.2 / 60,
	}
}

func (s *SimPort) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.readBuf) == 0 {
		// Nothing queued: behave like a non-blocking empty read.
		return 0, nil
	}
	n := copy(p, s.readBuf)
	s.readBuf = s.readBuf[n:]
	return n, nil
}

func (s *SimPort) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := strings.TrimSpace(string(p))
	switch {
	case line == "v":
		v := s.nextSensorValues()
		s.enqueue(fmt.Sprintf("v %d %d %d %d\n", v[0], v[1], v[2], v[3]))
	case line == "t":
		s.enqueueThresholds()
	default:
		// Threshold set request: "<index> <value>"
		fields := strings.Fields(line)
		if len(fields) == 2 {
			idx, errIdx := strconv.Atoi(fields[0])
			val, errVal := strconv.Atoi(fields[1])
			if errIdx == nil && errVal == nil {
				if idx >= 0 && idx < 4 {
					s.thresholds[idx] = val
					s.history = append(s.history, ThresholdWrite{Index: idx, Value: val})
				}
				s.enqueueThresholds()
			}
		}
	}
	return len(p), nil
}

// nextSensorValues advances each channel's phase and maps it to 0..1023.
func (s *SimPort) nextSensorValues() [4]int {
	var values [4]int
	for i := range s.phases {
		s.phases[i] = math.Mod(s.phases[i]+s.phaseStep, 2*math.Pi)
		values[i] = int(math.Round((math.Sin(s.phases[i]) + 1) * 0.5 * 1023))
	}
	return values
}

func (s *SimPort) enqueueThresholds() {
	t := s.thresholds
	s.enqueue(fmt.Sprintf("t %d %d %d %d\n", t[0], t[1], t[2], t[3]))
}

func (s *SimPort) enqueue(line string) {
	s.readBuf = append(s.readBuf, line...)
}

// Thresholds returns the device-held thresholds for test inspection.
func (s *SimPort) Thresholds() [4]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thresholds
}

// SetThresholds overwrites the device-held thresholds, bypassing the
// protocol. Tests use it to create drift from the stored profile.
func (s *SimPort) SetThresholds(t [4]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thresholds = t
}

// History returns all threshold writes applied so far, in order.
func (s *SimPort) History() []ThresholdWrite {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ThresholdWrite, len(s.history))
	copy(out, s.history)
	return out
}
