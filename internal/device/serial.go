package device

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

const (
	baudRate    = 115200
	readTimeout = 100 * time.Millisecond
)

// serialPort adapts a go.bug.st/serial port to the Port interface.
// The library reports an elapsed read timeout as a zero-byte read with a
// nil error; the driver's line reader needs timeouts as a distinct
// condition, so the adapter maps that case onto ErrTimeout.
type serialPort struct {
	inner serial.Port
}

// OpenSerial opens the pad controller's serial port with the protocol's
// fixed line settings.
func OpenSerial(name string) (Port, error) {
	mode := &serial.Mode{BaudRate: baudRate}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("device: open %s: %w", name, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("device: set read timeout on %s: %w", name, err)
	}
	return &serialPort{inner: port}, nil
}

func (s *serialPort) Read(p []byte) (int, error) {
	n, err := s.inner.Read(p)
	if n == 0 && err == nil {
		return 0, ErrTimeout
	}
	return n, err
}

func (s *serialPort) Write(p []byte) (int, error) {
	return s.inner.Write(p)
}
