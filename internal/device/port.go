// Package device implements the serial line protocol for the FSR pad
// controller. It defines the Port capability interface and the Driver that
// speaks the protocol over it.
package device

import (
	"bytes"
	"errors"
	"io"
)

// maxLineBytes is the expected worst-case response line,
// "t 1000 1000 1000 1000\n" (22 bytes). The reader handles longer lines;
// this only sizes the read chunks.
const maxLineBytes = 32

// ErrTimeout is returned by a Port read when the read deadline elapses
// before any byte arrives.
var ErrTimeout = errors.New("device: read timeout")

// ErrNotConnected is returned by NullPort reads.
var ErrNotConnected = errors.New("device: no device connected")

// Port is the minimal byte-stream capability the driver needs. Callers must
// hold the driver's lock for the full request/response exchange; Port
// implementations are not required to be safe for concurrent use.
type Port interface {
	io.Reader
	io.Writer
}

// readLine accumulates bytes from p until a '\n' is seen, then returns the
// line including the terminator. A zero-byte read without an error is not a
// failure; the loop keeps polling.
//
// Timeout policy: a timeout with no bytes accumulated fails with timeoutMsg.
// A timeout after partial bytes accepts the partial line as-is. That is a
// best-effort compatibility behavior, not a protocol guarantee: the partial
// line may then fail response parsing.
func readLine(p Port, timeoutMsg string) ([]byte, error) {
	buf := make([]byte, 0, maxLineBytes)
	chunk := make([]byte, maxLineBytes)
	for {
		n, err := p.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if i := bytes.IndexByte(buf, '\n'); i >= 0 {
				return buf[:i+1], nil
			}
		}
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				if len(buf) > 0 {
					return buf, nil
				}
				return nil, errors.New(timeoutMsg)
			}
			return nil, err
		}
	}
}

// NullPort is the stand-in used when no physical device could be opened.
// Reads always fail; writes are accepted and discarded. It keeps the daemon
// and its command surface alive without a pad attached.
type NullPort struct{}

func (NullPort) Read(p []byte) (int, error) { return 0, ErrNotConnected }

func (NullPort) Write(p []byte) (int, error) { return len(p), nil }
