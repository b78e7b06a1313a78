package source

import (
	"context"
	"fmt"

	"go.bug.st/serial"
)

// DefaultBaudRate matches the Arduino sketch.
const DefaultBaudRate = 9600

// SerialSource reads from a local serial port (e.g. /dev/ttyACM0 or COM3).
type SerialSource struct {
	handle
	path string
	baud int
}

func NewSerialSource(path string, baud int) *SerialSource {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	return &SerialSource{path: path, baud: baud}
}

func (s *SerialSource) Open(_ context.Context) error {
	port, err := serial.Open(s.path, &serial.Mode{
		BaudRate: s.baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", s.path, err)
	}
	s.set(port)
	return nil
}

func (s *SerialSource) String() string {
	return fmt.Sprintf("serial:%s@%d", s.path, s.baud)
}
