// Package observer is the local sink for everything the listener does not
// forward: device info/error messages, dropped lines and failed sends.
package observer

import (
	"github.com/anb2473/Archeology-Sentry/sentry-listener/internal/parser"
)

type Observer interface {
	// DeviceMessage receives Info and DeviceError events.
	DeviceMessage(ev parser.Event)
	// ProtocolError receives lines that were dropped by the parser or framer.
	ProtocolError(line string, err error)
	Forwarded(ev parser.Event)
	ForwardFailed(ev parser.Event, err error)
}

// Multi fans out to every observer in order.
type Multi []Observer

func (m Multi) DeviceMessage(ev parser.Event) {
	for _, o := range m {
		o.DeviceMessage(ev)
	}
}

func (m Multi) ProtocolError(line string, err error) {
	for _, o := range m {
		o.ProtocolError(line, err)
	}
}

func (m Multi) Forwarded(ev parser.Event) {
	for _, o := range m {
		o.Forwarded(ev)
	}
}

func (m Multi) ForwardFailed(ev parser.Event, err error) {
	for _, o := range m {
		o.ForwardFailed(ev, err)
	}
}
