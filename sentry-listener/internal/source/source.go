// Package source abstracts the device connection behind a blocking reader with
// explicit Open and Close. Close unblocks a Read in progress, which is how
// shutdown reaches the framer.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var (
	ErrNotOpen       = errors.New("source not open")
	ErrUnknownSource = errors.New("unknown source kind")

	ErrBrokerDisconnected = errors.New("mqtt broker not connected")
)

// Source is a reopenable device byte stream.
type Source interface {
	io.ReadCloser
	// Open (re)establishes the connection. Calling Open on an open source
	// replaces the previous connection.
	Open(ctx context.Context) error
	String() string
}

const (
	KindSerial = "serial"
	KindTCP    = "tcp"
	KindFile   = "file"
	KindMQTT   = "mqtt"
)

type Config struct {
	Kind string

	SerialPort string
	BaudRate   int

	TCPAddr     string
	DialTimeout time.Duration

	ReplayFile      string
	ReplayLineDelay time.Duration

	MQTTTopic string
	MQTTQoS   byte
}

// New builds the Source selected by cfg.Kind. sub is only used for KindMQTT.
func New(cfg Config, sub Subscriber) (Source, error) {
	switch cfg.Kind {
	case KindSerial, "":
		return NewSerialSource(cfg.SerialPort, cfg.BaudRate), nil
	case KindTCP:
		return NewTCPSource(cfg.TCPAddr, cfg.DialTimeout), nil
	case KindFile:
		return NewFileSource(cfg.ReplayFile, cfg.ReplayLineDelay), nil
	case KindMQTT:
		if sub == nil {
			return nil, fmt.Errorf("mqtt source requires a subscriber")
		}
		return NewMQTTSource(sub, cfg.MQTTTopic, cfg.MQTTQoS), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, cfg.Kind)
	}
}

// handle guards the current connection so Close may race with Read.
type handle struct {
	mu sync.Mutex
	rc io.ReadCloser
}

func (h *handle) set(rc io.ReadCloser) {
	h.mu.Lock()
	old := h.rc
	h.rc = rc
	h.mu.Unlock()
	if old != nil {
		_ = old.Close()
	}
}

func (h *handle) current() io.ReadCloser {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rc
}

func (h *handle) Read(p []byte) (int, error) {
	rc := h.current()
	if rc == nil {
		return 0, ErrNotOpen
	}
	return rc.Read(p)
}

func (h *handle) Close() error {
	h.mu.Lock()
	rc := h.rc
	h.rc = nil
	h.mu.Unlock()
	if rc == nil {
		return nil
	}
	return rc.Close()
}
