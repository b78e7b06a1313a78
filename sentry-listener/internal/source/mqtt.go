package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	mqttcommon "github.com/anb2473/Archeology-Sentry/sentry-common/mqtt"
)

// Subscriber is the part of the MQTT client the source needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqttcommon.MessageHandler) error
	Unsubscribe(topics ...string) error
	IsConnected() bool
}

// MQTTSource reads device lines republished on an MQTT topic by a gateway.
// Each payload is written to a pipe followed by a newline; the subscription
// callback blocks while the reader is behind.
type MQTTSource struct {
	sub   Subscriber
	topic string
	qos   byte

	mu sync.Mutex
	pr *io.PipeReader
	pw *io.PipeWriter
}

func NewMQTTSource(sub Subscriber, topic string, qos byte) *MQTTSource {
	return &MQTTSource{sub: sub, topic: topic, qos: qos}
}

// Open subscribes to the topic. It fails with ErrBrokerDisconnected while the
// broker connection is down so the caller backs off instead of subscribing
// into a dead session.
func (s *MQTTSource) Open(_ context.Context) error {
	_ = s.Close()
	if !s.sub.IsConnected() {
		return fmt.Errorf("subscribe %s: %w", s.topic, ErrBrokerDisconnected)
	}

	pr, pw := io.Pipe()
	s.mu.Lock()
	s.pr, s.pw = pr, pw
	s.mu.Unlock()

	err := s.sub.Subscribe(s.topic, s.qos, func(_ string, payload []byte) error {
		trimmed := bytes.TrimRight(payload, "\r\n")
		line := make([]byte, 0, len(trimmed)+1)
		line = append(append(line, trimmed...), '\n')
		_, err := pw.Write(line)
		return err
	})
	if err != nil {
		_ = pr.Close()
		return fmt.Errorf("subscribe %s: %w", s.topic, err)
	}
	return nil
}

func (s *MQTTSource) Read(p []byte) (int, error) {
	s.mu.Lock()
	pr := s.pr
	s.mu.Unlock()
	if pr == nil {
		return 0, ErrNotOpen
	}
	return pr.Read(p)
}

func (s *MQTTSource) Close() error {
	s.mu.Lock()
	pr, pw := s.pr, s.pw
	s.pr, s.pw = nil, nil
	s.mu.Unlock()
	if pr == nil {
		return nil
	}

	_ = pr.Close()
	_ = pw.Close()
	return s.sub.Unsubscribe(s.topic)
}

func (s *MQTTSource) String() string {
	return "mqtt:" + s.topic
}
