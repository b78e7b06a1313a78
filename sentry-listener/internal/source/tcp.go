package source

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPSource reads from a serial-to-network bridge (ser2net, ESP-Link).
type TCPSource struct {
	handle
	addr    string
	timeout time.Duration
}

func NewTCPSource(addr string, timeout time.Duration) *TCPSource {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TCPSource{addr: addr, timeout: timeout}
}

func (s *TCPSource) Open(ctx context.Context) error {
	d := net.Dialer{Timeout: s.timeout, KeepAlive: 30 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.addr, err)
	}
	s.set(conn)
	return nil
}

func (s *TCPSource) String() string {
	return "tcp:" + s.addr
}
