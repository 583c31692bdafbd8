package source

import (
	"context"
	"fmt"
	"net"
)

type tcpSource struct {
	net.Conn
	addr string
}

func (s *tcpSource) Describe() string { return fmt.Sprintf("tcp:%s", s.addr) }

// NewTCP connects to a receiver bridge that forwards the raw serial stream
// over TCP (common when the receiver sits on a different machine).
func NewTCP(ctx context.Context, addr string) (Source, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return &tcpSource{Conn: conn, addr: addr}, nil
}
