package probe

import (
	"context"
	"net"
	"time"
)

// TCP reports healthy when a TCP connection to Addr succeeds within Timeout.
type TCP struct {
	Addr    string
	Timeout time.Duration
}

func (p TCP) Check(ctx context.Context) Result {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return unhealthy(map[string]any{"addr": p.Addr, "error": err.Error()})
	}
	_ = conn.Close()
	return healthy(map[string]any{"addr": p.Addr})
}

func (p TCP) Describe() string { return "tcp:" + p.Addr }
