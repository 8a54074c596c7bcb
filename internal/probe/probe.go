package probe

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultTimeout bounds a single probe call. It is deliberately short and
// independent of any start timeout, which only governs how many attempts
// are made.
const DefaultTimeout = 5 * time.Second

// Probe is a health-check strategy. Implementations are stateless and safe
// for concurrent use. Unreachable or refused targets are a normal unhealthy
// Result, never an error: Check has no error return by design of the
// supervisor's retry loop.
type Probe interface {
	// Check performs one health check, honoring ctx for cancellation.
	Check(ctx context.Context) Result
	// Describe returns a short human-readable description of the strategy.
	Describe() string
}

// Result is the structured outcome of one probe invocation.
type Result struct {
	Healthy   bool           `json:"healthy"`
	Detail    map[string]any `json:"detail,omitempty"`
	CheckedAt time.Time      `json:"checked_at,omitzero"`
}

func unhealthy(detail map[string]any) Result {
	return Result{Healthy: false, Detail: detail, CheckedAt: time.Now()}
}

func healthy(detail map[string]any) Result {
	return Result{Healthy: true, Detail: detail, CheckedAt: time.Now()}
}

// Config is the file-facing description of a probe. Type selects the
// variant: "tcp", "http", or "pid" (default). The pid variant has no
// parameters here; it is bound to the supervised process by the supervisor.
type Config struct {
	Type        string        `json:"type" mapstructure:"type"`
	Addr        string        `json:"addr" mapstructure:"addr"`                 // tcp: host:port; host defaults to 127.0.0.1 when only a port is given
	URL         string        `json:"url" mapstructure:"url"`                   // http: endpoint to GET
	ExpectField string        `json:"expect_field" mapstructure:"expect_field"` // http: optional JSON field to match
	Expect      string        `json:"expect" mapstructure:"expect"`             // http: required value of ExpectField
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`           // per-call timeout, capped at DefaultTimeout
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 || c.Timeout > DefaultTimeout {
		return DefaultTimeout
	}
	return c.Timeout
}

// IsProcessProbe reports whether the config resolves to process liveness,
// which the supervisor must bind to the child's pid itself.
func (c Config) IsProcessProbe() bool {
	switch strings.ToLower(strings.TrimSpace(c.Type)) {
	case "", "pid", "process":
		return true
	}
	return false
}

// Build constructs the configured probe. Process-liveness configs return an
// error here; use IsProcessProbe and bind a PID probe instead.
func (c Config) Build() (Probe, error) {
	switch strings.ToLower(strings.TrimSpace(c.Type)) {
	case "tcp":
		if c.Addr == "" {
			return nil, fmt.Errorf("tcp probe: addr is required")
		}
		addr := c.Addr
		if !strings.Contains(addr, ":") {
			addr = "127.0.0.1:" + addr
		}
		return TCP{Addr: addr, Timeout: c.timeout()}, nil
	case "http":
		if c.URL == "" {
			return nil, fmt.Errorf("http probe: url is required")
		}
		return HTTP{URL: c.URL, ExpectField: c.ExpectField, Expect: c.Expect, Timeout: c.timeout()}, nil
	case "", "pid", "process":
		return nil, fmt.Errorf("process probe must be bound to a supervised pid")
	default:
		return nil, fmt.Errorf("unknown probe type %q", c.Type)
	}
}
