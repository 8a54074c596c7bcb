package probe

import (
	"context"
	"errors"
	"fmt"
	"syscall"
)

// PID reports healthy while the process returned by Get exists. The
// supervisor binds Get to the supervised child so the probe follows the
// current run rather than a pid captured at registration.
type PID struct {
	Get func() int
}

func (p PID) Check(_ context.Context) Result {
	pid := 0
	if p.Get != nil {
		pid = p.Get()
	}
	if pid <= 0 {
		return unhealthy(map[string]any{"pid": pid})
	}
	err := syscall.Kill(pid, 0)
	if err == nil || errors.Is(err, syscall.EPERM) {
		return healthy(map[string]any{"pid": pid})
	}
	return unhealthy(map[string]any{"pid": pid, "error": err.Error()})
}

func (p PID) Describe() string {
	if p.Get != nil {
		return fmt.Sprintf("pid:%d", p.Get())
	}
	return "pid:unbound"
}
