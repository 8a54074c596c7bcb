package service

import (
	"time"

	"github.com/loykin/healthgate/internal/probe"
)

// Status is the lifecycle state of a managed service.
type Status string

const (
	StatusStopped   Status = "stopped"
	StatusStarting  Status = "starting"
	StatusRunning   Status = "running"
	StatusUnhealthy Status = "unhealthy"
	StatusFailed    Status = "failed"
)

// State is a point-in-time snapshot of one service. Snapshots are values;
// mutating one never affects supervisor-owned state.
type State struct {
	Name      string       `json:"name"`
	Status    Status       `json:"status"`
	PID       int          `json:"pid,omitempty"`
	StartedAt time.Time    `json:"started_at,omitzero"`
	StoppedAt time.Time    `json:"stopped_at,omitzero"`
	LastError string       `json:"last_error,omitempty"`
	LastProbe probe.Result `json:"last_probe,omitzero"`
	DependsOn []string     `json:"depends_on,omitempty"`
}

// Healthy reports whether the service is running with a passing probe.
func (s State) Healthy() bool {
	return s.Status == StatusRunning
}
