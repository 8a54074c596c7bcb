package journal

import (
	"context"
	"time"
)

// Event is one recorded status transition of a managed service.
type Event struct {
	ID         int64     `json:"id"`
	Service    string    `json:"service"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	PID        int       `json:"pid,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Recorder persists transitions for post-mortems. Implementations must be
// safe for concurrent use; the supervisor treats recording as best-effort
// and never fails an operation on a recorder error.
type Recorder interface {
	EnsureSchema(ctx context.Context) error
	Record(ctx context.Context, ev Event) error
	// EventsFor returns the most recent events for a service, newest first.
	EventsFor(ctx context.Context, service string, limit int) ([]Event, error)
	Close() error
}
