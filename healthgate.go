package healthgate

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cfg "github.com/loykin/healthgate/internal/config"
	"github.com/loykin/healthgate/internal/journal"
	"github.com/loykin/healthgate/internal/logger"
	"github.com/loykin/healthgate/internal/metrics"
	"github.com/loykin/healthgate/internal/probe"
	"github.com/loykin/healthgate/internal/report"
	iapi "github.com/loykin/healthgate/internal/server"
	"github.com/loykin/healthgate/internal/service"
	"github.com/loykin/healthgate/internal/supervisor"
)

// Re-export core types for external consumers. These are aliases, so
// conversions are zero-cost.

type Descriptor = service.Descriptor

type State = service.State

type Status = service.Status

const (
	StatusStopped   = service.StatusStopped
	StatusStarting  = service.StatusStarting
	StatusRunning   = service.StatusRunning
	StatusUnhealthy = service.StatusUnhealthy
	StatusFailed    = service.StatusFailed
)

type ProbeConfig = probe.Config

type Probe = probe.Probe

type ProbeResult = probe.Result

type LogConfig = logger.Config

type Config = cfg.Config

type JournalEvent = journal.Event

type Snapshot = report.Snapshot

// Supervisor is a thin facade over internal/supervisor.Supervisor,
// providing a stable public API for embedding.
type Supervisor struct{ inner *supervisor.Supervisor }

func New() *Supervisor { return &Supervisor{inner: supervisor.New()} }

func (s *Supervisor) Register(d Descriptor) error  { return s.inner.Register(d) }
func (s *Supervisor) Load(ds []Descriptor) error   { return s.inner.Load(ds) }
func (s *Supervisor) Names() []string              { return s.inner.Names() }
func (s *Supervisor) Status(name string) (State, error) {
	return s.inner.Status(name)
}
func (s *Supervisor) StatusAll() []State { return s.inner.StatusAll() }
func (s *Supervisor) Start(ctx context.Context, name string) (State, error) {
	return s.inner.Start(ctx, name)
}
func (s *Supervisor) Stop(name string, wait time.Duration) error { return s.inner.Stop(name, wait) }
func (s *Supervisor) StartAll(ctx context.Context) error         { return s.inner.StartAll(ctx) }
func (s *Supervisor) StopAll(wait time.Duration)                 { s.inner.StopAll(wait) }
func (s *Supervisor) History(ctx context.Context, name string, limit int) ([]JournalEvent, error) {
	return s.inner.History(ctx, name, limit)
}

// UseJournal attaches a SQLite transition journal at path.
func (s *Supervisor) UseJournal(path string) error {
	j, err := journal.OpenSQLite(path)
	if err != nil {
		return err
	}
	return s.inner.SetJournal(j)
}

// SetupLogging installs the process-wide slog default.
func SetupLogging(level string) { logger.Setup(level) }

// LoadConfig reads the TOML configuration at path.
func LoadConfig(path string) (*Config, error) { return cfg.Load(path) }

// NewReporter builds a status reporter sampling diskPath for disk usage.
func NewReporter(s *Supervisor, diskPath string) *report.Reporter {
	return report.New(s.inner, diskPath)
}

// NewHTTPServer starts the admin HTTP server exposing the supervisor.
func NewHTTPServer(addr, basePath string, s *Supervisor, rep *report.Reporter, withMetrics bool) *http.Server {
	return iapi.NewServer(addr, iapi.NewRouter(s.inner, rep, basePath, withMetrics))
}

// Metrics helpers (public facade).

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics runs a standalone /metrics server on addr in the caller
// goroutine, returning any listen error.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
