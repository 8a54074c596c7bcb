package healthgate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func requireUnix(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix-like environment")
	}
}

type passingProbe struct{}

func (passingProbe) Check(context.Context) ProbeResult {
	return ProbeResult{Healthy: true, CheckedAt: time.Now()}
}

func (passingProbe) Describe() string { return "pass" }

func gated(name string, deps ...string) Descriptor {
	return Descriptor{
		Name:          name,
		Command:       "sleep 30",
		DependsOn:     deps,
		StartTimeout:  2 * time.Second,
		ProbeInterval: 20 * time.Millisecond,
		GracePeriod:   time.Second,
		HealthCheck:   passingProbe{},
	}
}

func TestFacadeStartStatusStop(t *testing.T) {
	requireUnix(t)
	s := New()
	if err := s.Load([]Descriptor{gated("api", "db"), gated("db")}); err != nil {
		t.Fatalf("load: %v", err)
	}
	defer s.StopAll(time.Second)

	st, err := s.Start(context.Background(), "api")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if st.Status != StatusRunning || st.PID <= 0 {
		t.Fatalf("state: %+v", st)
	}
	dep, err := s.Status("db")
	if err != nil || dep.Status != StatusRunning {
		t.Fatalf("dependency: %+v %v", dep, err)
	}

	if err := s.Stop("api", time.Second); err != nil {
		t.Fatalf("stop: %v", err)
	}
	st, _ = s.Status("api")
	if st.Status != StatusStopped {
		t.Fatalf("state after stop: %+v", st)
	}
	if got := s.Names(); len(got) != 2 || got[0] != "db" {
		t.Fatalf("names: %v", got)
	}
}

func TestFacadeJournalHistory(t *testing.T) {
	requireUnix(t)
	s := New()
	if err := s.UseJournal(filepath.Join(t.TempDir(), "j.db")); err != nil {
		t.Fatalf("journal: %v", err)
	}
	if err := s.Register(gated("svc")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := s.Start(context.Background(), "svc"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Stop("svc", time.Second); err != nil {
		t.Fatalf("stop: %v", err)
	}
	events, err := s.History(context.Background(), "svc", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(events) < 3 {
		t.Fatalf("expected full transition trail, got %d", len(events))
	}
}

func TestFacadeHTTPServer(t *testing.T) {
	requireUnix(t)
	s := New()
	if err := s.Register(gated("svc")); err != nil {
		t.Fatalf("register: %v", err)
	}
	defer s.StopAll(time.Second)

	rep := NewReporter(s, "")
	srv := NewHTTPServer("127.0.0.1:0", "/api", s, rep, false)
	defer func() { _ = srv.Close() }()
	// NewHTTPServer binds asynchronously; exercise the handler directly
	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status endpoint: %d", rec.Code)
	}
}

func TestLoadConfigFacade(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
log_level = "info"

[[services]]
name = "svc"
command = "sleep 1"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Services) != 1 || cfg.Services[0].Name != "svc" {
		t.Fatalf("config: %+v", cfg)
	}
}
