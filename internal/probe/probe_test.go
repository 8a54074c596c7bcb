package probe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

func TestTCPProbe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer func() { _ = ln.Close() }()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	p := TCP{Addr: ln.Addr().String(), Timeout: time.Second}
	if res := p.Check(context.Background()); !res.Healthy {
		t.Fatalf("listening port reported unhealthy: %+v", res)
	}

	_ = ln.Close()
	if res := p.Check(context.Background()); res.Healthy {
		t.Fatalf("closed port reported healthy: %+v", res)
	}
	if res := p.Check(context.Background()); res.Detail["error"] == nil {
		t.Fatalf("refusal detail missing: %+v", res)
	}
}

func TestHTTPProbeStatusCodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy","ollama_status":"healthy"}`))
	}))
	defer srv.Close()

	p := HTTP{URL: srv.URL, Timeout: time.Second}
	res := p.Check(context.Background())
	if !res.Healthy {
		t.Fatalf("200 reported unhealthy: %+v", res)
	}
	body, ok := res.Detail["body"].(map[string]any)
	if !ok || body["status"] != "healthy" {
		t.Fatalf("JSON body not surfaced in detail: %+v", res.Detail)
	}

	p.URL = srv.URL + "/bad"
	if res := p.Check(context.Background()); res.Healthy {
		t.Fatalf("503 reported healthy: %+v", res)
	}
}

func TestHTTPProbeExpectField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"degraded"}`))
	}))
	defer srv.Close()

	match := HTTP{URL: srv.URL, ExpectField: "status", Expect: "degraded", Timeout: time.Second}
	if res := match.Check(context.Background()); !res.Healthy {
		t.Fatalf("matching field reported unhealthy: %+v", res)
	}

	mismatch := HTTP{URL: srv.URL, ExpectField: "status", Expect: "healthy", Timeout: time.Second}
	if res := mismatch.Check(context.Background()); res.Healthy {
		t.Fatalf("mismatched field reported healthy: %+v", res)
	}

	missing := HTTP{URL: srv.URL, ExpectField: "nope", Expect: "x", Timeout: time.Second}
	if res := missing.Check(context.Background()); res.Healthy {
		t.Fatalf("missing field reported healthy: %+v", res)
	}
}

func TestHTTPProbeUnreachable(t *testing.T) {
	p := HTTP{URL: "http://127.0.0.1:1/health", Timeout: 500 * time.Millisecond}
	if res := p.Check(context.Background()); res.Healthy {
		t.Fatalf("unreachable URL reported healthy: %+v", res)
	}
}

func TestHTTPProbeHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	p := HTTP{URL: srv.URL, Timeout: 10 * time.Second}
	begun := time.Now()
	res := p.Check(ctx)
	if res.Healthy {
		t.Fatalf("cancelled check reported healthy")
	}
	if time.Since(begun) > time.Second {
		t.Fatalf("check ignored context cancellation")
	}
}

func TestPIDProbe(t *testing.T) {
	own := os.Getpid()
	p := PID{Get: func() int { return own }}
	if res := p.Check(context.Background()); !res.Healthy {
		t.Fatalf("own pid reported dead: %+v", res)
	}
	none := PID{Get: func() int { return 0 }}
	if res := none.Check(context.Background()); res.Healthy {
		t.Fatalf("pid 0 reported alive")
	}
	unbound := PID{}
	if res := unbound.Check(context.Background()); res.Healthy {
		t.Fatalf("unbound probe reported alive")
	}
	if unbound.Describe() != "pid:unbound" {
		t.Fatalf("Describe: %q", unbound.Describe())
	}
}

func TestConfigBuild(t *testing.T) {
	if _, err := (Config{Type: "tcp"}).Build(); err == nil {
		t.Fatalf("tcp without addr accepted")
	}
	if _, err := (Config{Type: "http"}).Build(); err == nil {
		t.Fatalf("http without url accepted")
	}
	if _, err := (Config{Type: "carrier-pigeon"}).Build(); err == nil {
		t.Fatalf("unknown type accepted")
	}
	if _, err := (Config{Type: "pid"}).Build(); err == nil {
		t.Fatalf("process config must not build standalone")
	}

	p, err := (Config{Type: "tcp", Addr: "8080"}).Build()
	if err != nil {
		t.Fatalf("bare port: %v", err)
	}
	if !strings.Contains(p.Describe(), "127.0.0.1:8080") {
		t.Fatalf("loopback default not applied: %q", p.Describe())
	}

	for _, typ := range []string{"", "pid", "process", "PID"} {
		if !(Config{Type: typ}).IsProcessProbe() {
			t.Fatalf("IsProcessProbe(%q) = false", typ)
		}
	}
	if (Config{Type: "http", URL: "http://x/"}).IsProcessProbe() {
		t.Fatalf("http misclassified as process probe")
	}
}

func TestConfigTimeoutCap(t *testing.T) {
	if got := (Config{}).timeout(); got != DefaultTimeout {
		t.Fatalf("zero timeout: %v", got)
	}
	if got := (Config{Timeout: time.Minute}).timeout(); got != DefaultTimeout {
		t.Fatalf("oversized timeout not capped: %v", got)
	}
	if got := (Config{Timeout: time.Second}).timeout(); got != time.Second {
		t.Fatalf("in-range timeout mangled: %v", got)
	}
}
