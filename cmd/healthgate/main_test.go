package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/loykin/healthgate"
)

func TestRootHasAllSubcommands(t *testing.T) {
	root := buildRoot()
	want := map[string]bool{
		"serve": false, "up": false, "down": false,
		"start": false, "stop": false, "status": false, "report": false,
	}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Fatalf("subcommand %s missing", name)
		}
	}
}

func TestHumanBytes(t *testing.T) {
	cases := map[uint64]string{
		512:             "512B",
		2048:            "2.0KiB",
		3 * 1024 * 1024: "3.0MiB",
		5 << 30:         "5.0GiB",
		2 << 40:         "2.0TiB",
		1 << 50:         "1.0PiB",
		3 << 60:         "3.0EiB",
	}
	for in, want := range cases {
		if got := humanBytes(in); got != want {
			t.Fatalf("humanBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestAPIClientDecodesStateAndErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/start":
			if r.URL.Query().Get("name") != "svc" {
				w.WriteHeader(http.StatusNotFound)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "unknown service: ghost"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"ok":    true,
				"state": healthgate.State{Name: "svc", Status: healthgate.StatusRunning, PID: 42},
			})
		case "/api/status":
			_ = json.NewEncoder(w).Encode([]healthgate.State{
				{Name: "db", Status: healthgate.StatusRunning},
				{Name: "api", Status: healthgate.StatusStopped},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewAPIClient(srv.URL+"/api", 2*time.Second)

	st, err := c.Start("svc")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if st.Name != "svc" || st.PID != 42 || st.Status != healthgate.StatusRunning {
		t.Fatalf("decoded state: %+v", st)
	}

	if _, err := c.Start("ghost"); err == nil {
		t.Fatalf("API error not surfaced")
	}

	sts, err := c.StatusAll()
	if err != nil {
		t.Fatalf("statusAll: %v", err)
	}
	if len(sts) != 2 || sts[0].Name != "db" {
		t.Fatalf("decoded states: %+v", sts)
	}
}

func TestAPIClientDefaults(t *testing.T) {
	c := NewAPIClient("", 0)
	if c.baseURL != "http://localhost:8080/api" {
		t.Fatalf("default baseURL: %q", c.baseURL)
	}
	if c.client.Timeout == 0 {
		t.Fatalf("default timeout not applied")
	}
}
