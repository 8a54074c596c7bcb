package service

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/loykin/healthgate/internal/logger"
)

func requireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tests require sh/sleep on Unix-like systems")
	}
}

func TestChildStartAndAlive(t *testing.T) {
	requireUnix(t)
	c := NewChild(Descriptor{Name: "sleeper", Command: "sleep 5"})
	if err := c.Start(nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = c.Terminate(syscall.SIGKILL, time.Second) }()

	if c.PID() <= 0 {
		t.Fatalf("pid not recorded: %d", c.PID())
	}
	if c.StartedAt().IsZero() {
		t.Fatalf("startedAt not recorded")
	}
	if !c.Alive() {
		t.Fatalf("fresh child reported dead")
	}
	if err := c.Start(nil); err == nil {
		t.Fatalf("second start should fail")
	}
}

func TestChildExitObserved(t *testing.T) {
	requireUnix(t)
	c := NewChild(Descriptor{Name: "quick", Command: "sleep 0.1"})
	if err := c.Start(nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case <-c.Exited():
	case <-time.After(3 * time.Second):
		t.Fatalf("exit not observed")
	}
	if c.Alive() {
		t.Fatalf("exited child reported alive")
	}
	if c.StoppedAt().IsZero() {
		t.Fatalf("stoppedAt not recorded")
	}
	if c.ExitErr() != nil {
		t.Fatalf("clean exit recorded error: %v", c.ExitErr())
	}
}

func TestChildExitErrOnFailure(t *testing.T) {
	requireUnix(t)
	c := NewChild(Descriptor{Name: "failer", Command: "sh -c 'exit 3'"})
	if err := c.Start(nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case <-c.Exited():
	case <-time.After(3 * time.Second):
		t.Fatalf("exit not observed")
	}
	if c.ExitErr() == nil {
		t.Fatalf("nonzero exit not recorded")
	}
}

func TestTerminateGraceful(t *testing.T) {
	requireUnix(t)
	c := NewChild(Descriptor{Name: "graceful", Command: "sleep 30"})
	if err := c.Start(nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	begun := time.Now()
	if err := c.Terminate(syscall.SIGTERM, 5*time.Second); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	if took := time.Since(begun); took > 3*time.Second {
		t.Fatalf("SIGTERM-responsive child took %v to stop", took)
	}
	if c.Alive() {
		t.Fatalf("terminated child reported alive")
	}
}

func TestTerminateEscalatesToKill(t *testing.T) {
	requireUnix(t)
	// trap ignores SIGTERM so only the SIGKILL escalation can end it
	c := NewChild(Descriptor{Name: "stubborn", Command: `sh -c 'trap "" TERM; sleep 30'`})
	if err := c.Start(nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	// let the shell install the trap
	time.Sleep(200 * time.Millisecond)
	if err := c.Terminate(syscall.SIGTERM, 500*time.Millisecond); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	select {
	case <-c.Exited():
	case <-time.After(3 * time.Second):
		t.Fatalf("escalation did not kill the child")
	}
}

func TestTerminateIdempotent(t *testing.T) {
	requireUnix(t)
	c := NewChild(Descriptor{Name: "twice", Command: "sleep 0.1"})
	if err := c.Start(nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-c.Exited()
	if err := c.Terminate(syscall.SIGTERM, time.Second); err != nil {
		t.Fatalf("terminate after exit: %v", err)
	}
	if err := c.Terminate(syscall.SIGTERM, time.Second); err != nil {
		t.Fatalf("repeated terminate: %v", err)
	}
}

func TestChildWritesRotatedLogs(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	logs := filepath.Join(dir, "logs")
	c := NewChild(Descriptor{
		Name:    "logged",
		Command: "sh -c 'echo out; echo err 1>&2'",
		Log:     logger.Config{Dir: logs},
	})
	if err := c.Start(nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-c.Exited()

	out, err := os.ReadFile(filepath.Join(logs, "logged.stdout.log"))
	if err != nil || !strings.Contains(string(out), "out") {
		t.Fatalf("stdout log: %v content=%q", err, string(out))
	}
	errb, err := os.ReadFile(filepath.Join(logs, "logged.stderr.log"))
	if err != nil || !strings.Contains(string(errb), "err") {
		t.Fatalf("stderr log: %v content=%q", err, string(errb))
	}
}

func TestChildExtraEnvAndWorkDir(t *testing.T) {
	requireUnix(t)
	dir := t.TempDir()
	c := NewChild(Descriptor{
		Name:    "envy",
		Command: `sh -c 'echo "$FOO $BAR" > out.txt'`,
		WorkDir: dir,
		Env:     []string{"FOO=foo"},
	})
	if err := c.Start([]string{"BAR=bar"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-c.Exited()
	b, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	if err != nil || strings.TrimSpace(string(b)) != "foo bar" {
		t.Fatalf("env/workdir not applied: %v content=%q", err, string(b))
	}
}
