package service

import (
	"bytes"
	"errors"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"time"
)

// Child is one launched instance of a service's start command. The
// supervisor creates a fresh Child per start; a Child is never reused
// after its process exits.
type Child struct {
	mu        sync.Mutex
	desc      Descriptor
	cmd       *exec.Cmd
	pid       int
	startedAt time.Time
	stoppedAt time.Time
	exitErr   error
	exited    chan struct{} // closed by the reaper when cmd.Wait returns
	outW      io.WriteCloser
	errW      io.WriteCloser
}

func NewChild(d Descriptor) *Child { return &Child{desc: d} }

// Start launches the command detached into its own process group and
// attaches a reaper goroutine that owns cmd.Wait for the whole run.
// extraEnv entries are appended after the descriptor's own Env.
func (c *Child) Start(extraEnv []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd != nil {
		return errors.New("child already started")
	}

	cmd := c.desc.BuildCommand()
	if c.desc.WorkDir != "" {
		cmd.Dir = c.desc.WorkDir
	}
	if len(c.desc.Env) > 0 || len(extraEnv) > 0 {
		env := append([]string(nil), os.Environ()...)
		env = append(env, c.desc.Env...)
		env = append(env, extraEnv...)
		cmd.Env = env
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.attachOutput(cmd)

	if err := cmd.Start(); err != nil {
		c.closeWriters()
		return err
	}
	c.cmd = cmd
	c.pid = cmd.Process.Pid
	c.startedAt = time.Now()
	c.exited = make(chan struct{})
	go c.reap(cmd)
	return nil
}

// attachOutput wires stdout/stderr to rotated log files when configured,
// otherwise to /dev/null. Caller holds c.mu.
func (c *Child) attachOutput(cmd *exec.Cmd) {
	if c.desc.Log.Dir != "" || c.desc.Log.StdoutPath != "" || c.desc.Log.StderrPath != "" {
		if c.desc.Log.Dir != "" {
			_ = os.MkdirAll(c.desc.Log.Dir, 0o750)
		}
		outW, errW, _ := c.desc.Log.Writers(c.desc.Name)
		c.outW, c.errW = outW, errW
	}
	if c.outW != nil {
		cmd.Stdout = c.outW
	} else {
		cmd.Stdout, _ = os.OpenFile(os.DevNull, os.O_RDWR, 0)
	}
	if c.errW != nil {
		cmd.Stderr = c.errW
	} else {
		cmd.Stderr, _ = os.OpenFile(os.DevNull, os.O_RDWR, 0)
	}
}

// reap waits for the process and records its exit. Exactly one reaper runs
// per child, so Terminate never calls cmd.Wait itself.
func (c *Child) reap(cmd *exec.Cmd) {
	err := cmd.Wait()
	c.mu.Lock()
	c.stoppedAt = time.Now()
	c.exitErr = err
	c.closeWriters()
	exited := c.exited
	c.mu.Unlock()
	close(exited)
}

func (c *Child) closeWriters() {
	if c.outW != nil {
		_ = c.outW.Close()
		c.outW = nil
	}
	if c.errW != nil {
		_ = c.errW.Close()
		c.errW = nil
	}
}

// PID returns the launched process id, or 0 before Start.
func (c *Child) PID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pid
}

func (c *Child) StartedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startedAt
}

func (c *Child) StoppedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stoppedAt
}

// ExitErr returns the error recorded by the reaper, nil while running.
func (c *Child) ExitErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exitErr
}

// Exited returns a channel closed once the process has been reaped.
func (c *Child) Exited() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exited
}

// Alive probes process liveness without racing os/exec internals.
// A zombie on Linux counts as dead: the reaper will collect it shortly.
func (c *Child) Alive() bool {
	pid := c.PID()
	if pid <= 0 {
		return false
	}
	select {
	case <-c.Exited():
		return false
	default:
	}
	if runtime.GOOS == "linux" && isZombie(pid) {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}

// Signal delivers sig to the child's process group.
func (c *Child) Signal(sig syscall.Signal) error {
	pid := c.PID()
	if pid <= 0 {
		return nil
	}
	return syscall.Kill(-pid, sig)
}

// Terminate sends sig to the process group, waits up to grace for the
// reaper to observe the exit, then escalates to SIGKILL. Best-effort:
// the returned error reflects the last signal delivery failure only.
func (c *Child) Terminate(sig syscall.Signal, grace time.Duration) error {
	if !c.Alive() {
		return nil
	}
	pid := c.PID()
	err := syscall.Kill(-pid, sig)
	select {
	case <-c.Exited():
		return nil
	case <-time.After(grace):
	}
	if kerr := syscall.Kill(-pid, syscall.SIGKILL); kerr != nil && err == nil {
		err = kerr
	}
	select {
	case <-c.Exited():
	case <-time.After(200 * time.Millisecond):
		// reaper should collect momentarily; do not block the caller
	}
	return err
}

// isZombie reports whether /proc/<pid>/status shows state Z.
func isZombie(pid int) bool {
	b, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/status")
	if err != nil {
		return false
	}
	return bytes.Contains(b, []byte("State:\tZ"))
}
