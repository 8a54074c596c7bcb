package service

import (
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/loykin/healthgate/internal/logger"
	"github.com/loykin/healthgate/internal/probe"
)

// Default gate and shutdown parameters applied by Normalize when a
// descriptor leaves them unset.
const (
	DefaultStartTimeout  = 30 * time.Second
	DefaultProbeInterval = time.Second
	DefaultGracePeriod   = 10 * time.Second
)

// Descriptor describes one managed service. It is immutable once registered
// with a supervisor; per-run state lives in State.
type Descriptor struct {
	Name          string        `json:"name" mapstructure:"name"`
	Command       string        `json:"command" mapstructure:"command"`               // start command (shell-aware)
	WorkDir       string        `json:"work_dir" mapstructure:"work_dir"`             // optional working dir
	Env           []string      `json:"env" mapstructure:"env"`                       // optional extra env, KEY=VALUE
	DependsOn     []string      `json:"depends_on" mapstructure:"depends_on"`         // services that must be running first
	StopSignal    string        `json:"stop_signal" mapstructure:"stop_signal"`       // TERM (default), INT, HUP, QUIT, KILL
	StartTimeout  time.Duration `json:"start_timeout" mapstructure:"start_timeout"`   // health gate budget for one start
	ProbeInterval time.Duration `json:"probe_interval" mapstructure:"probe_interval"` // delay between probe attempts
	GracePeriod   time.Duration `json:"grace_period" mapstructure:"grace_period"`     // graceful shutdown window before kill
	Probe         probe.Config  `json:"probe" mapstructure:"probe"`
	Log           logger.Config `json:"log" mapstructure:"log"`

	// HealthCheck overrides the probe built from Probe when non-nil.
	// Used by embedders and tests; not representable in config files.
	HealthCheck probe.Probe `json:"-" mapstructure:"-"`
}

// Validate rejects descriptors that cannot be managed. It does not touch
// the dependency graph; the supervisor owns that at registration time.
func (d *Descriptor) Validate() error {
	if !IsSafeName(d.Name) {
		return fmt.Errorf("invalid service name %q: allowed [A-Za-z0-9._-]", d.Name)
	}
	if strings.TrimSpace(d.Command) == "" {
		return fmt.Errorf("service %s: command is required", d.Name)
	}
	if d.StartTimeout < 0 || d.ProbeInterval < 0 || d.GracePeriod < 0 {
		return fmt.Errorf("service %s: negative timeout", d.Name)
	}
	if _, err := d.Signal(); err != nil {
		return fmt.Errorf("service %s: %w", d.Name, err)
	}
	for _, dep := range d.DependsOn {
		if dep == d.Name {
			return fmt.Errorf("service %s: depends on itself", d.Name)
		}
	}
	return nil
}

// Normalize fills zero-valued gate parameters with defaults.
func (d *Descriptor) Normalize() {
	if d.StartTimeout == 0 {
		d.StartTimeout = DefaultStartTimeout
	}
	if d.ProbeInterval == 0 {
		d.ProbeInterval = DefaultProbeInterval
	}
	if d.GracePeriod == 0 {
		d.GracePeriod = DefaultGracePeriod
	}
}

// Signal resolves StopSignal to a syscall signal. Empty means SIGTERM.
func (d *Descriptor) Signal() (syscall.Signal, error) {
	switch strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(d.StopSignal), "SIG")) {
	case "", "TERM":
		return syscall.SIGTERM, nil
	case "INT":
		return syscall.SIGINT, nil
	case "HUP":
		return syscall.SIGHUP, nil
	case "QUIT":
		return syscall.SIGQUIT, nil
	case "KILL":
		return syscall.SIGKILL, nil
	default:
		return 0, fmt.Errorf("unsupported stop signal %q", d.StopSignal)
	}
}

// BuildCommand constructs an *exec.Cmd for the descriptor's Command.
// It avoids a shell when none is needed, and honors an explicit shell
// invocation already present in the command string without double-wrapping.
func (d *Descriptor) BuildCommand() *exec.Cmd {
	cmdStr := strings.TrimSpace(d.Command)
	if cmdStr == "" {
		// #nosec G204
		return exec.Command("/bin/true")
	}
	if after, ok := stripExplicitShell(cmdStr); ok {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", after)
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	// #nosec G204
	return exec.Command(parts[0], args...)
}

// stripExplicitShell matches "sh -c <ARG>" style prefixes and returns the
// script after "-c", with one wrapping quote pair removed so redirections
// inside the script still parse.
func stripExplicitShell(cmdStr string) (string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	for _, p := range []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "} {
		if !strings.HasPrefix(trim, p) {
			continue
		}
		after := trim[len(p):]
		if n := len(after); n >= 2 {
			if (after[0] == '\'' && after[n-1] == '\'') || (after[0] == '"' && after[n-1] == '"') {
				after = after[1 : n-1]
			}
		}
		return after, true
	}
	return "", false
}

// IsSafeName reports whether s is usable as a service name in file paths
// and URLs: [A-Za-z0-9._-], no traversal, no separators.
func IsSafeName(s string) bool {
	if s == "" || strings.Contains(s, "..") {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-':
		default:
			return false
		}
	}
	return !strings.ContainsAny(s, "/\\")
}
