package service

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnknownService is returned for operations on names never registered.
var ErrUnknownService = errors.New("unknown service")

// DependencyNotRunningError reports a dependency that could not be brought
// to running before the dependent's start command would have executed.
type DependencyNotRunningError struct {
	Service    string
	Dependency string
	Err        error
}

func (e *DependencyNotRunningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("service %s: dependency %s not running: %v", e.Service, e.Dependency, e.Err)
	}
	return fmt.Sprintf("service %s: dependency %s not running", e.Service, e.Dependency)
}

func (e *DependencyNotRunningError) Unwrap() error { return e.Err }

// StartTimeoutError reports a start whose probe never succeeded within the
// descriptor's StartTimeout. The spawned process has been terminated.
type StartTimeoutError struct {
	Service string
	Timeout time.Duration
}

func (e *StartTimeoutError) Error() string {
	return fmt.Sprintf("service %s: no successful health probe within %s", e.Service, e.Timeout)
}

// OperationInProgressError reports a concurrent start/stop for the same name.
type OperationInProgressError struct {
	Service string
}

func (e *OperationInProgressError) Error() string {
	return fmt.Sprintf("service %s: operation already in progress", e.Service)
}

// SpawnError wraps an OS-level failure to launch the start command.
type SpawnError struct {
	Service string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("service %s: spawn failed: %v", e.Service, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

func IsDependencyNotRunning(err error) bool {
	var t *DependencyNotRunningError
	return errors.As(err, &t)
}

func IsStartTimeout(err error) bool {
	var t *StartTimeoutError
	return errors.As(err, &t)
}

func IsOperationInProgress(err error) bool {
	var t *OperationInProgressError
	return errors.As(err, &t)
}

func IsSpawnError(err error) bool {
	var t *SpawnError
	return errors.As(err, &t)
}
