package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/healthgate/internal/journal"
	"github.com/loykin/healthgate/internal/metrics"
	"github.com/loykin/healthgate/internal/probe"
	"github.com/loykin/healthgate/internal/service"
)

// Supervisor owns all service lifecycle state. One instance per process;
// callers hold a reference, there are no ambient globals.
type Supervisor struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string // topological registration order
	journal journal.Recorder
	log     *slog.Logger
}

// entry holds supervisor-owned state for one registered service. Lifecycle
// fields are guarded by mu; at most one start/stop is in flight per entry.
type entry struct {
	mu        sync.Mutex
	desc      service.Descriptor
	netProbe  probe.Probe // built at registration for tcp/http; nil for process probes
	child     *service.Child
	status    service.Status
	lastErr   string
	lastProbe probe.Result
	stoppedAt time.Time

	inflight    bool
	stopRequest bool
	startCancel context.CancelFunc
	watchCancel context.CancelFunc
}

func New() *Supervisor {
	return &Supervisor{
		entries: make(map[string]*entry),
		log:     slog.Default(),
	}
}

// SetJournal configures a transition recorder. Recording is best-effort;
// recorder errors are logged and swallowed.
func (s *Supervisor) SetJournal(j journal.Recorder) error {
	s.mu.Lock()
	s.journal = j
	s.mu.Unlock()
	if j == nil {
		return nil
	}
	return j.EnsureSchema(context.Background())
}

// Register adds a single descriptor. All of its dependencies must already
// be registered, which keeps the graph acyclic without a global pass.
func (s *Supervisor) Register(d service.Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	d.Normalize()

	var np probe.Probe
	if d.HealthCheck == nil && !d.Probe.IsProcessProbe() {
		p, err := d.Probe.Build()
		if err != nil {
			return fmt.Errorf("service %s: %w", d.Name, err)
		}
		np = p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.entries[d.Name]; dup {
		return fmt.Errorf("service %s already registered", d.Name)
	}
	for _, dep := range d.DependsOn {
		if _, ok := s.entries[dep]; !ok {
			return fmt.Errorf("service %s depends on unregistered service %s", d.Name, dep)
		}
	}
	s.entries[d.Name] = &entry{desc: d, netProbe: np, status: service.StatusStopped}
	s.order = append(s.order, d.Name)
	return nil
}

// Load registers a whole configuration at once, in topological order.
// Cycles and unknown dependencies fail here, never at start time.
func (s *Supervisor) Load(descs []service.Descriptor) error {
	sorted, err := topoSort(descs)
	if err != nil {
		return err
	}
	for _, d := range sorted {
		if err := s.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// Names returns registered service names in topological order.
func (s *Supervisor) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

func (s *Supervisor) entry(name string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[name]
}

// Start brings name to running, starting its dependencies first. Running is
// a no-op returning the current state. A failed or unstartable dependency
// surfaces as DependencyNotRunningError without spawning this service.
func (s *Supervisor) Start(ctx context.Context, name string) (service.State, error) {
	e := s.entry(name)
	if e == nil {
		return service.State{}, fmt.Errorf("%w: %s", service.ErrUnknownService, name)
	}
	for _, dep := range e.desc.DependsOn {
		st, err := s.Start(ctx, dep)
		if err != nil || st.Status != service.StatusRunning {
			return e.snapshot(), &service.DependencyNotRunningError{Service: name, Dependency: dep, Err: err}
		}
	}
	return s.startOne(ctx, e)
}

func (s *Supervisor) startOne(ctx context.Context, e *entry) (service.State, error) {
	e.mu.Lock()
	name := e.desc.Name
	switch {
	case e.status == service.StatusRunning:
		st := e.snapshotLocked()
		e.mu.Unlock()
		return st, nil
	case e.inflight:
		st := e.snapshotLocked()
		e.mu.Unlock()
		return st, &service.OperationInProgressError{Service: name}
	}
	gateCtx, cancel := context.WithCancel(ctx)
	e.inflight = true
	e.stopRequest = false
	e.startCancel = cancel
	if e.watchCancel != nil {
		e.watchCancel()
		e.watchCancel = nil
	}
	desc := e.desc
	e.mu.Unlock()

	defer func() {
		cancel()
		e.mu.Lock()
		e.inflight = false
		e.startCancel = nil
		e.mu.Unlock()
	}()

	child := service.NewChild(desc)
	if err := child.Start(nil); err != nil {
		serr := &service.SpawnError{Service: name, Err: err}
		s.transition(e, service.StatusFailed, serr.Error())
		metrics.IncStartFailure(name, "spawn")
		return e.snapshot(), serr
	}
	e.mu.Lock()
	e.child = child
	e.mu.Unlock()
	s.transition(e, service.StatusStarting, "")
	s.log.Info("service starting", "service", name, "pid", child.PID())

	pr := s.probeFor(&desc, child)
	begun := time.Now()
	deadline := time.After(desc.StartTimeout)
	tick := time.NewTicker(desc.ProbeInterval)
	defer tick.Stop()

	for {
		res := pr.Check(gateCtx)
		e.setProbe(res)
		metrics.ObserveProbe(name, res.Healthy)
		if res.Healthy {
			// a stop may have cancelled the gate while the probe was in
			// flight; the stop wins over a late healthy result
			if gateCtx.Err() != nil {
				s.terminate(e, child, desc, 0)
				s.transition(e, service.StatusStopped, "")
				s.log.Info("service start cancelled", "service", name)
				return e.snapshot(), gateCtx.Err()
			}
			s.transition(e, service.StatusRunning, "")
			metrics.IncStart(name)
			metrics.ObserveStartDuration(name, time.Since(begun).Seconds())
			s.watchRunning(e, child, pr)
			s.log.Info("service running", "service", name, "pid", child.PID(), "probe", pr.Describe(), "after", time.Since(begun).Round(time.Millisecond))
			return e.snapshot(), nil
		}

		select {
		case <-gateCtx.Done():
			// explicit stop or caller cancellation during the gate: the
			// spawned process is terminated and the state is stopped, not
			// failed
			s.terminate(e, child, desc, 0)
			s.transition(e, service.StatusStopped, "")
			s.log.Info("service start cancelled", "service", name)
			return e.snapshot(), gateCtx.Err()
		case <-child.Exited():
			e.mu.Lock()
			if e.child == child {
				e.child = nil
			}
			e.mu.Unlock()
			serr := &service.SpawnError{Service: name, Err: fmt.Errorf("exited during startup: %v", child.ExitErr())}
			s.transition(e, service.StatusFailed, serr.Error())
			metrics.IncStartFailure(name, "exited")
			return e.snapshot(), serr
		case <-deadline:
			s.terminate(e, child, desc, 0)
			terr := &service.StartTimeoutError{Service: name, Timeout: desc.StartTimeout}
			s.transition(e, service.StatusFailed, terr.Error())
			metrics.IncStartFailure(name, "timeout")
			return e.snapshot(), terr
		case <-tick.C:
		}
	}
}

// Stop terminates name. Best-effort and idempotent: stopping a stopped
// service is a no-op, termination failures land in lastError, and the only
// returned error is ErrUnknownService. A wait > 0 overrides the
// descriptor's grace period.
func (s *Supervisor) Stop(name string, wait time.Duration) error {
	e := s.entry(name)
	if e == nil {
		return fmt.Errorf("%w: %s", service.ErrUnknownService, name)
	}

	e.mu.Lock()
	e.stopRequest = true
	startCancel := e.startCancel
	watchCancel := e.watchCancel
	e.watchCancel = nil
	desc := e.desc
	inflight := e.inflight
	e.mu.Unlock()

	if watchCancel != nil {
		watchCancel()
	}
	if inflight {
		// the start gate owns the child; cancel it and wait for it to
		// settle. The gate may still have committed to running if its
		// probe passed before the cancellation landed, so fall through
		// and re-examine the entry instead of returning here.
		if startCancel != nil {
			startCancel()
		}
		s.awaitIdle(e, desc.GracePeriod+2*time.Second)
	}

	e.mu.Lock()
	child := e.child
	watchCancel = e.watchCancel
	e.watchCancel = nil
	e.mu.Unlock()
	if watchCancel != nil {
		watchCancel()
	}

	if child == nil || !child.Alive() {
		e.mu.Lock()
		if e.child == child {
			e.child = nil
		}
		settled := e.status == service.StatusStopped
		e.mu.Unlock()
		if !settled {
			s.transition(e, service.StatusStopped, "")
		}
		return nil
	}

	s.log.Info("service stopping", "service", name, "pid", child.PID())
	s.terminate(e, child, desc, wait)
	s.transition(e, service.StatusStopped, "")
	metrics.IncStop(name)
	return nil
}

// terminate delivers the descriptor's stop signal with grace escalation and
// clears the tracked child. Never fails; delivery errors go to lastError.
func (s *Supervisor) terminate(e *entry, child *service.Child, desc service.Descriptor, wait time.Duration) {
	grace := desc.GracePeriod
	if wait > 0 {
		grace = wait
	}
	sig, err := desc.Signal()
	if err == nil {
		err = child.Terminate(sig, grace)
	}
	e.mu.Lock()
	if err != nil {
		e.lastErr = err.Error()
		s.log.Warn("termination error", "service", desc.Name, "error", err)
	}
	if e.child == child {
		e.child = nil
	}
	e.mu.Unlock()
}

// awaitIdle polls until the entry's in-flight operation clears.
func (s *Supervisor) awaitIdle(e *entry, limit time.Duration) {
	deadline := time.Now().Add(limit)
	for time.Now().Before(deadline) {
		e.mu.Lock()
		idle := !e.inflight
		e.mu.Unlock()
		if idle {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// watchRunning monitors a running service: repolls its probe at the
// descriptor's interval and observes process exit. A dependency going
// unhealthy never cascades to dependents; they keep their own state.
func (s *Supervisor) watchRunning(e *entry, child *service.Child, pr probe.Probe) {
	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.watchCancel = cancel
	e.mu.Unlock()

	go func() {
		t := time.NewTicker(e.desc.ProbeInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-child.Exited():
				e.mu.Lock()
				stopRequested := e.stopRequest
				if e.child == child {
					e.child = nil
				}
				e.mu.Unlock()
				if stopRequested {
					s.transition(e, service.StatusStopped, "")
				} else {
					s.transition(e, service.StatusFailed, fmt.Sprintf("exited unexpectedly: %v", child.ExitErr()))
					s.log.Warn("service exited unexpectedly", "service", e.desc.Name, "error", child.ExitErr())
				}
				return
			case <-t.C:
				res := pr.Check(ctx)
				e.setProbe(res)
				metrics.ObserveProbe(e.desc.Name, res.Healthy)
				e.mu.Lock()
				cur := e.status
				e.mu.Unlock()
				if cur == service.StatusRunning && !res.Healthy {
					s.transition(e, service.StatusUnhealthy, "health probe failing")
				} else if cur == service.StatusUnhealthy && res.Healthy {
					s.transition(e, service.StatusRunning, "")
				}
			}
		}
	}()
}

func (s *Supervisor) probeFor(desc *service.Descriptor, child *service.Child) probe.Probe {
	if desc.HealthCheck != nil {
		return desc.HealthCheck
	}
	if desc.Probe.IsProcessProbe() {
		return probe.PID{Get: child.PID}
	}
	return s.entry(desc.Name).netProbe
}

// transition records a status change in the entry, the metrics, and the
// journal. No-op when the status is unchanged unless detail carries an error.
func (s *Supervisor) transition(e *entry, to service.Status, detail string) {
	e.mu.Lock()
	from := e.status
	if from == to && detail == "" {
		e.mu.Unlock()
		return
	}
	e.status = to
	if detail != "" {
		e.lastErr = detail
	} else if to == service.StatusRunning || to == service.StatusStarting {
		e.lastErr = ""
	}
	if to == service.StatusStopped || to == service.StatusFailed {
		e.stoppedAt = time.Now()
	}
	pid := 0
	if e.child != nil {
		pid = e.child.PID()
	}
	name := e.desc.Name
	e.mu.Unlock()

	metrics.RecordTransition(name, string(from), string(to))
	metrics.SetUp(name, to == service.StatusRunning)

	s.mu.RLock()
	j := s.journal
	s.mu.RUnlock()
	if j != nil {
		ev := journal.Event{
			Service:    name,
			FromStatus: string(from),
			ToStatus:   string(to),
			PID:        pid,
			Detail:     detail,
			OccurredAt: time.Now().UTC(),
		}
		if err := j.Record(context.Background(), ev); err != nil {
			s.log.Debug("journal record failed", "service", name, "error", err)
		}
	}
}

// Status returns a snapshot of one service without side effects.
func (s *Supervisor) Status(name string) (service.State, error) {
	e := s.entry(name)
	if e == nil {
		return service.State{}, fmt.Errorf("%w: %s", service.ErrUnknownService, name)
	}
	return e.snapshot(), nil
}

// StatusAll returns snapshots for every registered service in topological
// order. Safe to call concurrently with start/stop.
func (s *Supervisor) StatusAll() []service.State {
	names := s.Names()
	out := make([]service.State, 0, len(names))
	for _, n := range names {
		if e := s.entry(n); e != nil {
			out = append(out, e.snapshot())
		}
	}
	return out
}

// StartAll starts every registered service in dependency order. It keeps
// going past failures and returns the first error encountered.
func (s *Supervisor) StartAll(ctx context.Context) error {
	var firstErr error
	for _, name := range s.Names() {
		if _, err := s.Start(ctx, name); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// StopAll stops every service in reverse dependency order.
func (s *Supervisor) StopAll(wait time.Duration) {
	names := s.Names()
	for i := len(names) - 1; i >= 0; i-- {
		_ = s.Stop(names[i], wait)
	}
}

// History returns recent journal events for a service, newest first.
func (s *Supervisor) History(ctx context.Context, name string, limit int) ([]journal.Event, error) {
	if e := s.entry(name); e == nil {
		return nil, fmt.Errorf("%w: %s", service.ErrUnknownService, name)
	}
	s.mu.RLock()
	j := s.journal
	s.mu.RUnlock()
	if j == nil {
		return nil, nil
	}
	return j.EventsFor(ctx, name, limit)
}

func (e *entry) setProbe(res probe.Result) {
	e.mu.Lock()
	e.lastProbe = res
	e.mu.Unlock()
}

func (e *entry) snapshot() service.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *entry) snapshotLocked() service.State {
	st := service.State{
		Name:      e.desc.Name,
		Status:    e.status,
		LastError: e.lastErr,
		LastProbe: e.lastProbe,
		StoppedAt: e.stoppedAt,
		DependsOn: append([]string(nil), e.desc.DependsOn...),
	}
	if e.child != nil {
		st.PID = e.child.PID()
		st.StartedAt = e.child.StartedAt()
	}
	return st
}
