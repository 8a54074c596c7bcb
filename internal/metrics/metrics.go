package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors, registered via Register.
var (
	regOK atomic.Bool

	serviceStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthgate",
			Subsystem: "service",
			Name:      "starts_total",
			Help:      "Number of services that reached running after a start.",
		}, []string{"name"},
	)
	serviceStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthgate",
			Subsystem: "service",
			Name:      "stops_total",
			Help:      "Number of stop operations (graceful or kill).",
		}, []string{"name"},
	)
	startFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthgate",
			Subsystem: "service",
			Name:      "start_failures_total",
			Help:      "Number of starts that ended in failure, by reason.",
		}, []string{"name", "reason"},
	)
	startDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "healthgate",
			Subsystem: "service",
			Name:      "start_duration_seconds",
			Help:      "Time from spawn to first successful health probe.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"name"},
	)
	probeChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthgate",
			Subsystem: "probe",
			Name:      "checks_total",
			Help:      "Health probe invocations by outcome.",
		}, []string{"name", "healthy"},
	)
	serviceUp = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "healthgate",
			Subsystem: "service",
			Name:      "up",
			Help:      "1 while the service is running with a passing probe.",
		}, []string{"name"},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "healthgate",
			Subsystem: "service",
			Name:      "state_transitions_total",
			Help:      "Status transitions between lifecycle states.",
		}, []string{"name", "from", "to"},
	)
)

// Register registers all collectors with r. Safe to call more than once;
// duplicate registrations are ignored.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{serviceStarts, serviceStops, startFailures, startDuration, probeChecks, serviceUp, stateTransitions}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves the default gatherer; the caller wires the route.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op until Register has been called.

func IncStart(name string) {
	if regOK.Load() {
		serviceStarts.WithLabelValues(name).Inc()
	}
}

func IncStop(name string) {
	if regOK.Load() {
		serviceStops.WithLabelValues(name).Inc()
	}
}

func IncStartFailure(name, reason string) {
	if regOK.Load() {
		startFailures.WithLabelValues(name, reason).Inc()
	}
}

func ObserveStartDuration(name string, seconds float64) {
	if regOK.Load() {
		startDuration.WithLabelValues(name).Observe(seconds)
	}
}

func ObserveProbe(name string, healthy bool) {
	if regOK.Load() {
		probeChecks.WithLabelValues(name, strconv.FormatBool(healthy)).Inc()
	}
}

func SetUp(name string, up bool) {
	if regOK.Load() {
		v := 0.0
		if up {
			v = 1
		}
		serviceUp.WithLabelValues(name).Set(v)
	}
}

func RecordTransition(name, from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(name, from, to).Inc()
	}
}
