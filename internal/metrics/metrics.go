package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "upkeep",
			Subsystem: "run",
			Name:      "sessions_total",
			Help:      "Number of completed orchestration sessions by overall status.",
		}, []string{"status"},
	)
	sourceRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "upkeep",
			Subsystem: "source",
			Name:      "runs_total",
			Help:      "Number of per-source runs by terminal status.",
		}, []string{"source", "status"},
	)
	sourceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "upkeep",
			Subsystem: "source",
			Name:      "duration_seconds",
			Help:      "Observed wall time of a single source apply.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"source"},
	)
	pendingUpdates = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "upkeep",
			Subsystem: "source",
			Name:      "pending_updates",
			Help:      "Pending update count observed at the last check per source.",
		}, []string{"source"},
	)
	nextDue = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "upkeep",
			Subsystem: "schedule",
			Name:      "next_due_timestamp_seconds",
			Help:      "Unix timestamp of the next scheduled run, 0 when disabled.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{sessionsTotal, sourceRuns, sourceDuration, pendingUpdates, nextDue}
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

// Handler returns an http.Handler serving Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op until Register has been called.

func IncSession(status string) {
	if regOK.Load() {
		sessionsTotal.WithLabelValues(status).Inc()
	}
}

func IncSourceRun(source, status string) {
	if regOK.Load() {
		sourceRuns.WithLabelValues(source, status).Inc()
	}
}

func ObserveSourceDuration(source string, seconds float64) {
	if regOK.Load() {
		sourceDuration.WithLabelValues(source).Observe(seconds)
	}
}

func SetPendingUpdates(source string, n int) {
	if regOK.Load() {
		pendingUpdates.WithLabelValues(source).Set(float64(n))
	}
}

func SetNextDue(unixSeconds float64) {
	if regOK.Load() {
		nextDue.Set(unixSeconds)
	}
}
