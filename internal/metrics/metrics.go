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

	launches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smallsh",
			Name:      "launch_total",
			Help:      "Number of children started, by mode.",
		}, []string{"mode"},
	)
	exits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smallsh",
			Name:      "exit_total",
			Help:      "Number of children observed to terminate, by mode and outcome kind.",
		}, []string{"mode", "kind"},
	)
	foregroundDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "smallsh",
			Name:      "foreground_duration_seconds",
			Help:      "Wall time the shell spent waiting on foreground children.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	backgroundRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "smallsh",
			Name:      "background_running",
			Help:      "Background children not yet reaped.",
		},
	)
	builtins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smallsh",
			Name:      "builtin_total",
			Help:      "Number of built-in commands run, by name.",
		}, []string{"name"},
	)
	parseErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "smallsh",
			Name:      "parse_errors_total",
			Help:      "Number of input lines rejected by the parser.",
		},
	)
	foregroundOnly = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "smallsh",
			Name:      "foreground_only",
			Help:      "1 while foreground-only mode is active.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{launches, exits, foregroundDuration, backgroundRunning, builtins, parseErrors, foregroundOnly}
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

// Handler serves the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

// HandlerFor serves g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncLaunch(mode string) {
	if regOK.Load() {
		launches.WithLabelValues(mode).Inc()
	}
}

func IncExit(mode, kind string) {
	if regOK.Load() {
		exits.WithLabelValues(mode, kind).Inc()
	}
}

func ObserveForegroundDuration(seconds float64) {
	if regOK.Load() {
		foregroundDuration.Observe(seconds)
	}
}

func SetBackgroundRunning(n int) {
	if regOK.Load() {
		backgroundRunning.Set(float64(n))
	}
}

func IncBuiltin(name string) {
	if regOK.Load() {
		builtins.WithLabelValues(name).Inc()
	}
}

func IncParseError() {
	if regOK.Load() {
		parseErrors.Inc()
	}
}

func SetForegroundOnly(on bool) {
	if regOK.Load() {
		var value float64
		if on {
			value = 1
		}
		foregroundOnly.Set(value)
	}
}
