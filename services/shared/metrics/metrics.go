// Package metrics provides Prometheus metrics collection for social logins.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Common labels used across metrics.
const (
	LabelProvider = "provider"
	LabelOutcome  = "outcome"
	LabelStatus   = "status"
)

// Metrics contains all Prometheus metrics for the socialauth service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	loginAttemptsTotal *prometheus.CounterVec
	loginDuration      *prometheus.HistogramVec
	loginsInFlight     prometheus.Gauge

	graphRequestsTotal *prometheus.CounterVec

	callbackRequestsTotal *prometheus.CounterVec
	rateLimitDropped      prometheus.Counter
}

// Config holds metrics configuration.
type Config struct {
	Namespace string
	Subsystem string
}

// New creates a new Metrics instance.
func New(cfg Config) *Metrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "socialauth"
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}
	factory := promauto.With(registry)

	m.loginAttemptsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "login_attempts_total",
			Help:      "Total number of resolved login attempts.",
		},
		[]string{LabelProvider, LabelOutcome},
	)

	m.loginDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "login_duration_seconds",
			Help:      "Time from login start to resolution in seconds.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{LabelProvider},
	)

	m.loginsInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "logins_in_flight",
			Help:      "Current number of unresolved login attempts.",
		},
	)

	m.graphRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "graph_requests_total",
			Help:      "Total number of Facebook Graph profile requests.",
		},
		[]string{LabelOutcome},
	)

	m.callbackRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "callback_requests_total",
			Help:      "Total number of OAuth redirect callbacks received.",
		},
		[]string{LabelProvider, LabelStatus},
	)

	m.rateLimitDropped = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "rate_limit_dropped_total",
			Help:      "Total number of callbacks rejected by the rate limiter.",
		},
	)

	return m
}

// Handler returns the HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// LoginStarted marks a login attempt as in flight.
func (m *Metrics) LoginStarted() {
	if m == nil {
		return
	}
	m.loginsInFlight.Inc()
}

// RecordLogin records a resolved login attempt.
func (m *Metrics) RecordLogin(provider, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.loginsInFlight.Dec()
	m.loginAttemptsTotal.WithLabelValues(provider, outcome).Inc()
	m.loginDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordGraphRequest records a Graph profile request outcome.
func (m *Metrics) RecordGraphRequest(outcome string) {
	if m == nil {
		return
	}
	m.graphRequestsTotal.WithLabelValues(outcome).Inc()
}

// RecordCallback records an OAuth redirect callback.
func (m *Metrics) RecordCallback(provider string, status int) {
	if m == nil {
		return
	}
	m.callbackRequestsTotal.WithLabelValues(provider, strconv.Itoa(status)).Inc()
}

// RecordRateLimitDrop records a callback rejected by the rate limiter.
func (m *Metrics) RecordRateLimitDrop() {
	if m == nil {
		return
	}
	m.rateLimitDropped.Inc()
}
