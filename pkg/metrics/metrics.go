// Package metrics owns the Prometheus collectors exported by the ledger.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	gatherer prometheus.Gatherer

	txRetries     *prometheus.CounterVec
	lockTimeouts  *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	eventsDropped *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpLatency   *prometheus.HistogramVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

// NewWithRegistry registers the ledger collectors on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		txRetries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_tx_retries_total",
			Help: "Transactions retried after lock contention.",
		}, []string{"op"}),
		lockTimeouts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_lock_timeouts_total",
			Help: "Operations that gave up after exhausting lock retries.",
		}, []string{"op"}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_payment_transitions_total",
			Help: "Payment status transitions.",
		}, []string{"from", "to"}),
		eventsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_events_dropped_total",
			Help: "Ledger events that could not be published.",
		}, []string{"type"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_http_requests_total",
			Help: "Total HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ledger_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) TxRetry(op string) {
	if m != nil {
		m.txRetries.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) LockTimeout(op string) {
	if m != nil {
		m.lockTimeouts.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) Transition(from, to string) {
	if m != nil {
		m.transitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) EventDropped(eventType string) {
	if m != nil {
		m.eventsDropped.WithLabelValues(eventType).Inc()
	}
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(seconds)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
