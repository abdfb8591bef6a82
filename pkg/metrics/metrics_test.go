package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.TxRetry("create_payment")
	m.TxRetry("create_payment")
	m.LockTimeout("create_payment")
	m.Transition("PENDING", "COMPLETED")
	m.EventDropped("payment.created")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.txRetries.WithLabelValues("create_payment")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lockTimeouts.WithLabelValues("create_payment")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transitions.WithLabelValues("PENDING", "COMPLETED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsDropped.WithLabelValues("payment.created")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.TxRetry("x")
		m.LockTimeout("x")
		m.Transition("a", "b")
		m.EventDropped("x")
		m.ObserveHTTP("GET", "/", "200", 0.1)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveHTTP("POST", "/api/v1/payments", "201", 0.02)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `ledger_http_requests_total{method="POST",route="/api/v1/payments",status="201"} 1`)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
