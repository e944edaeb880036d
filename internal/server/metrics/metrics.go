// Package metrics holds the Prometheus collectors exported by the server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values for BootstrapAttempts.
const (
	ResultConnected = "connected"
	ResultFailed    = "failed"
)

// Label values for ResetRequests.
const (
	ResetIssued      = "issued"
	ResetUnknownUser = "unknown_user"
	ResetMailFailed  = "mail_failed"
	ResetError       = "error"
)

// Metrics contains the server's custom counters.
type Metrics struct {
	BootstrapAttempts *prometheus.CounterVec
	AuthFailures      *prometheus.CounterVec
	ResetRequests     *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates the counters and registers them, together with the standard Go
// and process collectors, on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := newMetrics(reg)
	m.registry = reg
	return m
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BootstrapAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflow_store_bootstrap_attempts_total",
				Help: "Store connection attempts by strategy and result",
			},
			[]string{"strategy", "result"},
		),
		AuthFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflow_auth_failures_total",
				Help: "Rejected authentication attempts by reason",
			},
			[]string{"reason"},
		),
		ResetRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "workflow_password_reset_requests_total",
				Help: "Forgot-password requests by outcome",
			},
			[]string{"outcome"},
		),
	}

	reg.MustRegister(m.BootstrapAttempts, m.AuthFailures, m.ResetRequests)
	return m
}

// Registry exposes the underlying registry, e.g. for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveBootstrap counts a single strategy attempt. Safe on a nil receiver.
func (m *Metrics) ObserveBootstrap(strategy string, connected bool) {
	if m == nil {
		return
	}
	result := ResultFailed
	if connected {
		result = ResultConnected
	}
	m.BootstrapAttempts.WithLabelValues(strategy, result).Inc()
}

// AuthFailed counts a rejected authentication. Safe on a nil receiver.
func (m *Metrics) AuthFailed(reason string) {
	if m == nil {
		return
	}
	m.AuthFailures.WithLabelValues(reason).Inc()
}

// ResetRequested counts a forgot-password request. Safe on a nil receiver.
func (m *Metrics) ResetRequested(outcome string) {
	if m == nil {
		return
	}
	m.ResetRequests.WithLabelValues(outcome).Inc()
}
