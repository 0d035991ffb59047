// Package metrics owns the server's Prometheus registry.
package metrics

import (
	"net/http"

	"github.com/dmitrijs2005/authkeeper/internal/retry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics is nil-safe: a nil *Metrics records nothing.
type Metrics struct {
	registry     *prometheus.Registry
	sessionOps   *prometheus.CounterVec
	revocations  *prometheus.CounterVec
	sweptRecords prometheus.Counter
	rateLimited  *prometheus.CounterVec
	auditDropped prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		sessionOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authkeeper",
			Name:      "session_operations_total",
			Help:      "Session operations by operation and result kind.",
		}, []string{"op", "result"}),
		revocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authkeeper",
			Name:      "deferred_revocations_total",
			Help:      "Refresh record deletions handed to the background revoker, by outcome.",
		}, []string{"result"}),
		sweptRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authkeeper",
			Name:      "expired_refresh_records_swept_total",
			Help:      "Expired refresh records removed by the periodic sweep.",
		}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authkeeper",
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the per-client limiter.",
		}, []string{"route"}),
		auditDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authkeeper",
			Name:      "audit_events_dropped_total",
			Help:      "Audit events dropped because the dispatch buffer was full.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.sessionOps, m.revocations, m.sweptRecords, m.rateLimited, m.auditDropped,
	)
	reg.MustRegister(retry.Collectors()...)
	return m
}

// Registry is where transports register their own collectors (gRPC server metrics).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SessionOp counts one session operation. result is ResultOK or an error kind.
func (m *Metrics) SessionOp(op, result string) {
	if m == nil {
		return
	}
	m.sessionOps.WithLabelValues(op, result).Inc()
}

func (m *Metrics) Revocation(result string) {
	if m == nil {
		return
	}
	m.revocations.WithLabelValues(result).Inc()
}

func (m *Metrics) Swept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sweptRecords.Add(float64(n))
}

func (m *Metrics) RateLimited(route string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(route).Inc()
}

func (m *Metrics) AuditDropped() {
	if m == nil {
		return
	}
	m.auditDropped.Inc()
}
