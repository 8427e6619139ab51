// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	// Webhook metrics
	BatchesTotal     *prometheus.CounterVec
	TransfersTotal   *prometheus.CounterVec
	ReportsTotal     *prometheus.CounterVec
	BatchDuration    prometheus.Histogram
	AlertsDelivered  prometheus.Counter
	DeliveryFailures prometheus.Counter

	// Pricing metrics
	CacheLookups  *prometheus.CounterVec
	OracleCalls   *prometheus.CounterVec
	OracleLatency prometheus.Histogram
}

// NewMetrics creates a Metrics instance registered on reg. When reg is nil a
// private registry is used.
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	if namespace == "" {
		namespace = "solwatch"
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,

		BatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "batches_total",
			Help:      "Webhook payloads handled, by detected payload shape",
		}, []string{"shape"}),
		TransfersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "transfers_total",
			Help:      "Target-token transfers processed, by action",
		}, []string{"action"}),
		ReportsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "reports_total",
			Help:      "Recovered problems, by kind",
		}, []string{"kind"}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "batch_duration_seconds",
			Help:      "Time spent handling one webhook payload",
			Buckets:   prometheus.DefBuckets,
		}),
		AlertsDelivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "alerts_delivered_total",
			Help:      "Alerts handed to every configured sender without error",
		}),
		DeliveryFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "delivery_failures_total",
			Help:      "Alerts where at least one sender failed",
		}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "cache_lookups_total",
			Help:      "Price cache lookups, by result (hit, miss)",
		}, []string{"result"}),
		OracleCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "oracle_calls_total",
			Help:      "Outbound oracle fetches, by status (ok, error)",
		}, []string{"status"}),
		OracleLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "oracle_latency_seconds",
			Help:      "Oracle fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Handler returns an HTTP handler exposing the registered metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// RecordBatch records a handled payload.
func (m *Metrics) RecordBatch(shape string, d time.Duration) {
	if m == nil {
		return
	}
	m.BatchesTotal.WithLabelValues(shape).Inc()
	m.BatchDuration.Observe(d.Seconds())
}

// RecordTransfer records a processed transfer.
func (m *Metrics) RecordTransfer(action string) {
	if m == nil {
		return
	}
	m.TransfersTotal.WithLabelValues(action).Inc()
}

// RecordReport records a recovered problem.
func (m *Metrics) RecordReport(kind string) {
	if m == nil {
		return
	}
	m.ReportsTotal.WithLabelValues(kind).Inc()
}

// RecordDelivery records the outcome of delivering one alert.
func (m *Metrics) RecordDelivery(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.DeliveryFailures.Inc()
		return
	}
	m.AlertsDelivered.Inc()
}

// RecordCacheLookup records a price cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

// RecordOracleCall records one outbound oracle fetch.
func (m *Metrics) RecordOracleCall(d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.OracleCalls.WithLabelValues(status).Inc()
	m.OracleLatency.Observe(d.Seconds())
}
