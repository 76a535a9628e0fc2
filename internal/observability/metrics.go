package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector of the service on a private registry.
// All methods are safe on a nil receiver so callers never need to check
// whether metrics are enabled.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	cascadeRuns   *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageOutcomes *prometheus.CounterVec
	records       *prometheus.CounterVec
	busyRejects   prometheus.Counter
}

func NewMetrics(prefix string) *Metrics {
	if prefix == "" {
		prefix = "pf"
	}
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_api_requests_total",
			Help: "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_api_request_duration_seconds",
			Help:    "API request latency in seconds by method/route/status.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"method", "route", "status"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_api_inflight_requests",
			Help: "In-flight API requests.",
		}),
		cascadeRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_cascade_runs_total",
			Help: "Finished cascade runs by mode/status.",
		}, []string{"mode", "status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    prefix + "_cascade_stage_duration_seconds",
			Help:    "Cascade stage duration in seconds by stage/outcome.",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"stage", "outcome"}),
		stageOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_cascade_stage_total",
			Help: "Cascade stages by stage/outcome (succeeded, failed, skipped, timeout).",
		}, []string{"stage", "outcome"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_generator_records_total",
			Help: "Records written by generators by kind/result.",
		}, []string{"kind", "result"}),
		busyRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_cascade_busy_rejections_total",
			Help: "Cascade requests rejected because the company already had a run in flight.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.cascadeRuns, m.stageDuration, m.stageOutcomes, m.records, m.busyRejects,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) IncInflight() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) DecInflight() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveAPI(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	code := strconv.Itoa(status)
	m.apiRequests.WithLabelValues(method, route, code).Inc()
	m.apiLatency.WithLabelValues(method, route, code).Observe(d.Seconds())
}

func (m *Metrics) ObserveStage(stage, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageOutcomes.WithLabelValues(stage, outcome).Inc()
	if outcome != "skipped" {
		m.stageDuration.WithLabelValues(stage, outcome).Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveRun(mode, status string) {
	if m == nil {
		return
	}
	m.cascadeRuns.WithLabelValues(mode, status).Inc()
}

func (m *Metrics) ObserveRecords(kind string, created int, failed int) {
	if m == nil {
		return
	}
	if created > 0 {
		m.records.WithLabelValues(kind, "created").Add(float64(created))
	}
	if failed > 0 {
		m.records.WithLabelValues(kind, "failed").Add(float64(failed))
	}
}

func (m *Metrics) IncBusy() {
	if m == nil {
		return
	}
	m.busyRejects.Inc()
}
