package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Resolution outcomes recorded by IncResolution.
const (
	OutcomePrimary  = "primary"
	OutcomeAlias    = "alias"
	OutcomeFallback = "fallback"
	OutcomeCustom   = "custom"
)

// Metrics holds Prometheus counters and gauges for the stream router.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry              *prometheus.Registry
	requestsTotal         prometheus.Counter
	errorsTotal           prometheus.Counter
	resolutionsTotal      *prometheus.CounterVec
	statusLookupsTotal    *prometheus.CounterVec
	statusFetchFailures   prometheus.Counter
	monitoredSessions     prometheus.Gauge
	monitorConnErrorTotal prometheus.Counter
	stopCommandsTotal     *prometheus.CounterVec
}

// New creates and registers Prometheus metrics for the router.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_router_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_router_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		resolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_router_resolutions_total",
			Help: "Stream resolutions by selected provider outcome",
		}, []string{"outcome"}),
		statusLookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_router_status_cache_lookups_total",
			Help: "Provider status cache lookups by result (hit or miss)",
		}, []string{"result"}),
		statusFetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_router_status_fetch_failures_total",
			Help: "Provider status fetches that failed or timed out",
		}),
		monitoredSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stream_router_monitored_sessions",
			Help: "Sessions reported by the stream proxy on the last report",
		}),
		monitorConnErrorTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stream_router_monitor_connection_errors_total",
			Help: "Reports that could not reach the stream proxy",
		}),
		stopCommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_router_stop_commands_total",
			Help: "Stop session commands by result",
		}, []string{"result"}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.resolutionsTotal,
		m.statusLookupsTotal,
		m.statusFetchFailures,
		m.monitoredSessions,
		m.monitorConnErrorTotal,
		m.stopCommandsTotal,
	)

	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	if m == nil {
		return
	}
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	if m == nil {
		return
	}
	m.errorsTotal.Inc()
}

// IncResolution counts one resolution with the given outcome.
func (m *Metrics) IncResolution(outcome string) {
	if m == nil {
		return
	}
	m.resolutionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveStatusLookup counts a status cache hit or miss.
func (m *Metrics) ObserveStatusLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.statusLookupsTotal.WithLabelValues(result).Inc()
}

// IncStatusFetchFailures counts a failed or timed out provider status fetch.
func (m *Metrics) IncStatusFetchFailures() {
	if m == nil {
		return
	}
	m.statusFetchFailures.Inc()
}

// SetMonitoredSessions sets the monitored sessions gauge.
func (m *Metrics) SetMonitoredSessions(n int) {
	if m == nil {
		return
	}
	m.monitoredSessions.Set(float64(n))
}

// IncMonitorConnectionErrors counts a report that could not reach the proxy.
func (m *Metrics) IncMonitorConnectionErrors() {
	if m == nil {
		return
	}
	m.monitorConnErrorTotal.Inc()
}

// IncStopCommands counts a stop command by outcome.
func (m *Metrics) IncStopCommands(stopped bool) {
	if m == nil {
		return
	}
	result := "failed"
	if stopped {
		result = "stopped"
	}
	m.stopCommandsTotal.WithLabelValues(result).Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
