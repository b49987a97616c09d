package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.IncRequests()
	m.IncErrors()
	m.IncResolution(OutcomeAlias)
	m.ObserveStatusLookup(true)
	m.IncStatusFetchFailures()
	m.SetMonitoredSessions(3)
	m.IncMonitorConnectionErrors()
	m.IncStopCommands(false)
}

func TestHandler_exposesCounters(t *testing.T) {
	m := New()
	m.IncResolution(OutcomeFallback)
	m.ObserveStatusLookup(false)
	m.IncStopCommands(true)

	updated := false
	rec := httptest.NewRecorder()
	m.Handler(func() {
		updated = true
		m.SetMonitoredSessions(2)
	}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !updated {
		t.Error("expected gauges to be refreshed before scrape")
	}
	body := rec.Body.String()
	for _, want := range []string{
		`stream_router_resolutions_total{outcome="fallback"} 1`,
		`stream_router_status_cache_lookups_total{result="miss"} 1`,
		`stream_router_stop_commands_total{result="stopped"} 1`,
		`stream_router_monitored_sessions 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRequestMiddleware(t *testing.T) {
	m := New()
	h := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	for _, p := range []string{"/ok", "/missing", "/metrics"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, nil))
	}

	rec := httptest.NewRecorder()
	m.Handler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "stream_router_requests_total 2") || !strings.Contains(body, "stream_router_errors_total 1") {
		t.Errorf("unexpected counters:\n%s", body)
	}
}
