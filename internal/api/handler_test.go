package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"stream-router/internal/monitor"
	"stream-router/internal/platform/metrics"
	"stream-router/internal/routing"
)

type stubFetcher struct {
	mu       sync.Mutex
	statuses map[routing.ProviderID]routing.ProviderStatus
}

func (f *stubFetcher) FetchStatus(_ context.Context, p routing.Provider) (routing.ProviderStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.statuses[p.ID]
	if !ok {
		return routing.ProviderStatus{}, errors.New("connection refused")
	}
	return st, nil
}

type stubMonitor struct {
	stopped []string
}

func (m *stubMonitor) Report(context.Context) monitor.Report {
	return monitor.BuildReport(context.Background(), []monitor.Session{{ID: "s1", Active: true, ClientCount: 1}}, nil, time.Now(), nil)
}

func (m *stubMonitor) StopSession(ctx context.Context, id string) (monitor.StopResult, monitor.Report) {
	m.stopped = append(m.stopped, id)
	return monitor.StopResult{SessionID: id, Stopped: true, Message: "stream " + id + " stopped"},
		monitor.BuildReport(ctx, nil, nil, time.Now(), nil)
}

func newTestRouter(t *testing.T, mon Monitor, statuses map[routing.ProviderID]routing.ProviderStatus) http.Handler {
	t.Helper()
	cat := routing.NewInMemoryCatalog()
	cat.PutProvider(routing.Provider{ID: "primary", Name: "Main", ServerURL: "http://primary.example", Username: "alice", Password: "pw1"})
	cat.PutProvider(routing.Provider{ID: "backup", ServerURL: "http://backup.example", Username: "bob", Password: "pw2"})
	cat.PutAlias(routing.Alias{ID: "a1", PrimaryID: "primary", ProviderID: "backup", Priority: 1, Enabled: true})
	cat.PutContent(routing.ContentItem{
		Ref:        routing.ContentRef{Kind: routing.KindChannel, ID: "101"},
		Name:       "News",
		LogoURL:    "http://logo.example/news.png",
		URL:        "http://primary.example/live/alice/pw1/101.ts",
		ProviderID: "primary",
	})
	cat.PutContent(routing.ContentItem{
		Ref:  routing.ContentRef{Kind: routing.KindEpisode, ID: "orphan"},
		Name: "Orphan",
		URL:  "http://nowhere/1.mkv",
	})

	log := slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	cache := routing.NewStatusCache(&stubFetcher{statuses: statuses}, nil, time.Second, log, nil)
	h := NewHandler(routing.NewResolver(cat, cache, log, nil), mon, log)
	return NewRouter(h, RouterConfig{Log: log, Metrics: metrics.New()})
}

func doRequest(r http.Handler, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandler_GetStream_primary(t *testing.T) {
	r := newTestRouter(t, nil, map[routing.ProviderID]routing.ProviderStatus{
		"primary": {ActiveConnections: 0, MaxConnections: 1},
	})

	rec := doRequest(r, http.MethodGet, "/content/channel/101/stream")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp streamResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.URL != "http://primary.example/live/alice/pw1/101.ts" || resp.ProviderContextID != "provider:primary" || resp.Fallback {
		t.Errorf("unexpected response: %+v", resp)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestHandler_GetStream_alias(t *testing.T) {
	r := newTestRouter(t, nil, map[routing.ProviderID]routing.ProviderStatus{
		"primary": {ActiveConnections: 1, MaxConnections: 1},
		"backup":  {ActiveConnections: 0, MaxConnections: 2},
	})

	rec := doRequest(r, http.MethodGet, "/content/channel/101/stream")
	var resp streamResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.URL != "http://backup.example/live/bob/pw2/101.ts" || resp.ProviderContextID != "alias:a1" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestHandler_GetStream_fallback(t *testing.T) {
	r := newTestRouter(t, nil, map[routing.ProviderID]routing.ProviderStatus{
		"primary": {ActiveConnections: 3, MaxConnections: 1},
	})

	rec := doRequest(r, http.MethodGet, "/content/channel/101/stream")
	var resp streamResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Fallback || resp.ProviderContextID != "provider:primary" {
		t.Errorf("expected fallback to primary, got %+v", resp)
	}
}

func TestHandler_GetStream_errors(t *testing.T) {
	r := newTestRouter(t, nil, nil)

	tests := []struct {
		path string
		want int
	}{
		{"/content/channel/999/stream", http.StatusNotFound},
		{"/content/movie/101/stream", http.StatusBadRequest},
		{"/content/episode/orphan/stream", http.StatusConflict},
	}
	for _, tt := range tests {
		if rec := doRequest(r, http.MethodGet, tt.path); rec.Code != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.want, rec.Code)
		}
	}
}

func TestHandler_GetPlaylist(t *testing.T) {
	r := newTestRouter(t, nil, map[routing.ProviderID]routing.ProviderStatus{
		"primary": {MaxConnections: 0},
	})

	rec := doRequest(r, http.MethodGet, "/content/channel/101/playlist.m3u")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != playlistContentType {
		t.Errorf("unexpected content type %q", ct)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "#EXTM3U\n") || !strings.Contains(body, ",News\n") || !strings.HasSuffix(body, "/101.ts\n") {
		t.Errorf("unexpected playlist:\n%s", body)
	}
}

func TestHandler_GetProviderStatus(t *testing.T) {
	r := newTestRouter(t, nil, map[routing.ProviderID]routing.ProviderStatus{
		"primary": {ActiveConnections: 2, MaxConnections: 2, ExpiresAt: time.Now().Add(time.Hour)},
		"backup":  {ActiveConnections: 1},
	})

	rec := doRequest(r, http.MethodGet, "/providers/primary/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp providerStatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Connections != "2/2" || !resp.MaxReached || !resp.ExpiresSoon || resp.Name != "Main" {
		t.Errorf("unexpected status: %+v", resp)
	}

	rec = doRequest(r, http.MethodGet, "/providers/backup/status")
	var unlimited providerStatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&unlimited); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if unlimited.Connections != "1/∞" || unlimited.MaxReached || unlimited.ExpiresAt != nil {
		t.Errorf("unexpected unlimited status: %+v", unlimited)
	}
}

func TestHandler_GetProviderStatus_errors(t *testing.T) {
	r := newTestRouter(t, nil, nil)

	if rec := doRequest(r, http.MethodGet, "/providers/ghost/status"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown provider: expected 404, got %d", rec.Code)
	}
	if rec := doRequest(r, http.MethodGet, "/providers/primary/status"); rec.Code != http.StatusBadGateway {
		t.Errorf("unreachable provider: expected 502, got %d", rec.Code)
	}
}

func TestHandler_Monitor(t *testing.T) {
	mon := &stubMonitor{}
	r := newTestRouter(t, mon, nil)

	rec := doRequest(r, http.MethodGet, "/monitor/report")
	if rec.Code != http.StatusOK {
		t.Fatalf("report: expected 200, got %d", rec.Code)
	}
	var report monitor.Report
	if err := json.NewDecoder(rec.Body).Decode(&report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(report.Streams) != 1 || report.Global.TotalClients != 1 {
		t.Errorf("unexpected report: %+v", report)
	}

	rec = doRequest(r, http.MethodPost, "/monitor/sessions/s1/stop")
	if rec.Code != http.StatusOK {
		t.Fatalf("stop: expected 200, got %d", rec.Code)
	}
	var stop stopResponse
	if err := json.NewDecoder(rec.Body).Decode(&stop); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !stop.Result.Stopped || len(stop.Report.Streams) != 0 {
		t.Errorf("unexpected stop response: %+v", stop)
	}
	if len(mon.stopped) != 1 || mon.stopped[0] != "s1" {
		t.Errorf("expected s1 to be stopped, got %v", mon.stopped)
	}
}

func TestHandler_Monitor_notConfigured(t *testing.T) {
	r := newTestRouter(t, nil, nil)

	if rec := doRequest(r, http.MethodGet, "/monitor/report"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	if rec := doRequest(r, http.MethodGet, "/monitor/sessions/s1/stop"); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET on stop, got %d", rec.Code)
	}
}

func TestHandler_Metrics(t *testing.T) {
	r := newTestRouter(t, nil, map[routing.ProviderID]routing.ProviderStatus{"primary": {}})
	doRequest(r, http.MethodGet, "/content/channel/101/stream")

	rec := doRequest(r, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "stream_router_requests_total") {
		t.Error("expected request counter in metrics output")
	}
}

func TestRateLimit(t *testing.T) {
	limited := RateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var codes []int
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("unexpected status sequence %v", codes)
	}
}
