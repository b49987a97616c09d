// Package api is the HTTP surface for stream resolution and monitoring.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"stream-router/internal/monitor"
	"stream-router/internal/platform/logger"
	"stream-router/internal/routing"

	"github.com/go-chi/chi/v5"
)

// expiryWarning is how close to expiry an account is flagged in status responses.
const expiryWarning = 24 * time.Hour

// Resolver routes content to providers.
type Resolver interface {
	ResolveOptimalStream(ctx context.Context, ref routing.ContentRef) (routing.Resolution, error)
	ProviderStatus(ctx context.Context, id routing.ProviderID) (routing.Provider, routing.CapacitySnapshot, error)
}

// Monitor reports on and controls the stream proxy's sessions.
type Monitor interface {
	Report(ctx context.Context) monitor.Report
	StopSession(ctx context.Context, sessionID string) (monitor.StopResult, monitor.Report)
}

// Handler exposes resolution and monitoring endpoints using go-chi.
type Handler struct {
	resolver Resolver
	monitor  Monitor
	log      *slog.Logger
	now      func() time.Time
}

// NewHandler returns a Handler. mon may be nil when no stream proxy is
// configured; the monitor endpoints then answer 503.
func NewHandler(resolver Resolver, mon Monitor, log *slog.Logger) *Handler {
	return &Handler{resolver: resolver, monitor: mon, log: log, now: time.Now}
}

type streamResponse struct {
	URL               string `json:"url"`
	ProviderContextID string `json:"provider_context_id,omitempty"`
	Fallback          bool   `json:"fallback"`
}

type providerStatusResponse struct {
	ProviderID        routing.ProviderID `json:"provider_id"`
	Name              string             `json:"name,omitempty"`
	ActiveConnections int                `json:"active_connections"`
	MaxConnections    int                `json:"max_connections"`
	Connections       string             `json:"connections"`
	MaxReached        bool               `json:"max_reached"`
	ExpiresAt         *time.Time         `json:"expires_at,omitempty"`
	ExpiresSoon       bool               `json:"expires_soon"`
	FetchedAt         time.Time          `json:"fetched_at"`
}

type stopResponse struct {
	Result monitor.StopResult `json:"result"`
	Report monitor.Report     `json:"report"`
}

// GetStream handles GET /content/{kind}/{id}/stream.
func (h *Handler) GetStream(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resolve(w, r)
	if !ok {
		return
	}
	h.requestLog(r).Debug("stream resolved",
		slog.String("content", res.Item.Ref.String()),
		slog.String("context", res.ContextID()),
		slog.Bool("fallback", res.Fallback))
	writeJSON(w, http.StatusOK, streamResponse{
		URL:               res.URL,
		ProviderContextID: res.ContextID(),
		Fallback:          res.Fallback,
	})
}

// GetPlaylist handles GET /content/{kind}/{id}/playlist.m3u.
func (h *Handler) GetPlaylist(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resolve(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", playlistContentType)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(BuildEntryPlaylist(res.Item, res.URL)))
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) (routing.Resolution, bool) {
	kind, err := routing.ParseContentKind(chi.URLParam(r, "kind"))
	id := chi.URLParam(r, "id")
	if err != nil || id == "" {
		writeError(w, http.StatusBadRequest, "invalid content reference")
		return routing.Resolution{}, false
	}
	ref := routing.ContentRef{Kind: kind, ID: id}

	res, err := h.resolver.ResolveOptimalStream(r.Context(), ref)
	if err != nil {
		h.writeRoutingError(w, r, ref.String(), err)
		return routing.Resolution{}, false
	}
	return res, true
}

// GetProviderStatus handles GET /providers/{id}/status.
func (h *Handler) GetProviderStatus(w http.ResponseWriter, r *http.Request) {
	id := routing.ProviderID(chi.URLParam(r, "id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing provider id")
		return
	}

	p, snap, err := h.resolver.ProviderStatus(r.Context(), id)
	if err != nil {
		h.writeRoutingError(w, r, string(id), err)
		return
	}

	resp := providerStatusResponse{
		ProviderID:        p.ID,
		Name:              p.Name,
		ActiveConnections: snap.ActiveConnections,
		MaxConnections:    snap.MaxConnections,
		Connections:       snap.ConnectionsLabel(),
		MaxReached:        snap.IsOverLimit(),
		ExpiresSoon:       snap.ExpiresWithin(h.now(), expiryWarning),
		FetchedAt:         snap.FetchedAt,
	}
	if !snap.ExpiresAt.IsZero() {
		exp := snap.ExpiresAt
		resp.ExpiresAt = &exp
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetReport handles GET /monitor/report. An unreachable proxy still answers
// 200; the report carries the connection error.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	if h.monitor == nil {
		writeError(w, http.StatusServiceUnavailable, "stream proxy not configured")
		return
	}
	writeJSON(w, http.StatusOK, h.monitor.Report(r.Context()))
}

// StopSession handles POST /monitor/sessions/{id}/stop.
func (h *Handler) StopSession(w http.ResponseWriter, r *http.Request) {
	if h.monitor == nil {
		writeError(w, http.StatusServiceUnavailable, "stream proxy not configured")
		return
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return
	}

	res, report := h.monitor.StopSession(r.Context(), id)
	h.requestLog(r).Info("stop session requested",
		slog.String("session_id", id),
		slog.Bool("stopped", res.Stopped))
	writeJSON(w, http.StatusOK, stopResponse{Result: res, Report: report})
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) requestLog(r *http.Request) *slog.Logger {
	return logger.FromContext(r.Context(), h.log)
}

func (h *Handler) writeRoutingError(w http.ResponseWriter, r *http.Request, subject string, err error) {
	log := h.requestLog(r)
	switch {
	case errors.Is(err, routing.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, routing.ErrNoEffectiveProvider):
		log.Info("no effective provider", slog.String("subject", subject), slog.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, routing.ErrUpstreamUnreachable):
		log.Warn("provider unreachable", slog.String("subject", subject), slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		log.Error("routing failed", slog.String("subject", subject), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
