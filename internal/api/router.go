package api

import (
	"log/slog"
	"net/http"
	"time"

	"stream-router/internal/platform/logger"
	"stream-router/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

// RouterConfig carries the cross-cutting pieces mounted around Handler.
type RouterConfig struct {
	Log *slog.Logger
	// Metrics may be nil, in which case /metrics is not mounted.
	Metrics *metrics.Metrics
	// RateLimitPerMinute caps requests per client IP on the content and
	// monitor routes. Zero disables limiting.
	RateLimitPerMinute int
}

// NewRouter mounts h's endpoints on a chi router.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(logger.RequestLogger(cfg.Log))
	if cfg.Metrics != nil {
		r.Use(metrics.RequestMiddleware(cfg.Metrics))
		r.Get("/metrics", cfg.Metrics.Handler(nil).ServeHTTP)
	}
	r.Get("/healthz", h.Healthz)

	r.Group(func(r chi.Router) {
		r.Use(RateLimit(cfg.RateLimitPerMinute, time.Minute))
		r.Route("/content/{kind}/{id}", func(r chi.Router) {
			r.Get("/stream", h.GetStream)
			r.Get("/playlist.m3u", h.GetPlaylist)
		})
		r.Get("/providers/{id}/status", h.GetProviderStatus)
		r.Route("/monitor", func(r chi.Router) {
			r.Get("/report", h.GetReport)
			r.Post("/sessions/{id}/stop", h.StopSession)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	return r
}
