package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"appstorys-engine/internal/observability"
)

func Router(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(observability.Measure)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Post("/v1/screens/{name}", h.TrackScreen)
	r.Post("/v1/events", h.TrackEvent)
	r.Post("/v1/campaigns/{id}/dismiss", h.Dismiss)
	r.Get("/v1/active", h.Active)
	r.Post("/v1/lifecycle/{state}", h.Lifecycle)
	r.Post("/v1/capture", h.Capture)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", observability.MetricsHandler())
	return r
}
