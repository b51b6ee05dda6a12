package telemetry

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"chunk-player/internal/platform/logger"
	"chunk-player/internal/platform/metrics"
)

// NewRouter wires the telemetry routes, request logging and /metrics.
// updateGauges runs before each scrape and may be nil.
func NewRouter(h *Handler, log *slog.Logger, m *metrics.Metrics, updateGauges func()) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(log))
	if m != nil {
		r.Use(metrics.RequestMiddleware(m))
		r.Method(http.MethodGet, "/metrics", m.Handler(updateGauges))
	}

	r.Get("/videos", h.ListVideos)
	r.Route("/videos/{video_id}", func(r chi.Router) {
		r.Get("/records", h.GetRecords)
		r.Get("/records.csv", h.ExportCSV)
	})
	return r
}
