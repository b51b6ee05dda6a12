package telemetry

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"chunk-player/internal/metricstore"
	"chunk-player/internal/platform/metrics"
)

const csvContentType = "text/csv; charset=utf-8"

// RecordReader is the read side of the metric store.
type RecordReader interface {
	Namespaces() ([]string, error)
	GetAll(videoID string) ([]metricstore.Record, error)
	ExportCSV(videoID string, w io.Writer) error
}

// Handler exposes the stored telemetry over HTTP using go-chi. It only reads.
type Handler struct {
	store   RecordReader
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewHandler returns a Handler over store. Metrics may be nil.
func NewHandler(store RecordReader, log *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{store: store, log: log, metrics: m}
}

type videoList struct {
	Videos []string `json:"videos"`
}

type recordList struct {
	VideoID string               `json:"videoId"`
	Records []metricstore.Record `json:"records"`
}

// ListVideos handles GET /videos.
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	names, err := h.store.Namespaces()
	if err != nil {
		h.log.Error("list namespaces failed", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, videoList{Videos: names})
}

// GetRecords handles GET /videos/{video_id}/records.
func (h *Handler) GetRecords(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "video_id")
	if videoID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	records, err := h.store.GetAll(videoID)
	if err != nil {
		h.fail(w, videoID, "read records failed", err)
		return
	}
	writeJSON(w, recordList{VideoID: videoID, Records: records})
}

// ExportCSV handles GET /videos/{video_id}/records.csv.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	videoID := chi.URLParam(r, "video_id")
	if videoID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// Read first so a missing namespace still gets a clean 404.
	if _, err := h.store.GetAll(videoID); err != nil {
		h.fail(w, videoID, "export records failed", err)
		return
	}

	w.Header().Set("Content-Type", csvContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+metricstore.CSVFileName(videoID)+`"`)
	w.WriteHeader(http.StatusOK)
	if err := h.store.ExportCSV(videoID, w); err != nil {
		h.log.Error("csv export interrupted",
			slog.String("video_id", videoID),
			slog.String("error", err.Error()))
	}
}

func (h *Handler) fail(w http.ResponseWriter, videoID, msg string, err error) {
	switch {
	case errors.Is(err, metricstore.ErrNamespaceMissing):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, metricstore.ErrStorageUnavailable):
		h.log.Error(msg, slog.String("video_id", videoID), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusServiceUnavailable)
	default:
		h.log.Error(msg, slog.String("video_id", videoID), slog.String("error", err.Error()))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}
