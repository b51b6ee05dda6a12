package telemetry

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chunk-player/internal/metricstore"
	"chunk-player/internal/platform/logger"
	"chunk-player/internal/platform/metrics"
	"chunk-player/internal/session"
)

func newTestRouter(t *testing.T) (http.Handler, *metricstore.Store) {
	t.Helper()
	store, err := metricstore.Open(filepath.Join(t.TempDir(), "metrics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := logger.Discard()
	return NewRouter(NewHandler(store, log, nil), log, metrics.New(), nil), store
}

func seed(t *testing.T, store *metricstore.Store, videoID string, ids ...string) {
	t.Helper()
	require.NoError(t, store.OpenNamespace(videoID))
	for _, id := range ids {
		require.NoError(t, store.Put(videoID, metricstore.Record{
			ID:            id,
			ClientContext: session.ClientContext{Bandwidth: "4g", DeviceType: session.DeviceDesktop},
			FetchDuration: 250,
			FFmpegCommand: "ffmpeg -ss 0 -t 10 -c:v libvpx-vp9 out.webm",
		}))
	}
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandler_ListVideos(t *testing.T) {
	r, store := newTestRouter(t)
	seed(t, store, "v2")
	seed(t, store, "v1")

	rec := get(t, r, "/videos")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body videoList
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, []string{"v1", "v2"}, body.Videos)
}

func TestHandler_GetRecords(t *testing.T) {
	r, store := newTestRouter(t)
	seed(t, store, "v1", "0.00_v1_s1_4g", "10.00_v1_s1_4g")

	rec := get(t, r, "/videos/v1/records")
	require.Equal(t, http.StatusOK, rec.Code)

	var body recordList
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "v1", body.VideoID)
	require.Len(t, body.Records, 2)
	assert.Equal(t, "0.00_v1_s1_4g", body.Records[0].ID)
	assert.Equal(t, "10.00_v1_s1_4g", body.Records[1].ID)
	assert.Equal(t, int64(250), body.Records[0].FetchDuration)
}

func TestHandler_GetRecords_unknown_video(t *testing.T) {
	r, _ := newTestRouter(t)

	assert.Equal(t, http.StatusNotFound, get(t, r, "/videos/nope/records").Code)
	assert.Equal(t, http.StatusNotFound, get(t, r, "/videos/nope/records.csv").Code)
}

func TestHandler_ExportCSV(t *testing.T) {
	r, store := newTestRouter(t)
	seed(t, store, "v1", "0.00_v1_s1_4g", "10.00_v1_s1_4g")

	rec := get(t, r, "/videos/v1/records.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, csvContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "v1_metrics.csv")

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, metricstore.CSVColumns, rows[0])
	assert.Equal(t, "0.00", rows[1][0])
	assert.Equal(t, "10.00", rows[2][0])
}

func TestRouter_metrics(t *testing.T) {
	r, _ := newTestRouter(t)
	get(t, r, "/videos/nope/records")

	rec := get(t, r, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "telemetry_http_errors_total 1"), string(body))
}

func TestRouter_method_not_allowed(t *testing.T) {
	r, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/videos", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
