package transcoder

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chunk-player/internal/platform/logger"
	"chunk-player/internal/session"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", logger.Discard(), WithHTTPClient(srv.Client()))
}

func TestClient_Transcode(t *testing.T) {
	var got map[string]any
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/transcode-video", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Write([]byte(`{
			"VideoContentBase64": "` + base64.StdEncoding.EncodeToString([]byte("webm")) + `",
			"EndTimestamp": "00:00:10.00",
			"ChunkLength": 10,
			"TranscodingDuration": "1.52",
			"FetchFromDbDuration": "35",
			"FFmpegCommand": ["ffmpeg", "-ss", "0", "-t", "10"],
			"MemoryUsed": 2048,
			"eof": false,
			"uniqueID": "0.00_v1_s1_4g"
		}`))
	})

	resp, err := c.Transcode(context.Background(), Request{
		VideoID:      "v1",
		Timestamp:    1.234,
		NewStartTime: 0,
		Duration:     10,
		UserData:     session.ClientContext{Bandwidth: "4g", DeviceType: session.DeviceDesktop},
		UniqueID:     "0.00_v1_s1_4g",
	})
	require.NoError(t, err)

	assert.Equal(t, "v1", got["videoId"])
	assert.Equal(t, "1.23", got["timestamp"])
	assert.Equal(t, "0.00", got["newStartTime"])
	assert.Equal(t, "10.00", got["duration"])
	assert.Equal(t, "0.00_v1_s1_4g", got["uniqueID"])
	assert.Equal(t, "4g", got["userData"].(map[string]any)["bandwidth"])

	assert.Equal(t, []byte("webm"), resp.Content)
	assert.Equal(t, 10.0, resp.EndTimestamp)
	assert.Equal(t, 10.0, resp.ChunkLength)
	assert.Equal(t, "1.52", resp.TranscodingDuration)
	assert.Equal(t, 35.0, resp.FetchFromDbDuration)
	assert.Equal(t, "ffmpeg -ss 0 -t 10", resp.Command)
	assert.Equal(t, int64(2048), resp.MemoryUsed)
	assert.False(t, resp.EOF)
	assert.Equal(t, "0.00_v1_s1_4g", resp.UniqueID)
}

func TestClient_Transcode_non_2xx(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	})

	_, err := c.Transcode(context.Background(), Request{VideoID: "v1", UniqueID: "x"})
	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr), "got %v", err)
	assert.Equal(t, http.StatusServiceUnavailable, netErr.Status)
}

func TestClient_Transcode_transport_failure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, logger.Discard(), WithTimeout(time.Second))
	_, err := c.Transcode(context.Background(), Request{VideoID: "v1"})
	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr), "got %v", err)
	assert.Zero(t, netErr.Status)
}

func TestNew_options(t *testing.T) {
	assert.Equal(t, DefaultTimeout, New("http://x", logger.Discard()).HTTPClient().Timeout)
	assert.Equal(t, time.Second, New("http://x", logger.Discard(), WithTimeout(time.Second)).HTTPClient().Timeout)

	shared := &http.Client{Timeout: 5 * time.Second}
	for _, opts := range [][]Option{
		{WithHTTPClient(shared), WithTimeout(time.Second)},
		{WithTimeout(time.Second), WithHTTPClient(shared)},
	} {
		c := New("http://x", logger.Discard(), opts...)
		assert.Same(t, shared, c.HTTPClient())
		assert.Equal(t, 5*time.Second, shared.Timeout, "a caller's client is never modified")
	}
}

func TestClient_Transcode_bad_payloads(t *testing.T) {
	cases := map[string]string{
		"not_json":        `<html>`,
		"missing_content": `{"uniqueID": "a", "EndTimestamp": 1}`,
		"not_base64":      `{"VideoContentBase64": "***", "uniqueID": "a"}`,
		"missing_id":      `{"VideoContentBase64": "d2VibQ=="}`,
		"bad_timestamp":   `{"VideoContentBase64": "d2VibQ==", "uniqueID": "a", "EndTimestamp": "soon"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})
			_, err := c.Transcode(context.Background(), Request{VideoID: "v1"})
			var badErr *BadResponseError
			assert.True(t, errors.As(err, &badErr), "got %v", err)
		})
	}
}

func TestClient_Thumbnails(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/get-thumbnails", r.URL.Path)
		w.Write([]byte(`[{"videoId":"v1","thumbnailUrl":"https://cdn/v1.jpg","videoName":"First","description":"d"}]`))
	})

	thumbs, err := c.Thumbnails(context.Background())
	require.NoError(t, err)
	require.Len(t, thumbs, 1)
	assert.Equal(t, Thumbnail{VideoID: "v1", ThumbnailURL: "https://cdn/v1.jpg", VideoName: "First", Description: "d"}, thumbs[0])
}

func TestParseSeconds(t *testing.T) {
	cases := map[string]Seconds{
		"":            0,
		"12.5":        12.5,
		"00:00:10":    10,
		"00:01:02.50": 62.5,
		"01:00":       60,
	}
	for in, want := range cases {
		got, err := ParseSeconds(in)
		require.NoError(t, err, in)
		assert.InDelta(t, float64(want), float64(got), 1e-9, in)
	}

	_, err := ParseSeconds("1:2:3:4")
	assert.Error(t, err)
}

func TestWireTypes_unmarshal(t *testing.T) {
	var v struct {
		S Seconds `json:"s"`
		N Number  `json:"n"`
		L Label   `json:"l"`
		T Trace   `json:"t"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"s": 3.5, "n": "", "l": 1.25, "t": "ffmpeg -i in"}`), &v))
	assert.Equal(t, Seconds(3.5), v.S)
	assert.Equal(t, Number(0), v.N)
	assert.Equal(t, Label("1.25"), v.L)
	assert.Equal(t, Trace("ffmpeg -i in"), v.T)

	require.NoError(t, json.Unmarshal([]byte(`{"s": null, "n": null, "l": null, "t": null}`), &v))
	assert.Zero(t, v.S)
	assert.Zero(t, v.N)
	assert.Empty(t, v.L)
	assert.Empty(t, v.T)
}
