package transcoder

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/pkg/errors"
)

const (
	transcodePath  = "/api/transcode-video"
	thumbnailsPath = "/api/get-thumbnails"

	// DefaultTimeout bounds a single transcode call. Transcoding is slow.
	DefaultTimeout = 2 * time.Minute

	// maxErrorBody caps how much of a failed response is read for logging.
	maxErrorBody = 4 << 10
)

// Client talks to the remote transcoding service. It never retries.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled default client. The given client is
// used as is; WithTimeout does not apply to it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// New returns a Client for the service at baseURL (e.g. "https://transcoder.example").
func New(baseURL string, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: DefaultTimeout,
		log:     log,
	}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		c.http = cleanhttp.DefaultPooledClient()
		c.http.Timeout = c.timeout
	}
	return c
}

// HTTPClient returns the underlying HTTP client so probes can share its pool.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// Transcode requests the chunk described by req.
func (c *Client) Transcode(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "encode transcode request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+transcodePath, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build transcode request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.log.Debug("transcode request rejected",
			slog.String("unique_id", req.UniqueID),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(snippet)))
		return nil, &NetworkError{Status: resp.StatusCode}
	}

	var p payload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, &BadResponseError{Reason: "undecodable body", Err: err}
	}
	return p.toResponse()
}

func (p payload) toResponse() (*Response, error) {
	if p.VideoContentBase64 == "" {
		return nil, &BadResponseError{Reason: "video content is missing"}
	}
	content, err := base64.StdEncoding.DecodeString(p.VideoContentBase64)
	if err != nil {
		return nil, &BadResponseError{Reason: "video content is not base64", Err: err}
	}
	if p.UniqueID == "" {
		return nil, &BadResponseError{Reason: "uniqueID is missing"}
	}
	return &Response{
		Content:             content,
		EndTimestamp:        float64(p.EndTimestamp),
		ChunkLength:         float64(p.ChunkLength),
		TranscodingDuration: string(p.TranscodingDuration),
		FetchFromDbDuration: float64(p.FetchFromDbDuration),
		Command:             string(p.FFmpegCommand),
		MemoryUsed:          int64(p.MemoryUsed),
		EOF:                 p.EOF,
		UniqueID:            p.UniqueID,
	}, nil
}

// Thumbnails lists the videos available for playback.
func (c *Client) Thumbnails(ctx context.Context) ([]Thumbnail, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+thumbnailsPath, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build thumbnails request")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &NetworkError{Status: resp.StatusCode}
	}

	var thumbs []Thumbnail
	if err := json.NewDecoder(resp.Body).Decode(&thumbs); err != nil {
		return nil, &BadResponseError{Reason: "undecodable thumbnail list", Err: err}
	}
	return thumbs, nil
}
