package metricstore

import "chunk-player/internal/session"

// Record is the telemetry stored for one accepted chunk. ID is the
// correlation id of the request that produced the chunk.
type Record struct {
	ID string `json:"id"`
	session.ClientContext

	// FetchDuration is the request round-trip in milliseconds.
	FetchDuration       int64   `json:"fetchDuration"`
	TranscodingDuration string  `json:"transcodingDuration"`
	FetchFromDbDuration float64 `json:"fetchFromDbDuration"`
	FFmpegCommand       string  `json:"ffmpegCommand"`
	BytesUsed           int64   `json:"bytesUsed"`
}
