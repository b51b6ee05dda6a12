package player

import (
	"time"

	"chunk-player/internal/session"
)

// State is the orchestrator's position in the fetch/play cycle.
type State int

const (
	Idle State = iota
	AwaitingFirstChunk
	Playing
	FetchingNext
	EndOfStream
	Error
)

var stateNames = [...]string{
	Idle:               "idle",
	AwaitingFirstChunk: "awaiting_first_chunk",
	Playing:            "playing",
	FetchingNext:       "fetching_next",
	EndOfStream:        "end_of_stream",
	Error:              "error",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Chunk is one contiguous, independently playable segment.
type Chunk struct {
	// Sequence numbers chunks in arrival order, starting at 0.
	Sequence int64
	Content  []byte
	// Start and End are stream timestamps in seconds.
	Start float64
	End   float64
	// Duration is the playable length in seconds.
	Duration            float64
	TranscodingDuration string
	EOF                 bool

	ReceivedAt time.Time
}

// ChunkRequest is an immutable description of one fetch.
type ChunkRequest struct {
	ID      session.CorrelationID
	VideoID string
	// RequestedStart is the end timestamp of the chunk being extended, 0 for the first.
	RequestedStart float64
	// Position and PriorDuration describe the chunk currently playing.
	Position         float64
	PriorDuration    float64
	PriorTranscoding string
	Context          session.ClientContext
}
