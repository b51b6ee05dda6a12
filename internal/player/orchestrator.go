package player

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"chunk-player/internal/metricstore"
	"chunk-player/internal/platform/logger"
	"chunk-player/internal/platform/metrics"
	"chunk-player/internal/session"
	"chunk-player/internal/transcoder"
)

// Transcoder fetches chunks from the remote transcoding service.
type Transcoder interface {
	Transcode(ctx context.Context, req transcoder.Request) (*transcoder.Response, error)
}

// RecordWriter stores one metric record per accepted chunk.
type RecordWriter interface {
	Put(videoID string, rec metricstore.Record) error
}

// ContextSource supplies the client context snapshot sent with each request.
type ContextSource interface {
	Snapshot() session.ClientContext
}

// Options configures an Orchestrator. The zero value is usable.
type Options struct {
	// Threshold is the fraction of a chunk after which the next one is
	// requested. Defaults to DefaultThreshold.
	Threshold float64
	// Records receives telemetry. Nil disables recording; playback is unaffected.
	Records RecordWriter
	// OnSplice is called with every chunk as it becomes the current one.
	OnSplice func(Chunk)

	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

type fetchResult struct {
	req        ChunkRequest
	resp       *transcoder.Response
	err        error
	sentAt     time.Time
	receivedAt time.Time
}

// Orchestrator drives the fetch/play loop for one video. All methods must
// be called from a single goroutine; only the network call runs elsewhere
// and its outcome is applied by Await or Run.
type Orchestrator struct {
	identity session.Identity
	client   Transcoder
	source   ContextSource

	records  RecordWriter
	onSplice func(Chunk)
	clock    clock.Clock
	log      *slog.Logger
	metrics  *metrics.Metrics

	dedup    *Deduplicator
	playback *Playback
	state    State
	// resume is the state to return to when a fetch result is discarded.
	resume   State
	err      error
	inflight int
	seq      int64

	ctx     context.Context
	cancel  context.CancelFunc
	results chan fetchResult
}

// New returns an idle Orchestrator for identity's video.
func New(identity session.Identity, client Transcoder, source ContextSource, opts Options) *Orchestrator {
	o := &Orchestrator{
		identity: identity,
		client:   client,
		source:   source,
		records:  opts.Records,
		onSplice: opts.OnSplice,
		clock:    opts.Clock,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		dedup:    NewDeduplicator(),
		playback: NewPlayback(opts.Threshold),
		state:    Idle,
		results:  make(chan fetchResult, 1),
	}
	if o.clock == nil {
		o.clock = clock.New()
	}
	if o.log == nil {
		o.log = logger.Discard()
	}
	o.log = o.log.With(
		slog.String("video_id", identity.VideoID),
		slog.String("session_id", identity.SessionID))
	return o
}

// State returns the current state.
func (o *Orchestrator) State() State { return o.state }

// Err returns the current error, the most recent failure not yet cleared
// by a successful fetch.
func (o *Orchestrator) Err() error { return o.err }

// Playback exposes the playback state machine for inspection.
func (o *Orchestrator) Playback() *Playback { return o.playback }

// Pending returns the number of requests holding a dedup slot.
func (o *Orchestrator) Pending() int { return o.dedup.Len() }

// InFlight returns the number of fetches whose result has not been applied.
func (o *Orchestrator) InFlight() int { return o.inflight }

// Start requests the first chunk.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.state != Idle {
		return ErrAlreadyStarted
	}
	o.ctx, o.cancel = context.WithCancel(ctx)
	o.state = AwaitingFirstChunk
	o.log.Info("playback starting")
	o.fetch()
	return nil
}

// Close cancels outstanding fetches and releases every dedup slot. Results
// arriving afterwards are stale.
func (o *Orchestrator) Close() {
	if o.cancel != nil {
		o.cancel()
	}
	o.dedup.Clear()
	o.updatePending()
}

// OnProgress reports the playback position within the current chunk. It
// splices in a queued chunk at the boundary and requests the next chunk
// when the threshold is crossed or the chunk completes.
func (o *Orchestrator) OnProgress(position float64) {
	if o.state == Idle {
		return
	}
	t := o.playback.Advance(position)
	if t.Spliced != nil {
		o.spliced(*t.Spliced)
	}
	if !t.Fired() {
		return
	}
	if o.state != Playing && o.state != Error {
		return
	}
	if o.playback.Next() != nil || o.playback.EndOfStream() {
		return
	}
	o.fetch()
}

// Retry re-issues the request for the chunk after the current one. It is
// refused while a request is in flight, a chunk is queued or the stream has
// ended. It reports whether a request was sent.
func (o *Orchestrator) Retry() bool {
	switch o.state {
	case Error, AwaitingFirstChunk, Playing:
	default:
		return false
	}
	if o.inflight > 0 || o.playback.Next() != nil {
		return false
	}
	return o.fetch()
}

// Await blocks until one outstanding fetch completes and applies it. It
// returns the fetch error, an ErrStaleResponse for discarded responses, or
// ctx's error.
func (o *Orchestrator) Await(ctx context.Context) error {
	select {
	case res := <-o.results:
		return o.handle(res)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives playback from ticks, each the playback time elapsed since the
// previous one. It returns nil once the final chunk has played or ticks is
// closed. Once playback cannot advance any further it returns the current
// error, or ErrStalled when there is none; Retry may then resume.
func (o *Orchestrator) Run(ctx context.Context, ticks <-chan time.Duration) error {
	if o.state == Idle {
		return ErrNotStarted
	}
	for {
		if o.playback.Finished() {
			o.log.Info("playback finished", slog.Int64("chunks", o.seq))
			return nil
		}
		if o.stalled() {
			if o.state == Error && o.err != nil {
				return o.err
			}
			return errors.Wrapf(ErrStalled, "state %s", o.state)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-ticks:
			if !ok {
				return nil
			}
			o.OnProgress(o.playback.Position() + d.Seconds())
		case res := <-o.results:
			_ = o.handle(res)
		}
	}
}

// stalled reports whether nothing can move playback forward: no request is
// in flight, no chunk is queued, and either nothing is playing or the
// current chunk has played out with its completion trigger spent.
func (o *Orchestrator) stalled() bool {
	if o.inflight > 0 || o.playback.Next() != nil || o.playback.EndOfStream() {
		return false
	}
	switch o.state {
	case Error, AwaitingFirstChunk, Playing:
	default:
		return false
	}
	if o.playback.Current() == nil {
		return true
	}
	return o.playback.atEnd() && !o.playback.armed()
}

func (o *Orchestrator) buildRequest() ChunkRequest {
	snap := o.source.Snapshot()
	req := ChunkRequest{
		VideoID:  o.identity.VideoID,
		Position: o.playback.Position(),
		Context:  snap,
	}
	if cur := o.playback.Current(); cur != nil {
		req.RequestedStart = cur.End
		req.PriorDuration = cur.Duration
		req.PriorTranscoding = cur.TranscodingDuration
	}
	req.ID = session.NewCorrelationID(req.RequestedStart, o.identity, snap.Bandwidth)
	return req
}

func (r ChunkRequest) wire() transcoder.Request {
	tt := r.PriorTranscoding
	if tt == "" {
		tt = "0"
	}
	return transcoder.Request{
		VideoID:         r.VideoID,
		Timestamp:       transcoder.Seconds(r.Position),
		NewStartTime:    transcoder.Seconds(r.RequestedStart),
		Duration:        transcoder.Seconds(r.PriorDuration),
		UserData:        r.Context,
		UniqueID:        r.ID.String(),
		TranscodingTime: tt,
	}
}

// fetch sends the next request unless an equivalent one is pending.
func (o *Orchestrator) fetch() bool {
	if o.playback.EndOfStream() {
		return false
	}
	req := o.buildRequest()
	if !o.dedup.TryAcquire(req.ID) {
		o.log.Debug("chunk request already pending", slog.String("unique_id", req.ID.String()))
		return false
	}

	o.resume = o.state
	o.state = FetchingNext
	o.inflight++
	if o.metrics != nil {
		o.metrics.IncChunkRequests()
	}
	o.updatePending()

	o.log.Debug("requesting chunk",
		slog.String("unique_id", req.ID.String()),
		slog.Float64("start", req.RequestedStart))

	ctx := o.ctx
	sentAt := o.clock.Now()
	go func() {
		resp, err := o.client.Transcode(ctx, req.wire())
		res := fetchResult{req: req, resp: resp, err: err, sentAt: sentAt, receivedAt: o.clock.Now()}
		select {
		case o.results <- res:
		case <-ctx.Done():
		}
	}()
	return true
}

func (o *Orchestrator) handle(res fetchResult) error {
	o.inflight--
	id := res.req.ID.String()

	if !o.dedup.Pending(res.req.ID) {
		return o.discard(id, "request no longer pending")
	}
	o.dedup.Release(res.req.ID)
	o.updatePending()

	if res.err == nil && res.resp == nil {
		res.err = &transcoder.BadResponseError{Reason: "empty response"}
	}
	if res.err != nil {
		return o.fail(id, res.err)
	}
	if res.resp.UniqueID != id {
		// Nothing was delivered for this request, so its triggers fire again.
		o.state = o.resume
		o.playback.Rearm()
		return o.discard(id, "response id "+res.resp.UniqueID+" does not match")
	}

	o.accept(res)
	return nil
}

func (o *Orchestrator) discard(id, reason string) error {
	o.log.Warn("discarding stale chunk response",
		slog.String("unique_id", id),
		slog.String("reason", reason))
	if o.metrics != nil {
		o.metrics.IncStaleResponses()
	}
	return errors.Wrapf(ErrStaleResponse, "%s: %s", id, reason)
}

func (o *Orchestrator) fail(id string, err error) error {
	o.state = Error
	o.err = err
	o.log.Error("chunk request failed",
		slog.String("unique_id", id),
		slog.String("error", err.Error()))
	if o.metrics != nil {
		o.metrics.IncFetchErrors()
	}
	return err
}

func (o *Orchestrator) accept(res fetchResult) {
	resp := res.resp
	chunk := &Chunk{
		Sequence:            o.seq,
		Content:             resp.Content,
		Start:               res.req.RequestedStart,
		End:                 resp.EndTimestamp,
		Duration:            resp.ChunkLength,
		TranscodingDuration: resp.TranscodingDuration,
		EOF:                 resp.EOF,
		ReceivedAt:          res.receivedAt,
	}
	if chunk.Duration <= 0 && chunk.End > chunk.Start {
		chunk.Duration = chunk.End - chunk.Start
	}
	o.seq++
	o.err = nil

	latency := res.receivedAt.Sub(res.sentAt)
	if o.metrics != nil {
		o.metrics.ObserveFetchLatency(latency)
	}
	o.record(res.req, resp, latency)

	if spliced := o.playback.Enqueue(chunk); spliced != nil {
		o.spliced(*spliced)
	}

	if chunk.EOF {
		o.state = EndOfStream
		if o.metrics != nil {
			o.metrics.IncEndOfStream()
		}
	} else {
		o.state = Playing
	}

	o.log.Info("chunk received",
		slog.String("unique_id", res.req.ID.String()),
		slog.Int64("sequence", chunk.Sequence),
		slog.Float64("end", chunk.End),
		slog.Int64("fetch_ms", latency.Milliseconds()),
		slog.Bool("eof", chunk.EOF))
}

// record stores the telemetry of an accepted chunk. Failures are reported
// as the current error but never interrupt playback.
func (o *Orchestrator) record(req ChunkRequest, resp *transcoder.Response, latency time.Duration) {
	if o.records == nil {
		return
	}
	rec := metricstore.Record{
		ID:                  req.ID.String(),
		ClientContext:       req.Context,
		FetchDuration:       latency.Milliseconds(),
		TranscodingDuration: resp.TranscodingDuration,
		FetchFromDbDuration: resp.FetchFromDbDuration,
		FFmpegCommand:       resp.Command,
		BytesUsed:           resp.MemoryUsed,
	}
	if err := o.records.Put(o.identity.VideoID, rec); err != nil {
		o.err = err
		o.log.Warn("metric record not stored",
			slog.String("unique_id", rec.ID),
			slog.String("error", err.Error()))
		if o.metrics != nil {
			o.metrics.IncStoreErrors()
		}
		return
	}
	if o.metrics != nil {
		o.metrics.IncRecordsWritten()
	}
}

func (o *Orchestrator) spliced(c Chunk) {
	o.log.Debug("chunk spliced", slog.Int64("sequence", c.Sequence))
	if o.onSplice != nil {
		o.onSplice(c)
	}
}

func (o *Orchestrator) updatePending() {
	if o.metrics != nil {
		o.metrics.SetPendingRequests(o.dedup.Len())
	}
}
