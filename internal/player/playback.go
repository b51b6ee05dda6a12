package player

// DefaultThreshold is the fraction of a chunk after which the next one is requested.
const DefaultThreshold = 0.1

// ThresholdCrossed reports whether position has reached fraction of duration.
func ThresholdCrossed(position, duration, fraction float64) bool {
	if duration <= 0 {
		return false
	}
	return position >= fraction*duration
}

// Trigger is what an Advance observed about the current chunk.
type Trigger struct {
	// Threshold is set the first time the fetch threshold is crossed.
	Threshold bool
	// Completed is set the first time the chunk plays to its end.
	Completed bool
	// Spliced holds the chunk that replaced the current one, if any.
	Spliced *Chunk
}

// Fired reports whether the fetch trigger fired.
func (t Trigger) Fired() bool {
	return t.Threshold || t.Completed
}

// Playback tracks what is playing and what plays next. A new chunk only
// replaces the current one at a chunk boundary.
type Playback struct {
	threshold float64

	current  *Chunk
	next     *Chunk
	position float64
	eof      bool

	thresholdFired bool
	completedFired bool
}

// NewPlayback returns an empty Playback using the given fetch threshold.
// Thresholds outside (0, 1] fall back to DefaultThreshold.
func NewPlayback(threshold float64) *Playback {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Playback{threshold: threshold}
}

// Current returns the chunk playing, or nil before the first one arrives.
func (p *Playback) Current() *Chunk { return p.current }

// Next returns the chunk queued for splicing, or nil.
func (p *Playback) Next() *Chunk { return p.next }

// Position is the playback position within the current chunk, in seconds.
func (p *Playback) Position() float64 { return p.position }

// EndOfStream reports whether the final chunk has arrived.
func (p *Playback) EndOfStream() bool { return p.eof }

// Threshold returns the fetch threshold fraction.
func (p *Playback) Threshold() float64 { return p.threshold }

// atEnd reports whether the current chunk has played out.
func (p *Playback) atEnd() bool {
	return p.current != nil && p.position >= p.current.Duration
}

// Finished reports whether the final chunk has played to its end.
func (p *Playback) Finished() bool {
	return p.eof && p.next == nil && p.atEnd()
}

// Enqueue accepts a newly arrived chunk. It becomes current immediately if
// nothing is playing or the current chunk has already played out; otherwise
// it waits for the boundary. The returned chunk is non-nil when a splice
// happened.
func (p *Playback) Enqueue(c *Chunk) *Chunk {
	if c.EOF {
		p.eof = true
	}
	if p.current == nil || (p.atEnd() && p.next == nil) {
		p.splice(c)
		return c
	}
	p.next = c
	return nil
}

// Advance moves the position within the current chunk and reports trigger
// edges. The position is clamped to the chunk's duration. Reaching the end
// of the chunk splices in the queued one.
func (p *Playback) Advance(position float64) Trigger {
	var t Trigger
	if p.current == nil {
		return t
	}
	if position < 0 {
		position = 0
	}
	if position > p.current.Duration {
		position = p.current.Duration
	}
	p.position = position

	if !p.thresholdFired && ThresholdCrossed(position, p.current.Duration, p.threshold) {
		p.thresholdFired = true
		t.Threshold = true
	}
	if p.atEnd() {
		if p.next != nil {
			next := p.next
			p.next = nil
			p.splice(next)
			t.Spliced = next
			return t
		}
		if !p.completedFired {
			p.completedFired = true
			t.Completed = true
		}
	}
	return t
}

// Rearm lets both triggers fire again for the current chunk. The next
// Advance past the threshold or at the end reports the edge anew.
func (p *Playback) Rearm() {
	p.thresholdFired = false
	p.completedFired = false
}

// armed reports whether the completion trigger can still fire.
func (p *Playback) armed() bool {
	return !p.completedFired
}

func (p *Playback) splice(c *Chunk) {
	p.current = c
	p.position = 0
	p.thresholdFired = false
	p.completedFired = false
}
