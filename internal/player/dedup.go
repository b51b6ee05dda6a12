package player

import "chunk-player/internal/session"

// Deduplicator is the set of chunk requests awaiting a response. Requests
// that extend playback from the same timestamp are duplicates, whatever
// their other id components. It is not safe for concurrent use; the
// orchestrator owns it.
type Deduplicator struct {
	byTime map[string]session.CorrelationID
}

// NewDeduplicator returns an empty set.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{byTime: make(map[string]session.CorrelationID)}
}

// TryAcquire registers id unless a request with the same timestamp key is
// already pending. It reports whether id was registered.
func (d *Deduplicator) TryAcquire(id session.CorrelationID) bool {
	key := id.TimeKey()
	if _, busy := d.byTime[key]; busy {
		return false
	}
	d.byTime[key] = id
	return true
}

// Release removes id. Releasing an id that is not pending is a no-op, as
// is releasing an id whose slot now belongs to a different request.
func (d *Deduplicator) Release(id session.CorrelationID) {
	key := id.TimeKey()
	if cur, ok := d.byTime[key]; ok && cur == id {
		delete(d.byTime, key)
	}
}

// Pending reports whether exactly id holds a slot.
func (d *Deduplicator) Pending(id session.CorrelationID) bool {
	cur, ok := d.byTime[id.TimeKey()]
	return ok && cur == id
}

// Len returns the number of pending requests.
func (d *Deduplicator) Len() int {
	return len(d.byTime)
}

// Clear drops every pending request.
func (d *Deduplicator) Clear() {
	clear(d.byTime)
}
