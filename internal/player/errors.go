package player

import "errors"

var (
	// ErrStaleResponse marks a chunk response whose request is no longer
	// pending or whose id does not match the request. Such responses are
	// discarded and never become the current error.
	ErrStaleResponse = errors.New("stale chunk response")

	// ErrNotStarted is returned by Run before Start.
	ErrNotStarted = errors.New("orchestrator not started")

	// ErrStalled is returned by Run when no request is in flight and no
	// trigger is left that could issue one.
	ErrStalled = errors.New("playback stalled")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("orchestrator already started")
)
