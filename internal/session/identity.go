package session

import "github.com/google/uuid"

// Identity ties a playback session to the video being played. One Identity
// exists per play; it is never persisted.
type Identity struct {
	SessionID string
	VideoID   string
}

// NewIdentity returns an Identity with a fresh random session id.
func NewIdentity(videoID string) Identity {
	return Identity{SessionID: uuid.NewString(), VideoID: videoID}
}
