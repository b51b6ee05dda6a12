package session

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// idSeparator joins the components of a correlation id. It is part of the
// persisted record key and of the CSV export, so it never changes.
const idSeparator = "_"

// ErrMalformedID is returned by ParseCorrelationID.
var ErrMalformedID = errors.New("malformed correlation id")

// CorrelationID binds a chunk request to its response and to the metric
// record stored for it.
type CorrelationID struct {
	// Time is the end timestamp (seconds) of the chunk the request extends
	// playback from. It is the deduplication key.
	Time      float64
	VideoID   string
	SessionID string
	Bandwidth string
}

// NewCorrelationID builds the id for a request extending playback from priorEnd.
func NewCorrelationID(priorEnd float64, id Identity, bandwidth string) CorrelationID {
	return CorrelationID{
		Time:      priorEnd,
		VideoID:   id.VideoID,
		SessionID: sanitize(id.SessionID),
		Bandwidth: sanitize(bandwidth),
	}
}

// TimeKey is the two-decimal form of Time. Two ids with the same TimeKey aim
// to extend playback from the same point.
func (c CorrelationID) TimeKey() string {
	return strconv.FormatFloat(c.Time, 'f', 2, 64)
}

// String returns "<time>_<videoId>_<sessionId>_<bandwidth>".
func (c CorrelationID) String() string {
	return strings.Join([]string{c.TimeKey(), c.VideoID, c.SessionID, c.Bandwidth}, idSeparator)
}

// IsZero reports whether c is the zero id.
func (c CorrelationID) IsZero() bool {
	return c == CorrelationID{}
}

// ParseCorrelationID is the inverse of String. The video id may itself
// contain the separator: the first field is the time and the last two are
// the session and bandwidth.
func ParseCorrelationID(s string) (CorrelationID, error) {
	first := strings.Index(s, idSeparator)
	last := strings.LastIndex(s, idSeparator)
	if first < 0 || first == last {
		return CorrelationID{}, errors.Wrapf(ErrMalformedID, "%q", s)
	}
	beforeLast := strings.LastIndex(s[:last], idSeparator)
	if beforeLast <= first {
		return CorrelationID{}, errors.Wrapf(ErrMalformedID, "%q", s)
	}

	t, err := strconv.ParseFloat(s[:first], 64)
	if err != nil {
		return CorrelationID{}, errors.Wrapf(ErrMalformedID, "%q: time: %v", s, err)
	}

	return CorrelationID{
		Time:      t,
		VideoID:   s[first+1 : beforeLast],
		SessionID: s[beforeLast+1 : last],
		Bandwidth: s[last+1:],
	}, nil
}

// MustParseCorrelationID is ParseCorrelationID for literals in tests and fixtures.
func MustParseCorrelationID(s string) CorrelationID {
	c, err := ParseCorrelationID(s)
	if err != nil {
		panic(fmt.Sprintf("session: %v", err))
	}
	return c
}

func sanitize(s string) string {
	if s == "" {
		return "unknown"
	}
	return strings.ReplaceAll(s, idSeparator, "-")
}
