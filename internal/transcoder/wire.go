package transcoder

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"chunk-player/internal/session"
)

// Seconds is a playback timestamp or duration. It is sent as a two-decimal
// string and accepted as a JSON number, a numeric string or "HH:MM:SS(.ff)".
type Seconds float64

// MarshalJSON implements json.Marshaler.
func (s Seconds) MarshalJSON() ([]byte, error) {
	return json.Marshal(strconv.FormatFloat(float64(s), 'f', 2, 64))
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Seconds) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*s = 0
		return nil
	}
	if len(b) > 0 && b[0] != '"' {
		var f float64
		if err := json.Unmarshal(b, &f); err != nil {
			return err
		}
		*s = Seconds(f)
		return nil
	}
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	v, err := ParseSeconds(str)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSeconds parses "12.5" or "00:01:02.50".
func ParseSeconds(str string) (Seconds, error) {
	str = strings.TrimSpace(str)
	if str == "" {
		return 0, nil
	}
	parts := strings.Split(str, ":")
	if len(parts) > 3 {
		return 0, errors.Errorf("invalid timestamp %q", str)
	}
	var total float64
	for _, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid timestamp %q", str)
		}
		total = total*60 + f
	}
	return Seconds(total), nil
}

// Number is a JSON number that may arrive quoted.
type Number float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	b = bytes.Trim(b, `"`)
	if len(b) == 0 {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return errors.Wrapf(err, "invalid number %s", b)
	}
	*n = Number(f)
	return nil
}

// Label is free text that may arrive as a JSON string or number.
type Label string

// UnmarshalJSON implements json.Unmarshaler.
func (l *Label) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*l = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = Label(s)
		return nil
	}
	*l = Label(b)
	return nil
}

// Trace is the encode command reported by the transcoder, either a single
// command line or a list of arguments. It is kept as one command line.
type Trace string

// UnmarshalJSON implements json.Unmarshaler.
func (t *Trace) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '[' {
		var args []string
		if err := json.Unmarshal(b, &args); err != nil {
			return err
		}
		*t = Trace(strings.Join(args, " "))
		return nil
	}
	var l Label
	if err := l.UnmarshalJSON(b); err != nil {
		return err
	}
	*t = Trace(l)
	return nil
}

// Request is the transcode-video request body.
type Request struct {
	VideoID         string                `json:"videoId"`
	Timestamp       Seconds               `json:"timestamp"`
	NewStartTime    Seconds               `json:"newStartTime"`
	Duration        Seconds               `json:"duration"`
	UserData        session.ClientContext `json:"userData"`
	UniqueID        string                `json:"uniqueID"`
	TranscodingTime string                `json:"transcodingTime"`
}

// payload is the transcode-video response body as received.
type payload struct {
	VideoContentBase64  string  `json:"VideoContentBase64"`
	EndTimestamp        Seconds `json:"EndTimestamp"`
	ChunkLength         Seconds `json:"ChunkLength"`
	TranscodingDuration Label   `json:"TranscodingDuration"`
	FetchFromDbDuration Number  `json:"FetchFromDbDuration"`
	FFmpegCommand       Trace   `json:"FFmpegCommand"`
	MemoryUsed          Number  `json:"MemoryUsed"`
	EOF                 bool    `json:"eof"`
	UniqueID            string  `json:"uniqueID"`
}

// Response is a decoded, validated chunk.
type Response struct {
	Content             []byte
	EndTimestamp        float64
	ChunkLength         float64
	TranscodingDuration string
	FetchFromDbDuration float64
	Command             string
	MemoryUsed          int64
	EOF                 bool
	UniqueID            string
}

// Thumbnail is one entry of the thumbnail listing.
type Thumbnail struct {
	VideoID      string `json:"videoId"`
	ThumbnailURL string `json:"thumbnailUrl"`
	VideoName    string `json:"videoName"`
	Description  string `json:"description"`
}
