package metricstore

import (
	"strings"

	"github.com/google/shlex"
)

// Trace holds the encode parameters recovered from an ffmpeg command line.
type Trace struct {
	StartTimestamp string
	Duration       string
	Resolution     string
	VideoCodec     string
	Bitrate        string
	AudioCodec     string
}

// ParseTrace extracts the parameters following -ss, -t, -vf, -c:v, -b:v and
// -c:a. For -vf only the part after the first '=' is kept ("scale=1280:720"
// yields "1280:720"). Unknown or missing flags leave fields empty.
func ParseTrace(command string) Trace {
	args, err := shlex.Split(command)
	if err != nil {
		args = strings.Fields(command)
	}

	var t Trace
	for i := 0; i+1 < len(args); i++ {
		val := args[i+1]
		switch args[i] {
		case "-ss":
			t.StartTimestamp = val
		case "-t":
			t.Duration = val
		case "-vf":
			if _, after, ok := strings.Cut(val, "="); ok {
				t.Resolution = after
			} else {
				t.Resolution = val
			}
		case "-c:v":
			t.VideoCodec = val
		case "-b:v":
			t.Bitrate = val
		case "-c:a":
			t.AudioCodec = val
		default:
			continue
		}
		i++
	}
	return t
}
