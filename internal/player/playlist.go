package player

import (
	"fmt"
	"math"
	"strings"
)

// ChunkFileName is the file name a played chunk is saved under.
func ChunkFileName(c Chunk) string {
	return fmt.Sprintf("chunk_%05d.webm", c.Sequence)
}

// BuildSessionPlaylist renders the chunks spliced so far (ordered by
// sequence) as an HLS playlist. If ended is true, #EXT-X-ENDLIST is
// appended. Chunks are referenced by ChunkFileName.
func BuildSessionPlaylist(chunks []Chunk, ended bool) string {
	var b strings.Builder

	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	b.WriteString("#EXT-X-PLAYLIST-TYPE:EVENT\n")

	if len(chunks) == 0 {
		b.WriteString("#EXT-X-TARGETDURATION:1\n")
		b.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")
		if ended {
			b.WriteString("#EXT-X-ENDLIST\n")
		}
		return b.String()
	}

	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", targetDuration(chunks))
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n\n", chunks[0].Sequence)

	for _, c := range chunks {
		fmt.Fprintf(&b, "#EXTINF:%.1f,\n", c.Duration)
		b.WriteString(ChunkFileName(c))
		b.WriteString("\n")
	}

	if ended {
		b.WriteString("#EXT-X-ENDLIST\n")
	}

	return b.String()
}

// targetDuration is the ceiling of the longest chunk duration, at least 1.
func targetDuration(chunks []Chunk) int {
	longest := 0.0
	for _, c := range chunks {
		longest = math.Max(longest, c.Duration)
	}
	if longest <= 0 {
		return 1
	}
	return int(math.Ceil(longest))
}
