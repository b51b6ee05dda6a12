package metricstore

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"

	"chunk-player/internal/session"
)

// CSVColumns is the export header. Downstream analysis depends on the order.
var CSVColumns = []string{
	"time", "guid", "sessionID", "bandwidth",
	"startTimestamp", "debugDuration", "debugResolution", "debugVideoCodec", "debugBitrateString", "debugAudioCodec",
	"codecSupport", "connectionSpeed", "deviceProcessingPower", "deviceType", "fetchDuration", "fetchFromDbDuration",
	"playbackEnvironment", "screenResolution", "transcodingDuration", "windowResolution", "bytesUsed",
}

// CSVFileName is the name SaveCSV gives the export of videoID.
func CSVFileName(videoID string) string {
	return videoID + "_metrics.csv"
}

// ExportCSV writes the records of videoID as CSV, header first, rows in
// insertion order.
func (s *Store) ExportCSV(videoID string, w io.Writer) error {
	records, err := s.GetAll(videoID)
	if err != nil {
		return err
	}
	return WriteCSV(w, records)
}

// SaveCSV writes the export of videoID to dir and returns the file path.
func (s *Store) SaveCSV(videoID, dir string) (string, error) {
	records, err := s.GetAll(videoID)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, CSVFileName(videoID))
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, "create export file")
	}
	if err := WriteCSV(f, records); err != nil {
		f.Close()
		return "", err
	}
	return path, errors.Wrap(f.Close(), "close export file")
}

// WriteCSV serializes records. Id-derived columns are empty for ids that
// do not parse.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVColumns); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for _, rec := range records {
		if err := cw.Write(csvRow(rec)); err != nil {
			return errors.Wrapf(err, "write csv row %q", rec.ID)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

func csvRow(rec Record) []string {
	var id session.CorrelationID
	if parsed, err := session.ParseCorrelationID(rec.ID); err == nil {
		id = parsed
	}
	idTime := ""
	if !id.IsZero() {
		idTime = id.TimeKey()
	}
	tr := ParseTrace(rec.FFmpegCommand)

	return []string{
		idTime,
		id.VideoID,
		id.SessionID,
		id.Bandwidth,
		tr.StartTimestamp,
		tr.Duration,
		tr.Resolution,
		tr.VideoCodec,
		tr.Bitrate,
		tr.AudioCodec,
		strconv.Itoa(rec.CodecSupport),
		rec.ConnectionSpeed,
		strconv.Itoa(rec.DeviceProcessingPower),
		strconv.Itoa(rec.DeviceType),
		strconv.FormatInt(rec.FetchDuration, 10),
		strconv.FormatFloat(rec.FetchFromDbDuration, 'f', -1, 64),
		rec.PlaybackEnvironment,
		rec.ScreenResolution,
		rec.TranscodingDuration,
		rec.WindowResolution,
		strconv.FormatInt(rec.BytesUsed, 10),
	}
}
