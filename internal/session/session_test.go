package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chunk-player/internal/platform/logger"
)

func TestCorrelationID_String(t *testing.T) {
	id := NewCorrelationID(0, Identity{SessionID: "s1", VideoID: "v1"}, "4g")
	assert.Equal(t, "0.00_v1_s1_4g", id.String())
	assert.Equal(t, "0.00", id.TimeKey())

	id = NewCorrelationID(12.345, Identity{SessionID: "a_b", VideoID: "v1"}, "")
	assert.Equal(t, "12.35_v1_a-b_unknown", id.String())
}

func TestParseCorrelationID(t *testing.T) {
	t.Run("simple", func(t *testing.T) {
		id, err := ParseCorrelationID("0.00_v1_s1_4g")
		require.NoError(t, err)
		assert.Equal(t, CorrelationID{Time: 0, VideoID: "v1", SessionID: "s1", Bandwidth: "4g"}, id)
	})

	t.Run("video_id_with_separator", func(t *testing.T) {
		id, err := ParseCorrelationID("10.50_my_video_s1_slow-2g")
		require.NoError(t, err)
		assert.Equal(t, "my_video", id.VideoID)
		assert.Equal(t, "s1", id.SessionID)
		assert.Equal(t, "slow-2g", id.Bandwidth)
		assert.Equal(t, "10.50_my_video_s1_slow-2g", id.String())
	})

	for _, bad := range []string{"", "0.00", "0.00_v1", "0.00_v1_s1", "zero_v1_s1_4g"} {
		t.Run("malformed_"+bad, func(t *testing.T) {
			_, err := ParseCorrelationID(bad)
			assert.True(t, errors.Is(err, ErrMalformedID), "got %v", err)
		})
	}
}

func TestNewIdentity(t *testing.T) {
	a := NewIdentity("v1")
	b := NewIdentity("v1")
	assert.Equal(t, "v1", a.VideoID)
	assert.NotEmpty(t, a.SessionID)
	assert.NotEqual(t, a.SessionID, b.SessionID)
	assert.False(t, strings.Contains(a.SessionID, idSeparator))
}

func TestFacts_Snapshot(t *testing.T) {
	ctx := Facts{ScreenResolution: "1920x1080", WindowResolution: "1280x720", VP9: true}.Snapshot("test")
	assert.Equal(t, DeviceDesktop, ctx.DeviceType)
	assert.Equal(t, BandwidthUnknown, ctx.Bandwidth)
	assert.Equal(t, EnvironmentDirect, ctx.PlaybackEnvironment)
	assert.Equal(t, 1, ctx.CodecSupport)
	assert.Positive(t, ctx.DeviceProcessingPower)
	assert.Contains(t, ctx.BrowserInfo, "chunk-player/test")

	embedded := Facts{Embedded: true, Bandwidth: "4g", DeviceType: DeviceMobile}.Snapshot("test")
	assert.Equal(t, EnvironmentEmbedded, embedded.PlaybackEnvironment)
	assert.Equal(t, "4g", embedded.ConnectionSpeed)
	assert.Equal(t, DeviceMobile, embedded.DeviceType)
	assert.Equal(t, 0, embedded.CodecSupport)
}

func TestSource(t *testing.T) {
	src := NewSource(Identity{SessionID: "s1", VideoID: "v1"}, ClientContext{Bandwidth: "4g", WindowResolution: "800x600"})

	assert.False(t, src.SetBandwidth("4g"))
	assert.True(t, src.SetBandwidth("slow-2g"))
	assert.Equal(t, "slow-2g", src.Snapshot().Bandwidth)

	src.Resize("1024x768")
	assert.Equal(t, "1024x768", src.Snapshot().WindowResolution)

	snap := src.Snapshot()
	snap.Bandwidth = "mutated"
	assert.Equal(t, "slow-2g", src.Snapshot().Bandwidth, "snapshot must be a copy")
}

func TestClassify(t *testing.T) {
	assert.Equal(t, "slow-2g", Classify(100000, time.Second))
	assert.Equal(t, "4g", Classify(1000000, time.Second))
	assert.Equal(t, "4g", Classify(10, 0))
}

func TestRateProber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 1024))
	}))
	defer srv.Close()

	mock := clock.NewMock()
	p := &RateProber{Client: srv.Client(), URL: srv.URL, Clock: mock}
	bw, err := p.Probe(context.Background())
	require.NoError(t, err)
	// The mock clock does not advance, so the transfer looks instantaneous.
	assert.Equal(t, "4g", bw)
}

type countingProber struct {
	calls atomic.Int32
	bw    string
}

func (p *countingProber) Probe(context.Context) (string, error) {
	p.calls.Add(1)
	return p.bw, nil
}

type failingProber struct{}

func (failingProber) Probe(context.Context) (string, error) {
	return "", errors.New("offline")
}

func TestRefresher_Refresh(t *testing.T) {
	src := NewSource(Identity{SessionID: "s1", VideoID: "v1"}, ClientContext{Bandwidth: "4g"})

	NewRefresher(src, StaticProber("slow-2g"), 0, nil, logger.Discard()).Refresh(context.Background())
	assert.Equal(t, "slow-2g", src.Snapshot().Bandwidth)

	NewRefresher(src, failingProber{}, 0, nil, logger.Discard()).Refresh(context.Background())
	assert.Equal(t, BandwidthUnknown, src.Snapshot().Bandwidth)
}

func TestRefresher_Run(t *testing.T) {
	src := NewSource(Identity{SessionID: "s1", VideoID: "v1"}, ClientContext{Bandwidth: "4g"})
	prober := &countingProber{bw: "slow-2g"}
	mock := clock.NewMock()
	r := NewRefresher(src, prober, time.Second, mock, logger.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	assert.Eventually(t, func() bool {
		mock.Add(time.Second)
		return src.Snapshot().Bandwidth == "slow-2g"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Positive(t, prober.calls.Load())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("refresher did not stop after cancellation")
	}
}
