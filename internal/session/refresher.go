package session

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// DefaultRefreshInterval is how often the bandwidth class is re-probed.
const DefaultRefreshInterval = 5 * time.Second

// slowThreshold separates "slow-2g" from "4g", in bytes per second.
const slowThreshold = 500000

// StaticProber always reports the same bandwidth class.
type StaticProber string

// Probe implements Prober.
func (p StaticProber) Probe(context.Context) (string, error) {
	return string(p), nil
}

// RateProber downloads a small asset and classifies the observed rate.
type RateProber struct {
	Client *http.Client
	URL    string
	Clock  clock.Clock
}

// Probe implements Prober.
func (p *RateProber) Probe(ctx context.Context) (string, error) {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return BandwidthUnknown, errors.Wrap(err, "build probe request")
	}

	start := clk.Now()
	resp, err := p.Client.Do(req)
	if err != nil {
		return BandwidthUnknown, errors.Wrap(err, "probe")
	}
	defer resp.Body.Close()
	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return BandwidthUnknown, errors.Wrap(err, "read probe body")
	}

	return Classify(n, clk.Since(start)), nil
}

// Classify maps a transfer of n bytes in d to a bandwidth class.
func Classify(n int64, d time.Duration) string {
	if d <= 0 {
		return "4g"
	}
	if float64(n)/d.Seconds() < slowThreshold {
		return "slow-2g"
	}
	return "4g"
}

// Refresher periodically re-probes bandwidth and updates a Source.
type Refresher struct {
	source   *Source
	prober   Prober
	interval time.Duration
	clock    clock.Clock
	log      *slog.Logger
}

// NewRefresher returns a Refresher. A non-positive interval selects
// DefaultRefreshInterval; a nil clock selects the wall clock.
func NewRefresher(source *Source, prober Prober, interval time.Duration, clk clock.Clock, log *slog.Logger) *Refresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Refresher{source: source, prober: prober, interval: interval, clock: clk, log: log}
}

// Refresh probes once and applies the result.
func (r *Refresher) Refresh(ctx context.Context) {
	bw, err := r.prober.Probe(ctx)
	if err != nil {
		r.log.Warn("bandwidth probe failed", slog.String("error", err.Error()))
		bw = BandwidthUnknown
	}
	if r.source.SetBandwidth(bw) {
		r.log.Info("bandwidth changed",
			slog.String("session_id", r.source.Identity().SessionID),
			slog.String("bandwidth", bw))
	}
}

// Run refreshes every interval until ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := r.clock.Ticker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Refresh(ctx)
		}
	}
}
