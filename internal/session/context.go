package session

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// Device type codes reported in ClientContext.DeviceType.
const (
	DeviceDesktop = 101
	DeviceMobile  = 110
	DeviceTablet  = 111
)

// Playback environments.
const (
	EnvironmentDirect   = "Direct"
	EnvironmentEmbedded = "Embedded"
)

// BandwidthUnknown is reported when no bandwidth class could be determined.
const BandwidthUnknown = "Unknown"

// ClientContext describes the device, bandwidth and codec capabilities of the
// player. The field names are part of the request payload and the stored
// metric records.
type ClientContext struct {
	DeviceType            int    `json:"deviceType"`
	ScreenResolution      string `json:"screenResolution"`
	WindowResolution      string `json:"windowResolution"`
	BrowserInfo           string `json:"browserInfo"`
	Bandwidth             string `json:"bandwidth"`
	ConnectionSpeed       string `json:"connectionSpeed"`
	PlaybackEnvironment   string `json:"playbackEnvironment"`
	DeviceProcessingPower int    `json:"deviceProcessingPower"`
	CodecSupport          int    `json:"codecSupport"`
}

// Facts are the static inputs of a ClientContext, normally taken from config.
type Facts struct {
	DeviceType       int
	ScreenResolution string
	WindowResolution string
	Embedded         bool
	VP9              bool
	Bandwidth        string
}

// BrowserInfo identifies this player in the browserInfo field.
func BrowserInfo(version string) string {
	return fmt.Sprintf("chunk-player/%s (%s; %s)", version, runtime.GOOS, runtime.GOARCH)
}

// Snapshot builds a ClientContext from facts and the host.
func (f Facts) Snapshot(version string) ClientContext {
	env := EnvironmentDirect
	if f.Embedded {
		env = EnvironmentEmbedded
	}
	codec := 0
	if f.VP9 {
		codec = 1
	}
	bw := f.Bandwidth
	if bw == "" {
		bw = BandwidthUnknown
	}
	dt := f.DeviceType
	if dt == 0 {
		dt = DeviceDesktop
	}
	return ClientContext{
		DeviceType:            dt,
		ScreenResolution:      f.ScreenResolution,
		WindowResolution:      f.WindowResolution,
		BrowserInfo:           BrowserInfo(version),
		Bandwidth:             bw,
		ConnectionSpeed:       bw,
		PlaybackEnvironment:   env,
		DeviceProcessingPower: runtime.NumCPU(),
		CodecSupport:          codec,
	}
}

// Prober reports the current bandwidth class ("4g", "slow-2g", ...).
type Prober interface {
	Probe(ctx context.Context) (string, error)
}

// Source holds the session's ClientContext snapshot. It is captured once per
// session and replaced only by Refresh and Resize.
type Source struct {
	mu       sync.RWMutex
	identity Identity
	snapshot ClientContext
}

// NewSource caches initial as the context for identity's session.
func NewSource(identity Identity, initial ClientContext) *Source {
	return &Source{identity: identity, snapshot: initial}
}

// Identity returns the session the snapshot belongs to.
func (s *Source) Identity() Identity {
	return s.identity
}

// Snapshot returns a copy of the current context.
func (s *Source) Snapshot() ClientContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// SetBandwidth updates the bandwidth class. It reports whether it changed.
func (s *Source) SetBandwidth(bw string) bool {
	if bw == "" {
		bw = BandwidthUnknown
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot.Bandwidth == bw {
		return false
	}
	s.snapshot.Bandwidth = bw
	s.snapshot.ConnectionSpeed = bw
	return true
}

// Resize records a new window resolution.
func (s *Source) Resize(windowResolution string) {
	s.mu.Lock()
	s.snapshot.WindowResolution = windowResolution
	s.mu.Unlock()
}
