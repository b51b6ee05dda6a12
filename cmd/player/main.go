package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"chunk-player/internal/platform/config"
	"chunk-player/internal/platform/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type settings struct {
	TranscoderURL    string
	ProbeURL         string
	DBPath           string
	Threshold        float64
	MaxUpgrades      int
	RefreshInterval  time.Duration
	RequestTimeout   time.Duration
	Bandwidth        string
	ScreenResolution string
	WindowResolution string
	VP9              bool
	Port             string
	LogLevel         string
	LogFormat        string
}

func loadSettings() settings {
	_ = config.Load()

	s := settings{
		TranscoderURL:    strings.TrimRight(config.GetEnv("TRANSCODER_URL", "http://localhost:8000"), "/"),
		DBPath:           config.GetEnv("PLAYER_DB_PATH", "player.db"),
		Threshold:        config.GetEnvFloat("PLAYER_FETCH_THRESHOLD", 0.1),
		MaxUpgrades:      config.GetEnvInt("PLAYER_MAX_SCHEMA_UPGRADES", 16),
		RefreshInterval:  config.GetEnvDuration("PLAYER_REFRESH_INTERVAL", 5*time.Second),
		RequestTimeout:   config.GetEnvDuration("PLAYER_REQUEST_TIMEOUT", 2*time.Minute),
		Bandwidth:        config.GetEnv("PLAYER_BANDWIDTH", ""),
		ScreenResolution: config.GetEnv("PLAYER_SCREEN_RESOLUTION", "1920x1080"),
		WindowResolution: config.GetEnv("PLAYER_WINDOW_RESOLUTION", "1280x720"),
		VP9:              config.GetEnvBool("PLAYER_VP9", true),
		Port:             config.GetEnv("PORT", "8080"),
		LogLevel:         config.GetEnv("LOG_LEVEL", "info"),
		LogFormat:        config.GetEnv("LOG_FORMAT", "json"),
	}
	s.ProbeURL = config.GetEnv("PLAYER_PROBE_URL", s.TranscoderURL+"/api/get-thumbnails")
	return s
}

func (s settings) logger() *slog.Logger {
	return logger.New(s.LogLevel, s.LogFormat)
}

var rootCmd = &cobra.Command{
	Use:           "player",
	Short:         "player streams live-transcoded video chunks and records per-chunk telemetry",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
