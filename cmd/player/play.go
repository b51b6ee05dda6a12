package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"chunk-player/internal/metricstore"
	"chunk-player/internal/platform/logger"
	"chunk-player/internal/platform/metrics"
	"chunk-player/internal/player"
	"chunk-player/internal/session"
	"chunk-player/internal/transcoder"
)

const playlistName = "session.m3u8"

var playFlags struct {
	out         string
	tick        time.Duration
	speed       float64
	metricsAddr string
}

func init() {
	playCmd.Flags().StringVar(&playFlags.out, "out", ".", "directory for played chunks, the session playlist and the CSV export")
	playCmd.Flags().DurationVar(&playFlags.tick, "tick", 250*time.Millisecond, "playback progress interval")
	playCmd.Flags().Float64Var(&playFlags.speed, "speed", 1, "playback speed multiplier")
	playCmd.Flags().StringVar(&playFlags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address during playback (e.g. :9090)")
	rootCmd.AddCommand(playCmd)
}

var playCmd = &cobra.Command{
	Use:   "play <video-id>",
	Short: "Play a video from the transcoding service and record chunk telemetry",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlay,
}

func runPlay(cmd *cobra.Command, args []string) error {
	s := loadSettings()
	log := s.logger()
	videoID := args[0]

	if err := os.MkdirAll(playFlags.out, 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := openRecords(s, videoID, log)
	if store != nil {
		defer store.Close()
	}

	identity := session.NewIdentity(videoID)
	facts := session.Facts{
		ScreenResolution: s.ScreenResolution,
		WindowResolution: s.WindowResolution,
		VP9:              s.VP9,
		Bandwidth:        s.Bandwidth,
	}
	source := session.NewSource(identity, facts.Snapshot(version))
	client := transcoder.New(s.TranscoderURL, log, transcoder.WithTimeout(s.RequestTimeout))

	var prober session.Prober = &session.RateProber{Client: client.HTTPClient(), URL: s.ProbeURL}
	if s.Bandwidth != "" {
		prober = session.StaticProber(s.Bandwidth)
	}

	var met *metrics.Metrics
	if playFlags.metricsAddr != "" {
		met = metrics.New()
	}

	sink := &chunkSink{dir: playFlags.out, log: log}
	opts := player.Options{
		Threshold: s.Threshold,
		OnSplice:  sink.write,
		Logger:    log,
		Metrics:   met,
	}
	if store != nil {
		opts.Records = store
	}
	orch := player.New(identity, client, source, opts)

	log.Info("play starting",
		slog.String("video_id", videoID),
		slog.String("session_id", identity.SessionID),
		slog.String("transcoder_url", s.TranscoderURL),
		slog.Float64("fetch_threshold", s.Threshold))

	g, gctx := errgroup.WithContext(ctx)
	// sideCtx ends the refresher and the metrics server once playback is over.
	sideCtx, stopSide := context.WithCancel(gctx)
	g.Go(func() error {
		return session.NewRefresher(source, prober, s.RefreshInterval, nil, log).Run(sideCtx)
	})
	if met != nil {
		srv := &http.Server{
			Addr:              playFlags.metricsAddr,
			Handler:           metricsRouter(met, log),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrap(err, "metrics server")
			}
			return nil
		})
		g.Go(func() error {
			<-sideCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		log.Info("metrics server starting", slog.String("addr", playFlags.metricsAddr))
	}
	g.Go(func() error {
		defer stopSide()
		defer orch.Close()
		if err := orch.Start(gctx); err != nil {
			return err
		}
		return orch.Run(gctx, playbackTicks(gctx, clock.New(), playFlags.tick, playFlags.speed))
	})
	playErr := g.Wait()

	if store != nil {
		if path, err := store.SaveCSV(videoID, playFlags.out); err != nil {
			log.Warn("csv export failed", slog.String("error", err.Error()))
		} else {
			log.Info("csv export written", slog.String("path", path))
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d chunks, state %s\n", videoID, len(sink.chunks), orch.State())
	if errors.Is(playErr, context.Canceled) {
		return nil
	}
	return playErr
}

// openRecords opens the metric store for videoID. Playback continues
// without telemetry when the store is unavailable.
func openRecords(s settings, videoID string, log *slog.Logger) *metricstore.Store {
	store, err := metricstore.Open(s.DBPath,
		metricstore.WithLogger(log),
		metricstore.WithMaxUpgrades(s.MaxUpgrades))
	if err == nil {
		if err = store.OpenNamespace(videoID); err != nil {
			store.Close()
		}
	}
	if err != nil {
		log.Warn("metric store unavailable, playing without telemetry",
			slog.String("path", s.DBPath),
			slog.String("error", err.Error()))
		return nil
	}
	log.Info("metric store open",
		slog.String("path", store.Path()),
		slog.Uint64("schema_version", store.Version()))
	return store
}

// metricsRouter serves the player's Prometheus registry during playback.
func metricsRouter(met *metrics.Metrics, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Method(http.MethodGet, "/metrics", met.Handler(nil))
	return r
}

// playbackTicks emits the playback time elapsed per interval until ctx ends.
func playbackTicks(ctx context.Context, clk clock.Clock, interval time.Duration, speed float64) <-chan time.Duration {
	if speed <= 0 {
		speed = 1
	}
	step := time.Duration(float64(interval) * speed)
	ch := make(chan time.Duration)
	go func() {
		ticker := clk.Ticker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			select {
			case ch <- step:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// chunkSink saves each spliced chunk and rewrites the session playlist.
type chunkSink struct {
	dir    string
	log    *slog.Logger
	chunks []player.Chunk
}

func (s *chunkSink) write(c player.Chunk) {
	path := filepath.Join(s.dir, player.ChunkFileName(c))
	if err := os.WriteFile(path, c.Content, 0o644); err != nil {
		s.log.Error("write chunk failed", slog.String("path", path), slog.String("error", err.Error()))
		return
	}
	c.Content = nil
	s.chunks = append(s.chunks, c)

	playlist := player.BuildSessionPlaylist(s.chunks, c.EOF)
	if err := os.WriteFile(filepath.Join(s.dir, playlistName), []byte(playlist), 0o644); err != nil {
		s.log.Error("write playlist failed", slog.String("error", err.Error()))
	}
}
