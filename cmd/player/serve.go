package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"chunk-player/internal/metricstore"
	"chunk-player/internal/platform/metrics"
	"chunk-player/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored chunk telemetry as JSON, CSV and Prometheus metrics",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	s := loadSettings()
	log := s.logger()

	store, err := metricstore.Open(s.DBPath,
		metricstore.WithLogger(log),
		metricstore.WithMaxUpgrades(s.MaxUpgrades))
	if err != nil {
		return err
	}
	defer store.Close()

	met := metrics.New()
	h := telemetry.NewHandler(store, log, met)
	srv := &http.Server{
		Addr:              ":" + s.Port,
		Handler:           telemetry.NewRouter(h, log, met, nil),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	log.Info("server starting",
		"port", s.Port,
		"db_path", store.Path(),
		"log_level", s.LogLevel,
	)

	select {
	case err := <-errCh:
		return errors.Wrap(err, "server error")
	case <-ctx.Done():
	}

	log.Info("shutdown signal received, draining connections")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}

	log.Info("server stopped")
	return nil
}
