// Package app assembles the server process from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	server "platform-fighter/server"
	"platform-fighter/server/internal/config"
	"platform-fighter/server/internal/identity"
	"platform-fighter/server/internal/matchstats"
	servernet "platform-fighter/server/internal/net"
	"platform-fighter/server/internal/net/ws"
	"platform-fighter/server/internal/telemetry"
	"platform-fighter/server/internal/world"
	"platform-fighter/server/logging"
	loggingSinks "platform-fighter/server/logging/sinks"
)

// Run serves until ctx ends, then shuts every component down in reverse
// order of construction.
func Run(ctx context.Context, cfg config.Config, logger telemetry.Logger) error {
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}

	router, err := newLogRouter(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer closeWithin(cfg.ShutdownTimeout, "logging router", logger, router.Close)

	layout, err := world.LoadLayout(cfg.LayoutFile)
	if err != nil {
		return err
	}
	tuning := world.DefaultTuning()
	tuning.TickRate = cfg.TickRate

	metrics := telemetry.NewCounters()

	var recorder matchstats.Recorder = matchstats.LogRecorder{Logger: logger}
	if cfg.StatsURL != "" {
		recorder = matchstats.NewHTTPRecorder(cfg.StatsURL)
	}
	stats := matchstats.NewDispatcher(matchstats.Config{
		Recorder:  recorder,
		Buffer:    cfg.StatsBuffer,
		Publisher: router,
		Metrics:   metrics,
		Logger:    logger,
	})
	defer closeWithin(cfg.ShutdownTimeout, "stats dispatcher", logger, stats.Close)

	ids := &identity.Service{AllowGuests: cfg.AllowGuests}
	if cfg.IdentityURL != "" {
		ids.Verifier = identity.NewHTTPVerifier(cfg.IdentityURL)
	}

	hub := server.NewHub(server.HubConfig{
		Tuning:    tuning,
		Layout:    layout,
		Rooms:     cfg.Rooms,
		Publisher: router,
		Metrics:   metrics,
		Logger:    logger,
		Results:   stats,
	})
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	go hub.Run(loopCtx)
	if err := hub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start simulation: %w", err)
	}
	defer closeWithin(cfg.ShutdownTimeout, "hub", logger, hub.Stop)

	handler := servernet.NewHTTPHandler(hub, servernet.HTTPHandlerConfig{
		ClientDir: cfg.ClientDir,
		Logger:    logger,
		Sessions:  http.HandlerFunc(ws.NewHandler(hub, ws.HandlerConfig{Logger: logger, Identity: ids}).Handle),
		Pprof:     cfg.Pprof,
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	logger.Printf("server listening on %s (tick rate %d)", srv.Addr, tuning.TickRate)

	failed := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			failed <- err
		}
		close(failed)
	}()

	select {
	case err := <-failed:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func newLogRouter(cfg logging.Config) (*logging.Router, error) {
	var sinks []logging.NamedSink
	if cfg.HasSink("console") {
		sinks = append(sinks, logging.NamedSink{Name: "console", Sink: loggingSinks.NewConsoleSink(os.Stdout)})
	}
	if cfg.HasSink("json") {
		sink, err := loggingSinks.OpenJSONFile(cfg.JSON.FilePath, cfg.JSON.FlushInterval)
		if err != nil {
			return nil, fmt.Errorf("open json sink: %w", err)
		}
		sinks = append(sinks, logging.NamedSink{Name: "json", Sink: sink})
	}
	return logging.NewRouter(logging.ClockFunc(time.Now), cfg, sinks)
}

func closeWithin(timeout time.Duration, name string, logger telemetry.Logger, closeFn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := closeFn(ctx); err != nil {
		logger.Printf("failed to close %s: %v", name, err)
	}
}
