package net

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	nethttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"platform-fighter/server"
	"platform-fighter/server/internal/rooms"
	"platform-fighter/server/internal/telemetry"
)

// Directory is the read side of the hub served over HTTP.
type Directory interface {
	Diagnostics(ctx context.Context) (server.Diagnostics, error)
	Rooms(ctx context.Context) ([]rooms.RoomInfo, error)
	Room(ctx context.Context, code string) (rooms.RoomInfo, error)
}

type HTTPHandlerConfig struct {
	ClientDir string
	Logger    telemetry.Logger
	// Sessions serves the websocket upgrade at /ws.
	Sessions nethttp.Handler
	// Pprof mounts the runtime profiler under /debug.
	Pprof          bool
	RequestTimeout time.Duration
	Clock          func() time.Time
}

func NewHTTPHandler(hub Directory, cfg HTTPHandlerConfig) nethttp.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	if cfg.Sessions != nil {
		r.Handle("/ws", cfg.Sessions)
	}
	if cfg.Pprof {
		r.Mount("/debug", middleware.Profiler())
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(timeout))

		r.Get("/health", func(w nethttp.ResponseWriter, r *nethttp.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.Write([]byte("ok"))
		})

		r.Get("/diagnostics", func(w nethttp.ResponseWriter, r *nethttp.Request) {
			diag, err := hub.Diagnostics(r.Context())
			if err != nil {
				logger.Printf("[http] diagnostics failed: %v", err)
				httpError(w, "simulation unavailable", nethttp.StatusServiceUnavailable)
				return
			}
			writeJSON(w, logger, struct {
				Status      string             `json:"status"`
				ServerTime  int64              `json:"serverTime"`
				Diagnostics server.Diagnostics `json:"diagnostics"`
			}{
				Status:      "ok",
				ServerTime:  clock().UnixMilli(),
				Diagnostics: diag,
			})
		})

		r.Get("/rooms", func(w nethttp.ResponseWriter, r *nethttp.Request) {
			list, err := hub.Rooms(r.Context())
			if err != nil {
				logger.Printf("[http] room listing failed: %v", err)
				httpError(w, "simulation unavailable", nethttp.StatusServiceUnavailable)
				return
			}
			if list == nil {
				list = []rooms.RoomInfo{}
			}
			writeJSON(w, logger, struct {
				Rooms []rooms.RoomInfo `json:"rooms"`
			}{Rooms: list})
		})

		r.Get("/rooms/{code}", func(w nethttp.ResponseWriter, r *nethttp.Request) {
			info, err := hub.Room(r.Context(), chi.URLParam(r, "code"))
			switch {
			case errors.Is(err, rooms.ErrNotFound):
				httpError(w, err.Error(), nethttp.StatusNotFound)
			case errors.Is(err, rooms.ErrMalformedCode):
				httpError(w, err.Error(), nethttp.StatusBadRequest)
			case err != nil:
				logger.Printf("[http] room lookup failed: %v", err)
				httpError(w, "simulation unavailable", nethttp.StatusServiceUnavailable)
			default:
				writeJSON(w, logger, info)
			}
		})
	})

	if cfg.ClientDir != "" {
		fs := nethttp.FileServer(nethttp.Dir(cfg.ClientDir))
		r.Handle("/*", fs)
	}

	return r
}

func writeJSON(w nethttp.ResponseWriter, logger telemetry.Logger, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("[http] failed to encode response: %v", err)
		httpError(w, "failed to encode", nethttp.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func httpError(w nethttp.ResponseWriter, msg string, code int) {
	nethttp.Error(w, msg, code)
}
