// Package server hosts the Hub: the single simulation context that owns the
// participant table, the room registry, client connections and the tick.
package server

import (
	"context"
	"errors"
	"log"
	"time"

	"platform-fighter/server/internal/combat"
	"platform-fighter/server/internal/events"
	"platform-fighter/server/internal/identity"
	"platform-fighter/server/internal/lifecycle"
	"platform-fighter/server/internal/movement"
	"platform-fighter/server/internal/net/intake"
	"platform-fighter/server/internal/net/proto"
	"platform-fighter/server/internal/rooms"
	"platform-fighter/server/internal/sim"
	"platform-fighter/server/internal/state"
	"platform-fighter/server/internal/telemetry"
	"platform-fighter/server/internal/world"
	"platform-fighter/server/logging"
	lognetwork "platform-fighter/server/logging/network"
)

// ErrUnknownPlayer is returned for calls on behalf of a player with no
// live connection.
var ErrUnknownPlayer = errors.New("server: unknown player")

const (
	metricConnections   = "connections_opened_total"
	metricDisconnects   = "connections_closed_total"
	metricFramesDropped = "frames_dropped_total"
	metricTicks         = "ticks_total"
	metricOverruns      = "tick_overruns_total"
)

// Conn is the outbound half of a client session. Send must not block; it
// reports false once the session can no longer take frames.
type Conn interface {
	ID() string
	Codec() proto.Codec
	Send(data []byte) bool
	Close()
}

// HubConfig wires a Hub. Zero values fall back to defaults.
type HubConfig struct {
	Tuning world.Tuning
	Layout world.Layout
	Rooms  rooms.Settings
	// Runtime is the single-writer scheduler. When nil the hub creates and
	// owns a sim.Loop, started by Run.
	Runtime   sim.Runtime
	Publisher logging.Publisher
	Metrics   *telemetry.Counters
	Logger    telemetry.Logger
	Results   lifecycle.ResultRecorder
}

// DefaultHubConfig returns the stock tuning, layout and room settings.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		Tuning: world.DefaultTuning(),
		Layout: world.DefaultLayout(),
		Rooms:  rooms.DefaultSettings(),
	}
}

// Hub is the simulation context. Everything below the public methods runs
// on the runtime's goroutine.
type Hub struct {
	tuning    world.Tuning
	rt        sim.Runtime
	loop      *sim.Loop
	publisher logging.Publisher
	metrics   *telemetry.Counters
	logger    telemetry.Logger

	store     *state.Store
	movement  *movement.Engine
	combat    *combat.Resolver
	lifecycle *lifecycle.Manager
	registry  *rooms.Registry
	gateway   *intake.Gateway

	conns   map[string]Conn
	ticker  *sim.Ticker
	tick    uint64
	started time.Time
}

// NewHub builds the simulation context. Call Run (when the hub owns its
// loop) and Start to begin ticking.
func NewHub(cfg HubConfig) *Hub {
	tuning := cfg.Tuning
	if tuning.TickRate <= 0 {
		tuning = world.DefaultTuning()
	}
	layout := cfg.Layout
	if len(layout.Platforms) == 0 {
		layout = world.DefaultLayout()
	}
	settings := cfg.Rooms
	if settings == (rooms.Settings{}) {
		settings = rooms.DefaultSettings()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NewCounters()
	}

	h := &Hub{
		tuning:    tuning,
		publisher: logging.OrNop(cfg.Publisher),
		metrics:   metrics,
		logger:    logger,
		store:     state.NewStore(),
		conns:     make(map[string]Conn),
	}
	h.rt = cfg.Runtime
	if h.rt == nil {
		h.loop = sim.NewLoop(sim.LoopConfig{Logger: logger, Metrics: metrics})
		h.rt = h.loop
	}
	sink := events.SinkFunc(h.deliver)

	h.movement = movement.NewEngine(movement.Config{
		Tuning:    tuning,
		Layout:    layout,
		Scheduler: h.rt,
		Events:    sink,
		Publisher: h.publisher,
		Metrics:   metrics,
	})
	h.combat = combat.NewResolver(combat.Config{
		Tuning:    tuning,
		Scheduler: h.rt,
		Movement:  h.movement,
		Events:    sink,
		Publisher: h.publisher,
		Metrics:   metrics,
	})
	h.lifecycle = lifecycle.NewManager(lifecycle.Config{
		Tuning:    tuning,
		Layout:    layout,
		Scheduler: h.rt,
		Store:     h.store,
		Movement:  h.movement,
		Events:    sink,
		Publisher: h.publisher,
		Metrics:   metrics,
		Results:   cfg.Results,
		RNG:       world.NewDeterministicRNG(world.DefaultSeed, "respawn"),
	})
	h.registry = rooms.NewRegistry(rooms.Config{
		Settings:  settings,
		Tuning:    tuning,
		Layout:    layout,
		Scheduler: h.rt,
		Store:     h.store,
		Lifecycle: h.lifecycle,
		Events:    sink,
		Publisher: h.publisher,
		Metrics:   metrics,
		Logger:    logger,
	})
	h.gateway = &intake.Gateway{
		Publisher: h.publisher,
		Metrics:   metrics,
		Tick:      func() uint64 { return h.tick },
	}
	return h
}

// Run drives the hub's own loop until ctx ends. It is a no-op when the hub
// was given an external runtime.
func (h *Hub) Run(ctx context.Context) {
	if h.loop == nil {
		return
	}
	h.loop.Run(ctx)
}

// Start arms the tick and the cleanup sweep.
func (h *Hub) Start(ctx context.Context) error {
	return h.rt.Do(ctx, func() {
		if h.ticker != nil {
			return
		}
		h.started = h.rt.Now()
		h.ticker = sim.NewTicker(h.rt, sim.TickerConfig{
			Span:      time.Second,
			Count:     h.tuning.TickRate,
			OnOverrun: h.overrun,
		}, h.step)
		h.registry.StartSweeper()
	})
}

// Stop cancels the tick and the sweep, then closes every connection.
func (h *Hub) Stop(ctx context.Context) error {
	return h.rt.Do(ctx, func() {
		h.ticker.Stop()
		h.ticker = nil
		h.registry.StopSweeper()
		for id, conn := range h.conns {
			conn.Close()
			delete(h.conns, id)
		}
	})
}

// TickRate is the configured simulation rate.
func (h *Hub) TickRate() int {
	return h.tuning.TickRate
}

// Connect binds a verified identity to conn. An older session for the same
// identity is treated as dropped first.
func (h *Hub) Connect(ctx context.Context, id identity.Identity, conn Conn) error {
	return h.rt.Do(ctx, func() {
		if old, ok := h.conns[id.ID]; ok {
			h.drop(id.ID, old, "replaced")
			old.Close()
		}
		p := state.NewParticipant(id.ID, id.DisplayName, h.tuning)
		p.Guest = id.Guest
		h.store.Participants[id.ID] = p
		h.conns[id.ID] = conn
		h.metrics.Add(metricConnections, 1)
		lognetwork.ConnectionOpened(context.Background(), h.publisher, logging.PlayerRef(id.ID), lognetwork.ConnectionPayload{
			ConnectionID: conn.ID(),
			Codec:        conn.Codec().Name(),
			Guest:        id.Guest,
		}, nil)
		h.send(id.ID, conn, proto.NewWelcome(id.ID, id.DisplayName, id.Guest, h.tuning.TickRate, h.rt.Now().UnixMilli()))
	})
}

// Disconnect releases playerID if conn is still its current session.
func (h *Hub) Disconnect(ctx context.Context, playerID string, conn Conn, reason string) error {
	return h.rt.Do(ctx, func() {
		if current, ok := h.conns[playerID]; !ok || current != conn {
			return
		}
		h.drop(playerID, conn, reason)
	})
}

// drop runs the disconnect rules before the participant leaves the table so
// a grace snapshot can still be taken.
func (h *Hub) drop(playerID string, conn Conn, reason string) {
	graced := h.registry.Disconnect(playerID)
	delete(h.store.Participants, playerID)
	delete(h.conns, playerID)
	h.metrics.Add(metricDisconnects, 1)
	extra := map[string]any{"graced": graced}
	lognetwork.ConnectionClosed(context.Background(), h.publisher, logging.PlayerRef(playerID), lognetwork.ConnectionPayload{
		ConnectionID: conn.ID(),
		Codec:        conn.Codec().Name(),
		Reason:       reason,
	}, extra)
}

// Diagnostics is the operational snapshot served over HTTP.
type Diagnostics struct {
	TickRate     int               `json:"tickRate"`
	Tick         uint64            `json:"tick"`
	UptimeMillis int64             `json:"uptimeMillis"`
	Rooms        int               `json:"rooms"`
	Participants int               `json:"participants"`
	Connections  int               `json:"connections"`
	Bound        int               `json:"bound"`
	Counters     map[string]uint64 `json:"counters"`
}

// Diagnostics collects counts on the loop.
func (h *Hub) Diagnostics(ctx context.Context) (Diagnostics, error) {
	var out Diagnostics
	err := h.rt.Do(ctx, func() {
		out = Diagnostics{
			TickRate:     h.tuning.TickRate,
			Tick:         h.tick,
			Rooms:        len(h.store.Rooms),
			Participants: len(h.store.Participants),
			Connections:  len(h.conns),
			Bound:        h.store.Bound(),
		}
		if !h.started.IsZero() {
			out.UptimeMillis = h.rt.Now().Sub(h.started).Milliseconds()
		}
	})
	out.Counters = h.metrics.Snapshot()
	return out, err
}

// Rooms lists every active room.
func (h *Hub) Rooms(ctx context.Context) ([]rooms.RoomInfo, error) {
	var out []rooms.RoomInfo
	err := h.rt.Do(ctx, func() {
		out = h.registry.List()
	})
	return out, err
}

// Room describes one room by code.
func (h *Hub) Room(ctx context.Context, code string) (rooms.RoomInfo, error) {
	var (
		out    rooms.RoomInfo
		lookup error
	)
	err := h.rt.Do(ctx, func() {
		out, lookup = h.registry.Info(code)
	})
	if err != nil {
		return out, err
	}
	return out, lookup
}
