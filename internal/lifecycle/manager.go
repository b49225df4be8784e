// Package lifecycle owns death, respawn, elimination and match end.
package lifecycle

import (
	"context"
	"math/rand"
	"time"

	"platform-fighter/server/internal/combat"
	"platform-fighter/server/internal/events"
	"platform-fighter/server/internal/movement"
	"platform-fighter/server/internal/sim"
	"platform-fighter/server/internal/state"
	"platform-fighter/server/internal/telemetry"
	"platform-fighter/server/internal/world"
	"platform-fighter/server/logging"
	loglifecycle "platform-fighter/server/logging/lifecycle"
)

// Death causes.
const (
	CauseBoundary = "boundary"
	CauseDamage   = "damage"
	CauseForfeit  = "forfeit"
)

const (
	metricDeaths       = "lifecycle_deaths_total"
	metricRespawns     = "lifecycle_respawns_total"
	metricEliminations = "lifecycle_eliminations_total"
	metricMatches      = "lifecycle_matches_ended_total"
)

// ResultRecorder receives finished match results. Submit must not block
// the loop.
type ResultRecorder interface {
	Submit(room string, results []state.ResultEntry)
}

// Config wires the manager.
type Config struct {
	Tuning    world.Tuning
	Layout    world.Layout
	Scheduler sim.Scheduler
	Store     *state.Store
	Movement  *movement.Engine
	Events    events.Sink
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	Results   ResultRecorder
	// RNG picks respawn platforms. Defaults to a deterministic source.
	RNG *rand.Rand
}

// Manager runs on the loop goroutine.
type Manager struct {
	tuning    world.Tuning
	layout    world.Layout
	sched     sim.Scheduler
	store     *state.Store
	movement  *movement.Engine
	events    events.Sink
	publisher logging.Publisher
	metrics   telemetry.Metrics
	results   ResultRecorder
	rng       *rand.Rand
}

func NewManager(cfg Config) *Manager {
	sink := cfg.Events
	if sink == nil {
		sink = events.Discard
	}
	rng := cfg.RNG
	if rng == nil {
		rng = world.NewDeterministicRNG(world.DefaultSeed, "respawn")
	}
	layout := cfg.Layout
	if len(layout.Platforms) == 0 {
		layout = world.DefaultLayout()
	}
	store := cfg.Store
	if store == nil {
		store = state.NewStore()
	}
	return &Manager{
		tuning:    cfg.Tuning,
		layout:    layout,
		sched:     cfg.Scheduler,
		store:     store,
		movement:  cfg.Movement,
		events:    sink,
		publisher: logging.OrNop(cfg.Publisher),
		metrics:   telemetry.OrNop(cfg.Metrics),
		results:   cfg.Results,
		rng:       rng,
	}
}

// TriggerDeath is the single death entry point. It fires at most once per
// life: a participant that is already dead or eliminated is left alone and
// false is returned.
func (m *Manager) TriggerDeath(room *state.Room, p *state.Participant, cause string, now time.Time) bool {
	if p == nil || p.IsDead || p.Eliminated {
		return false
	}
	if p.Lives > 0 {
		p.Lives--
	}
	p.Deaths++
	p.IsDead = true
	p.DiedAt = now
	p.Health = 0
	p.Grounded = false
	p.StandingPlatformID = ""
	p.DroppingFromPlatformID = ""
	p.VX, p.VY = 0, 0
	p.Shielding = false
	p.IsInvincible = false
	p.Input.ClearActions()
	combat.CancelAttacks(p)
	if m.movement != nil {
		m.movement.InterruptDash(room, p, movement.InterruptDeath)
	} else {
		movement.EndDash(p)
	}

	killerID := m.creditKill(room, p, now)
	m.metrics.Add(metricDeaths, 1)
	m.emit(room, events.KindPlayerDeath, events.DeathPayload{
		PlayerID:       p.ID,
		KillerID:       killerID,
		Cause:          cause,
		LivesRemaining: p.Lives,
	})
	loglifecycle.PlayerDeath(context.Background(), m.publisher, tickOf(room), codeOf(room), logging.PlayerRef(p.ID), loglifecycle.DeathPayload{
		Cause:          cause,
		LivesRemaining: p.Lives,
		KillerID:       killerID,
	}, nil)
	p.LastAttackerID = ""
	p.LastAttackedAt = time.Time{}

	if p.Lives > 0 {
		m.scheduleRespawn(room, p, now)
		return true
	}

	p.Eliminated = true
	p.RespawnAt = time.Time{}
	sim.StopTimer(&p.Timers.Respawn)
	m.metrics.Add(metricEliminations, 1)
	m.emit(room, events.KindPlayerEliminated, events.PlayerPayload{PlayerID: p.ID})
	loglifecycle.PlayerEliminated(context.Background(), m.publisher, tickOf(room), codeOf(room), logging.PlayerRef(p.ID), nil)
	m.EvaluateMatchEnd(room, now)
	return true
}

// creditKill awards the kill to the last attacker when the attribution
// window is still open and the attacker has not been eliminated. An attacker
// who dropped or left mid match is credited on the state the room kept for
// them, so a rejoin and the final ranking both see the kill.
func (m *Manager) creditKill(room *state.Room, p *state.Participant, now time.Time) string {
	if p.LastAttackerID == "" || p.LastAttackerID == p.ID || p.LastAttackedAt.IsZero() {
		return ""
	}
	if now.Sub(p.LastAttackedAt) > m.tuning.AttributionFor {
		return ""
	}
	killer := m.attacker(room, p.LastAttackerID)
	if killer == nil || killer.Eliminated {
		return ""
	}
	killer.Kills++
	return killer.ID
}

// attacker finds the state that carries id's score in room: the live
// participant for a member, the parked snapshot during a grace period, or
// the forfeited copy after leaving.
func (m *Manager) attacker(room *state.Room, id string) *state.Participant {
	if room == nil {
		p, _ := m.store.Participant(id)
		return p
	}
	if room.HasMember(id) {
		p, _ := m.store.Participant(id)
		return p
	}
	if stub, ok := room.Disconnected[id]; ok {
		return stub.Snapshot
	}
	for i := len(room.Forfeited) - 1; i >= 0; i-- {
		if room.Forfeited[i].ID == id {
			return room.Forfeited[i]
		}
	}
	return nil
}

func (m *Manager) emit(room *state.Room, kind events.Kind, payload any) {
	if room == nil {
		return
	}
	m.events.Emit(events.Event{Room: room.Code, Kind: kind, Payload: payload})
}

func tickOf(room *state.Room) uint64 {
	if room == nil {
		return 0
	}
	return room.Tick
}

func codeOf(room *state.Room) string {
	if room == nil {
		return ""
	}
	return room.Code
}
