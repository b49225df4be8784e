// Package movement integrates one participant per tick: gravity, platform
// landing, drop-through, dash, jump, position sanity, death boundary and
// invincibility expiry.
package movement

import (
	"context"
	"time"

	"platform-fighter/server/internal/events"
	"platform-fighter/server/internal/sim"
	"platform-fighter/server/internal/state"
	"platform-fighter/server/internal/telemetry"
	"platform-fighter/server/internal/world"
	"platform-fighter/server/logging"
	logsimulation "platform-fighter/server/logging/simulation"
)

// Repair tags for the self-healing consistency checks.
const (
	RepairOrphanDashVelocity = "orphan_dash_velocity"
	RepairStaleDash          = "stale_dash"
	RepairEmbeddedInSolid    = "embedded_in_solid"
	RepairDeadGrounded       = "dead_grounded"
)

const metricRepairsPrefix = "sim_repairs_total."

// Config wires the engine's collaborators.
type Config struct {
	Tuning    world.Tuning
	Layout    world.Layout
	Scheduler sim.Scheduler
	Events    events.Sink
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
}

// Engine is the per-participant physics integrator. It is driven from the
// loop goroutine only.
type Engine struct {
	tuning    world.Tuning
	layout    world.Layout
	sched     sim.Scheduler
	events    events.Sink
	publisher logging.Publisher
	metrics   telemetry.Metrics
	dt        float64
}

func NewEngine(cfg Config) *Engine {
	sink := cfg.Events
	if sink == nil {
		sink = events.Discard
	}
	return &Engine{
		tuning:    cfg.Tuning,
		layout:    cfg.Layout,
		sched:     cfg.Scheduler,
		events:    sink,
		publisher: logging.OrNop(cfg.Publisher),
		metrics:   telemetry.OrNop(cfg.Metrics),
		dt:        cfg.Tuning.TickDelta(),
	}
}

// Tuning exposes the constant set the engine was built with.
func (e *Engine) Tuning() world.Tuning {
	return e.tuning
}

// Layout exposes the arena the engine collides against.
func (e *Engine) Layout() world.Layout {
	return e.layout
}

// Result reports what a step observed that other subsystems act on.
type Result struct {
	// OutOfBounds is set when the participant crossed a death boundary while
	// able to die. The caller routes it to the single death entry point.
	OutOfBounds bool
	LandedOn    string
	Repairs     []string
}

// Step advances p by one tick.
func (e *Engine) Step(room *state.Room, p *state.Participant, now time.Time) Result {
	var res Result
	if p == nil || p.Eliminated {
		return res
	}
	e.repairConsistency(room, p, now, &res)
	if p.IsDead {
		p.Input.ClearActions()
		return res
	}

	if p.Dash.Active && now.Sub(p.Dash.StartedAt) >= e.tuning.DashDuration {
		EndDash(p)
	}
	e.expireDrop(p, now)

	p.Shielding = p.Input.Shield && !p.Dash.Active
	horizontal := p.Input.Horizontal()
	if horizontal != 0 {
		p.Facing = horizontal
	}
	speed := e.tuning.RunSpeed
	if p.Shielding {
		speed *= e.tuning.ShieldSlow
	}
	p.VX = float64(horizontal) * speed

	if p.Input.Drop {
		e.startDrop(p, now)
	}
	if p.Input.Jump {
		e.tryJump(room, p, now)
	}
	if p.Input.Dash {
		e.tryDash(room, p, now)
	}
	p.Input.Jump = false
	p.Input.Dash = false
	p.Input.Drop = false

	p.VY += e.tuning.Gravity * e.dt
	if p.VY > e.tuning.MaxFallSpeed {
		p.VY = e.tuning.MaxFallSpeed
	}
	p.X += p.VX * e.dt
	p.Y += p.VY * e.dt
	e.advanceDash(p)

	e.expireDropByDepth(p)
	if landed := e.resolvePlatforms(room, p); landed != "" {
		res.LandedOn = landed
	}
	e.recoverEmbedded(room, p, &res)

	if e.tuning.PastDeathBoundary(p.X, p.Y) && p.Vulnerable() {
		res.OutOfBounds = true
	}
	e.expireInvincibility(room, p, now)
	return res
}

func (e *Engine) expireInvincibility(room *state.Room, p *state.Participant, now time.Time) {
	if !p.IsInvincible || now.Before(p.InvincibleUntil) {
		return
	}
	p.IsInvincible = false
	e.emit(room, events.KindInvincibilityEnded, events.PlayerPayload{PlayerID: p.ID})
}

// repairConsistency corrects states that should be unreachable but would
// otherwise persist.
func (e *Engine) repairConsistency(room *state.Room, p *state.Participant, now time.Time, res *Result) {
	if !p.Dash.Active && p.Dash.Velocity != 0 {
		p.Dash.Velocity = 0
		e.repaired(room, p, RepairOrphanDashVelocity, res)
	}
	stale := time.Duration(float64(e.tuning.DashDuration) * e.tuning.DashStaleMultiple)
	if p.Dash.Active && now.Sub(p.Dash.StartedAt) > stale {
		EndDash(p)
		e.repaired(room, p, RepairStaleDash, res)
	}
	if p.IsDead && p.Grounded {
		p.Grounded = false
		p.StandingPlatformID = ""
		e.repaired(room, p, RepairDeadGrounded, res)
	}
}

func (e *Engine) repaired(room *state.Room, p *state.Participant, repair string, res *Result) {
	res.Repairs = append(res.Repairs, repair)
	e.metrics.Add(metricRepairsPrefix+repair, 1)
	var tick uint64
	code := ""
	if room != nil {
		tick, code = room.Tick, room.Code
	}
	logsimulation.InvariantRepaired(context.Background(), e.publisher, tick, code, logging.PlayerRef(p.ID), logsimulation.InvariantRepairedPayload{Repair: repair}, nil)
}

func (e *Engine) emit(room *state.Room, kind events.Kind, payload any) {
	if room == nil {
		return
	}
	e.events.Emit(events.Event{Room: room.Code, Kind: kind, Payload: payload})
}

// PlaceAt puts p standing on top of the platform at (x, y) with velocities
// cleared and a full jump budget.
func PlaceAt(p *state.Participant, tuning world.Tuning, x, y float64, platformID string) {
	p.X, p.Y = x, y
	p.VX, p.VY = 0, 0
	p.Grounded = platformID != ""
	p.StandingPlatformID = platformID
	p.JumpsRemaining = tuning.MaxJumps
	p.DroppingFromPlatformID = ""
	EndDash(p)
}
