// Package combat resolves melee attacks: trigger gating, heavy startup,
// per-tick hit scans, damage, attribution and knockback.
package combat

import (
	"context"
	"math"
	"time"

	"platform-fighter/server/internal/events"
	"platform-fighter/server/internal/movement"
	"platform-fighter/server/internal/sim"
	"platform-fighter/server/internal/state"
	"platform-fighter/server/internal/telemetry"
	"platform-fighter/server/internal/world"
	"platform-fighter/server/logging"
	logcombat "platform-fighter/server/logging/combat"
)

const (
	metricHits   = "combat_hits_total"
	metricWhiffs = "combat_whiffs_total"
)

// Config wires the resolver.
type Config struct {
	Tuning    world.Tuning
	Scheduler sim.Scheduler
	Movement  *movement.Engine
	Events    events.Sink
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
}

// Resolver owns attack timing and hit resolution. Loop goroutine only.
type Resolver struct {
	tuning    world.Tuning
	sched     sim.Scheduler
	movement  *movement.Engine
	events    events.Sink
	publisher logging.Publisher
	metrics   telemetry.Metrics
}

func NewResolver(cfg Config) *Resolver {
	sink := cfg.Events
	if sink == nil {
		sink = events.Discard
	}
	return &Resolver{
		tuning:    cfg.Tuning,
		sched:     cfg.Scheduler,
		movement:  cfg.Movement,
		events:    sink,
		publisher: logging.OrNop(cfg.Publisher),
		metrics:   telemetry.OrNop(cfg.Metrics),
	}
}

// Hit describes one landed attack.
type Hit struct {
	AttackerID string
	TargetID   string
	Kind       state.AttackKind
	Damage     int
	Blocked    bool
}

// Outcome is what a resolution pass produced. Defeated lists targets whose
// health reached zero; the caller routes them to the death entry point.
type Outcome struct {
	Hits     []Hit
	Defeated []*state.Participant
}

func (r *Resolver) profile(kind state.AttackKind) (rangePx float64, damage int, knockback float64) {
	if kind == state.AttackHeavy {
		return r.tuning.HeavyRange, r.tuning.HeavyDamage, r.tuning.Knockback * r.tuning.HeavyKnockMul
	}
	return r.tuning.LightRange, r.tuning.LightDamage, r.tuning.Knockback
}

// Resolve scans every open attack among members once. Each attacker is
// marked processed immediately after its scan, so an activation lands at
// most one hit per target no matter how many ticks its window spans.
func (r *Resolver) Resolve(room *state.Room, members []*state.Participant, now time.Time) Outcome {
	var out Outcome
	defeated := make(map[string]bool)
	for _, attacker := range members {
		if !attacker.Active() || !attacker.Attack.Attacking || attacker.Attack.Processed {
			continue
		}
		kind := attacker.Attack.Kind
		rangePx, damage, knockback := r.profile(kind)
		landed := 0
		for _, target := range members {
			if target == attacker || !target.Vulnerable() || target.Health <= 0 {
				continue
			}
			dx, dy := target.X-attacker.X, target.Y-attacker.Y
			if math.Hypot(dx, dy) > rangePx {
				continue
			}
			hit := r.apply(room, attacker, target, kind, damage, knockback, now)
			out.Hits = append(out.Hits, hit)
			landed++
			if target.Health == 0 && !defeated[target.ID] {
				defeated[target.ID] = true
				out.Defeated = append(out.Defeated, target)
			}
		}
		attacker.Attack.Processed = true
		if landed == 0 {
			r.metrics.Add(metricWhiffs, 1)
			logcombat.Whiff(context.Background(), r.publisher, tickOf(room), codeOf(room), logging.PlayerRef(attacker.ID), logcombat.WhiffPayload{Attack: string(kind)}, nil)
		}
	}
	return out
}

func (r *Resolver) apply(room *state.Room, attacker, target *state.Participant, kind state.AttackKind, damage int, knockback float64, now time.Time) Hit {
	blocked := target.Shielding
	if blocked {
		damage = int(math.Floor(float64(damage) * r.tuning.BlockFactor))
	}
	target.Health -= damage
	if target.Health < 0 {
		target.Health = 0
	}
	target.LastAttackerID = attacker.ID
	target.LastAttackedAt = now

	if r.movement != nil {
		r.movement.InterruptDash(room, target, movement.InterruptDamage)
	} else {
		movement.EndDash(target)
	}

	angle := math.Atan2(target.Y-attacker.Y, target.X-attacker.X)
	kx, ky := math.Cos(angle)*knockback, math.Sin(angle)*knockback
	target.X, target.Y = r.tuning.ClampExtended(target.X+kx, target.Y+ky)

	r.metrics.Add(metricHits, 1)
	if room != nil {
		r.events.Emit(events.Event{Room: room.Code, Kind: events.KindHit, Payload: events.HitPayload{
			AttackerID:   attacker.ID,
			TargetID:     target.ID,
			Attack:       string(kind),
			Damage:       damage,
			Blocked:      blocked,
			TargetHealth: target.Health,
		}})
	}
	logcombat.Hit(context.Background(), r.publisher, tickOf(room), codeOf(room), logging.PlayerRef(attacker.ID), logging.PlayerRef(target.ID), logcombat.HitPayload{
		Attack:       string(kind),
		Damage:       damage,
		Blocked:      blocked,
		TargetHealth: target.Health,
		KnockbackX:   kx,
		KnockbackY:   ky,
	}, nil)
	return Hit{AttackerID: attacker.ID, TargetID: target.ID, Kind: kind, Damage: damage, Blocked: blocked}
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
