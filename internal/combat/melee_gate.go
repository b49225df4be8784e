package combat

import (
	"time"

	"platform-fighter/server/internal/sim"
	"platform-fighter/server/internal/state"
)

// ReadyCooldown refuses to trigger while the previous trigger recorded in
// last is younger than cooldown, and records now when the attack is ready.
func ReadyCooldown(last *time.Time, cooldown time.Duration, now time.Time) bool {
	if last == nil {
		return false
	}
	if cooldown > 0 && !last.IsZero() && now.Sub(*last) < cooldown {
		return false
	}
	*last = now
	return true
}

// canStartAttack gates every attack trigger on the attacker's own state.
func canStartAttack(p *state.Participant) bool {
	return p.Active() && !p.Attack.Attacking && !p.Attack.PendingHeavy && !p.Shielding
}

// Trigger consumes the latched attack actions of p.
func (r *Resolver) Trigger(room *state.Room, p *state.Participant, now time.Time) {
	light, heavy := p.Input.Light, p.Input.Heavy
	p.Input.Light = false
	p.Input.Heavy = false
	if !canStartAttack(p) {
		return
	}
	switch {
	case heavy:
		if !ReadyCooldown(&p.Attack.LastHeavyAt, r.tuning.HeavyCooldown, now) {
			return
		}
		r.startHeavy(p, now)
	case light:
		if !ReadyCooldown(&p.Attack.LastLightAt, r.tuning.LightCooldown, now) {
			return
		}
		r.activate(p, state.AttackLight, now)
	}
}

// startHeavy arms the startup delay. The attack becomes active once, either
// from the timer or from the tick that first observes the deadline.
func (r *Resolver) startHeavy(p *state.Participant, now time.Time) {
	p.Attack.PendingHeavy = true
	p.Attack.HeavyConsumed = false
	p.Attack.HeavyReadyAt = now.Add(r.tuning.HeavyStartup)
	sim.StopTimer(&p.Timers.HeavyStartup)
	if r.sched == nil {
		return
	}
	readyAt := p.Attack.HeavyReadyAt
	p.Timers.HeavyStartup = r.sched.AfterFunc(r.tuning.HeavyStartup, func() {
		p.Timers.HeavyStartup = nil
		if p.Attack.PendingHeavy && p.Attack.HeavyReadyAt.Equal(readyAt) {
			r.releaseHeavy(p, r.sched.Now())
		}
	})
}

// releaseHeavy turns a pending heavy attack into an active one at most once.
func (r *Resolver) releaseHeavy(p *state.Participant, now time.Time) bool {
	if !p.Attack.PendingHeavy || p.Attack.HeavyConsumed || now.Before(p.Attack.HeavyReadyAt) {
		return false
	}
	p.Attack.HeavyConsumed = true
	p.Attack.PendingHeavy = false
	sim.StopTimer(&p.Timers.HeavyStartup)
	if !p.Active() {
		return false
	}
	r.activate(p, state.AttackHeavy, now)
	return true
}

func (r *Resolver) activate(p *state.Participant, kind state.AttackKind, now time.Time) {
	p.Attack.Attacking = true
	p.Attack.Kind = kind
	p.Attack.Processed = false
	p.Attack.StartedAt = now
	sim.StopTimer(&p.Timers.AttackEnd)
	if r.sched == nil {
		return
	}
	started := now
	p.Timers.AttackEnd = r.sched.AfterFunc(r.tuning.AttackWindow, func() {
		p.Timers.AttackEnd = nil
		if p.Attack.Attacking && p.Attack.StartedAt.Equal(started) {
			endAttack(p)
		}
	})
}

func endAttack(p *state.Participant) {
	p.Attack.Attacking = false
	p.Attack.Kind = state.AttackNone
	p.Attack.Processed = false
	sim.StopTimer(&p.Timers.AttackEnd)
}

// Advance runs the tick-time side of the attack state machine: heavy
// release when its startup has elapsed, and fallbacks for timers that never
// fired.
func (r *Resolver) Advance(p *state.Participant, now time.Time) {
	if p.Attack.PendingHeavy {
		r.releaseHeavy(p, now)
	}
	if p.Attack.Attacking && now.Sub(p.Attack.StartedAt) >= r.tuning.AttackWindow+r.tuning.TimerFallbackSlack {
		endAttack(p)
	}
	if !p.Active() && (p.Attack.Attacking || p.Attack.PendingHeavy) {
		CancelAttacks(p)
	}
}

// CancelAttacks clears every attack state and its timers.
func CancelAttacks(p *state.Participant) {
	endAttack(p)
	p.Attack.PendingHeavy = false
	sim.StopTimer(&p.Timers.HeavyStartup)
}
