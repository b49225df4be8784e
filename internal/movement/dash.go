package movement

import (
	"time"

	"platform-fighter/server/internal/events"
	"platform-fighter/server/internal/sim"
	"platform-fighter/server/internal/state"
)

// Dash interruption reasons.
const (
	InterruptDamage = "damage"
	InterruptDeath  = "death"
)

func (e *Engine) tryDash(room *state.Room, p *state.Participant, now time.Time) bool {
	if !e.dashAllowed(p, now) {
		return false
	}
	dir := p.Input.DashDirection
	if dir == 0 {
		dir = p.Facing
	}
	if dir == 0 {
		dir = 1
	}
	p.Dash.Active = true
	p.Dash.Direction = dir
	p.Dash.Velocity = float64(dir) * e.tuning.DashSpeed
	p.Dash.StartedAt = now
	p.Dash.LastAt = now
	p.Dash.History = append(pruneBefore(p.Dash.History, now.Add(-time.Second)), now)
	p.Facing = dir

	sim.StopTimer(&p.Timers.DashEnd)
	if e.sched != nil {
		started := now
		p.Timers.DashEnd = e.sched.AfterFunc(e.tuning.DashDuration, func() {
			p.Timers.DashEnd = nil
			if p.Dash.Active && p.Dash.StartedAt.Equal(started) {
				EndDash(p)
			}
		})
	}
	e.emit(room, events.KindDash, events.DashPayload{PlayerID: p.ID, Direction: dir, X: p.X, Y: p.Y})
	return true
}

// dashAllowed applies the activation preconditions and the layered rate
// limit: a rolling per-second cap and a tighter burst cap.
func (e *Engine) dashAllowed(p *state.Participant, now time.Time) bool {
	if p.Dash.Active || p.Attack.Attacking || p.Attack.PendingHeavy || p.Shielding {
		return false
	}
	if p.VY >= e.tuning.DashMaxFallSpeed {
		return false
	}
	if !p.Dash.LastAt.IsZero() && now.Sub(p.Dash.LastAt) < e.tuning.DashCooldown {
		return false
	}
	if countSince(p.Dash.History, now.Add(-time.Second)) >= e.tuning.DashPerSecond {
		return false
	}
	if countSince(p.Dash.History, now.Add(-e.tuning.DashBurstWindow)) >= e.tuning.DashBurst {
		return false
	}
	return true
}

// advanceDash decays the dash velocity and applies it, ending the dash at the
// extended world edge.
func (e *Engine) advanceDash(p *state.Participant) {
	if !p.Dash.Active {
		return
	}
	p.Dash.Velocity *= e.tuning.DashDecay
	p.X += p.Dash.Velocity * e.dt
	if p.X <= e.tuning.ExtendedLeft || p.X >= e.tuning.ExtendedRight {
		p.X, _ = e.tuning.ClampExtended(p.X, p.Y)
		EndDash(p)
	}
}

// EndDash clears the dash sub-state and cancels its timer.
func EndDash(p *state.Participant) {
	p.Dash.Active = false
	p.Dash.Velocity = 0
	sim.StopTimer(&p.Timers.DashEnd)
}

// InterruptDash ends an active dash from outside the movement step and
// tells the room why.
func (e *Engine) InterruptDash(room *state.Room, p *state.Participant, reason string) bool {
	if p == nil || !p.Dash.Active {
		return false
	}
	EndDash(p)
	e.emit(room, events.KindDashInterrupted, events.DashInterruptedPayload{PlayerID: p.ID, Reason: reason})
	return true
}

func countSince(history []time.Time, since time.Time) int {
	n := 0
	for _, at := range history {
		if at.After(since) {
			n++
		}
	}
	return n
}

func pruneBefore(history []time.Time, since time.Time) []time.Time {
	kept := history[:0]
	for _, at := range history {
		if at.After(since) {
			kept = append(kept, at)
		}
	}
	return kept
}
