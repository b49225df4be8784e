package lifecycle

import (
	"context"
	"time"

	"platform-fighter/server/internal/events"
	"platform-fighter/server/internal/movement"
	"platform-fighter/server/internal/sim"
	"platform-fighter/server/internal/state"
	"platform-fighter/server/internal/world"
	"platform-fighter/server/logging"
	loglifecycle "platform-fighter/server/logging/lifecycle"
)

// scheduleRespawn arms exactly one respawn for the current death.
func (m *Manager) scheduleRespawn(room *state.Room, p *state.Participant, now time.Time) {
	p.RespawnAt = now.Add(m.tuning.RespawnDelay)
	sim.StopTimer(&p.Timers.Respawn)
	if m.sched == nil {
		return
	}
	diedAt := p.DiedAt
	p.Timers.Respawn = m.sched.AfterFunc(m.tuning.RespawnDelay, func() {
		p.Timers.Respawn = nil
		if p.IsDead && p.DiedAt.Equal(diedAt) {
			m.Respawn(room, p, m.sched.Now())
		}
	})
}

// Respawn brings a dead participant back on a random spawn platform with
// full health and a fresh invincibility window.
func (m *Manager) Respawn(room *state.Room, p *state.Participant, now time.Time) bool {
	if p == nil || !p.IsDead || p.Eliminated || p.Lives <= 0 {
		return false
	}
	if room != nil && room.Phase != state.PhaseInProgress {
		return false
	}
	sim.StopTimer(&p.Timers.Respawn)
	x, y, platformID := world.PickSpawn(m.rng, m.layout, m.tuning)
	movement.PlaceAt(p, m.tuning, x, y, platformID)
	p.IsDead = false
	p.RespawnAt = time.Time{}
	p.Health = p.MaxHealth
	p.IsInvincible = true
	p.InvincibleUntil = now.Add(m.tuning.InvincibleFor)
	p.LastAttackerID = ""
	p.LastAttackedAt = time.Time{}
	p.Input.ClearActions()

	m.metrics.Add(metricRespawns, 1)
	m.emit(room, events.KindPlayerRespawn, events.RespawnPayload{
		PlayerID:        p.ID,
		X:               x,
		Y:               y,
		PlatformID:      platformID,
		InvincibleUntil: p.InvincibleUntil.UnixMilli(),
	})
	loglifecycle.PlayerRespawn(context.Background(), m.publisher, tickOf(room), codeOf(room), logging.PlayerRef(p.ID), loglifecycle.RespawnPayload{
		X:          x,
		Y:          y,
		PlatformID: platformID,
	}, nil)
	return true
}

// Advance is the tick-time fallback for a respawn timer that was lost.
func (m *Manager) Advance(room *state.Room, p *state.Participant, now time.Time) {
	if !p.IsDead || p.Eliminated || p.RespawnAt.IsZero() {
		return
	}
	if now.Sub(p.RespawnAt) >= m.tuning.TimerFallbackSlack {
		m.Respawn(room, p, now)
	}
}
