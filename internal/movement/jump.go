package movement

import (
	"time"

	"platform-fighter/server/internal/events"
	"platform-fighter/server/internal/state"
)

// Jump types carried on jump notifications.
const (
	JumpSingle = "single"
	JumpDouble = "double"
)

// JumpDenial explains why a jump request was refused.
type JumpDenial string

const (
	JumpAllowed       JumpDenial = ""
	JumpNoBudget      JumpDenial = "no_budget"
	JumpCoolingDown   JumpDenial = "cooldown"
	JumpFallingFast   JumpDenial = "falling_too_fast"
	JumpOutsideArena  JumpDenial = "position"
	JumpRateLimited   JumpDenial = "rate_limited"
	JumpWhileDisabled JumpDenial = "disabled"
)

// CheckJump applies the anti-exploit gates in order.
func (e *Engine) CheckJump(p *state.Participant, now time.Time) JumpDenial {
	switch {
	case !p.Active():
		return JumpWhileDisabled
	case p.JumpsRemaining <= 0:
		return JumpNoBudget
	case !p.LastJumpAt.IsZero() && now.Sub(p.LastJumpAt) < e.tuning.JumpCooldown:
		return JumpCoolingDown
	case p.VY > e.tuning.JumpMaxFallSpeed:
		return JumpFallingFast
	case !e.tuning.InPlayableArea(p.X, p.Y):
		return JumpOutsideArena
	case countSince(p.JumpHistory, now.Add(-time.Second)) >= e.tuning.JumpRateLimit:
		return JumpRateLimited
	}
	return JumpAllowed
}

func (e *Engine) tryJump(room *state.Room, p *state.Participant, now time.Time) bool {
	if e.CheckJump(p, now) != JumpAllowed {
		return false
	}
	jumpType := JumpDouble
	impulse := e.tuning.JumpImpulse
	if p.JumpsRemaining >= e.tuning.MaxJumps {
		jumpType = JumpSingle
		impulse = e.tuning.FirstJumpImpulse
	}
	p.VY = impulse
	p.JumpsRemaining--
	p.Grounded = false
	p.StandingPlatformID = ""
	p.LastJumpAt = now
	p.JumpHistory = append(pruneBefore(p.JumpHistory, now.Add(-time.Second)), now)
	e.emit(room, events.KindJump, events.JumpPayload{PlayerID: p.ID, JumpType: jumpType, X: p.X, Y: p.Y, VY: p.VY})
	return true
}
