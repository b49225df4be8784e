package movement

import (
	"time"

	"platform-fighter/server/internal/events"
	"platform-fighter/server/internal/state"
	"platform-fighter/server/internal/world"
)

// resolvePlatforms lands p on the first qualifying platform in declared
// order. It returns the platform id when p newly touched down.
func (e *Engine) resolvePlatforms(room *state.Room, p *state.Participant) string {
	wasGrounded := p.Grounded
	previous := p.StandingPlatformID
	p.Grounded = false
	p.StandingPlatformID = ""
	if p.VY < 0 {
		return ""
	}

	box := e.tuning.PlayerBox(p.X, p.Y)
	fallen := p.VY * e.dt
	for _, platform := range e.layout.Platforms {
		if !e.landable(p, box, fallen, platform) {
			continue
		}
		p.Y = platform.StandingY(e.tuning.PlayerHeight)
		p.VY = 0
		p.Grounded = true
		p.StandingPlatformID = platform.ID
		p.JumpsRemaining = e.tuning.MaxJumps
		p.DroppingFromPlatformID = ""
		p.DropStartedAt = time.Time{}
		if !wasGrounded || previous != platform.ID {
			e.emit(room, events.KindPlatformLanded, events.LandedPayload{PlayerID: p.ID, PlatformID: platform.ID})
			return platform.ID
		}
		return ""
	}
	return ""
}

func (e *Engine) landable(p *state.Participant, box world.Rect, fallen float64, platform world.Platform) bool {
	bounds := platform.Bounds()
	if !box.OverlapsX(bounds) {
		return false
	}
	gap := box.Bottom - bounds.Top
	if gap < -e.tuning.LandingTolerance || gap > e.tuning.LandingTolerance+fallen {
		return false
	}
	if platform.Type == world.PlatformOneWay {
		if p.Y >= bounds.Top {
			return false
		}
		if p.DroppingFromPlatformID == platform.ID {
			return false
		}
	}
	return true
}

// startDrop begins a drop-through when p stands on a one-way platform.
func (e *Engine) startDrop(p *state.Participant, now time.Time) {
	if !p.Grounded || p.StandingPlatformID == "" {
		return
	}
	platform, ok := e.layout.PlatformByID(p.StandingPlatformID)
	if !ok || platform.Type != world.PlatformOneWay {
		return
	}
	p.DroppingFromPlatformID = platform.ID
	p.DropStartedAt = now
	p.Grounded = false
	p.StandingPlatformID = ""
	if p.VY < e.tuning.DropNudge {
		p.VY = e.tuning.DropNudge
	}
}

func (e *Engine) expireDrop(p *state.Participant, now time.Time) {
	if p.DroppingFromPlatformID == "" {
		return
	}
	if now.Sub(p.DropStartedAt) >= e.tuning.DropWindow {
		p.DroppingFromPlatformID = ""
		p.DropStartedAt = time.Time{}
	}
}

// expireDropByDepth ends the grace once p sank far enough below the
// platform's standing line, bounding the window even if the clock check is
// missed.
func (e *Engine) expireDropByDepth(p *state.Participant) {
	if p.DroppingFromPlatformID == "" {
		return
	}
	platform, ok := e.layout.PlatformByID(p.DroppingFromPlatformID)
	if !ok {
		p.DroppingFromPlatformID = ""
		return
	}
	depth := p.Y - platform.StandingY(e.tuning.PlayerHeight)
	if depth > e.tuning.DropDepthFraction*e.tuning.PlayerHeight {
		p.DroppingFromPlatformID = ""
		p.DropStartedAt = time.Time{}
	}
}

// recoverEmbedded teleports p to the nearest spawn when its box sits fully
// inside a solid platform.
func (e *Engine) recoverEmbedded(room *state.Room, p *state.Participant, res *Result) {
	box := e.tuning.PlayerBox(p.X, p.Y)
	for _, platform := range e.layout.Platforms {
		if platform.Type != world.PlatformSolid || !platform.Bounds().Contains(box) {
			continue
		}
		spawn, ok := world.NearestSpawn(e.layout, p.X, p.Y)
		if !ok {
			return
		}
		PlaceAt(p, e.tuning, spawn.X, spawn.StandingY(e.tuning.PlayerHeight), spawn.ID)
		e.repaired(room, p, RepairEmbeddedInSolid, res)
		return
	}
}
