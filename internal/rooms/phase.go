package rooms

import (
	"context"
	"time"

	"platform-fighter/server/internal/events"
	"platform-fighter/server/internal/movement"
	"platform-fighter/server/internal/sim"
	"platform-fighter/server/internal/state"
	logrooms "platform-fighter/server/logging/rooms"
)

var spawnOffsets = [...]float64{0, -30, 30, -15}

// StartGame moves the caller's lobby into the countdown.
func (r *Registry) StartGame(playerID string) error {
	room, err := r.hostRoom(playerID)
	if err != nil {
		return err
	}
	if room.Phase != state.PhaseLobby {
		return ErrWrongPhase
	}
	if len(room.Members) < 2 {
		return ErrNotEnoughPlayers
	}
	r.beginCountdown(room, r.now())
	return nil
}

// Rematch resets every member and replays the countdown after a finished
// match.
func (r *Registry) Rematch(playerID string) error {
	room, err := r.hostRoom(playerID)
	if err != nil {
		return err
	}
	if room.Phase != state.PhaseGameOver {
		return ErrWrongPhase
	}
	if len(room.Members) < 2 {
		return ErrNotEnoughPlayers
	}
	r.beginCountdown(room, r.now())
	return nil
}

// ReturnToLobby takes a finished match back to the lobby. Any member may ask.
func (r *Registry) ReturnToLobby(playerID string) error {
	room, ok := r.store.RoomOf(playerID)
	if !ok || !room.HasMember(playerID) {
		return ErrNotInRoom
	}
	if room.Phase != state.PhaseGameOver {
		return ErrWrongPhase
	}
	now := r.now()
	for _, p := range r.store.MembersOf(room) {
		p.ResetForMatch(r.tuning)
	}
	r.clearMatch(room)
	r.setPhase(room, state.PhaseLobby, now)
	r.emit(room, events.KindReturnedToLobby, events.PhasePayload{Phase: room.Phase})
	return nil
}

func (r *Registry) hostRoom(playerID string) (*state.Room, error) {
	room, ok := r.store.RoomOf(playerID)
	if !ok || !room.HasMember(playerID) {
		return nil, ErrNotInRoom
	}
	if room.HostID != playerID {
		return nil, ErrNotHost
	}
	return room, nil
}

func (r *Registry) clearMatch(room *state.Room) {
	room.WinnerID = ""
	room.Results = nil
	room.Forfeited = nil
	room.StartedAt = time.Time{}
	room.EndedAt = time.Time{}
	room.Tick = 0
}

func (r *Registry) setPhase(room *state.Room, phase state.Phase, now time.Time) {
	from := room.Phase
	room.Phase = phase
	room.Touch(now)
	logrooms.PhaseChanged(context.Background(), r.publisher, room.Code, logrooms.PhasePayload{
		From: from.String(),
		To:   phase.String(),
	}, nil)
}

// beginCountdown resets and places every member, then arms the first
// countdown step.
func (r *Registry) beginCountdown(room *state.Room, now time.Time) {
	spawns := r.layout.SpawnPlatforms()
	for i, p := range r.store.MembersOf(room) {
		p.ResetForMatch(r.tuning)
		if len(spawns) == 0 {
			continue
		}
		pad := spawns[i%len(spawns)]
		offset := spawnOffsets[(i/len(spawns))%len(spawnOffsets)]
		movement.PlaceAt(p, r.tuning, pad.X+offset, pad.StandingY(r.tuning.PlayerHeight), pad.ID)
		if pad.X > r.tuning.Width/2 {
			p.Facing = -1
		} else {
			p.Facing = 1
		}
	}
	r.clearMatch(room)
	r.setPhase(room, state.PhaseCountdown, now)
	room.CountdownRemaining = r.settings.CountdownSteps
	if room.CountdownRemaining == 0 {
		r.startMatch(room, now)
		return
	}
	r.emit(room, events.KindCountdown, events.CountdownPayload{Remaining: room.CountdownRemaining})
	r.armCountdown(room, now)
}

func (r *Registry) armCountdown(room *state.Room, now time.Time) {
	room.NextCountdownAt = now.Add(r.settings.CountdownStep)
	sim.StopTimer(&room.CountdownTimer)
	if r.sched == nil {
		return
	}
	due := room.NextCountdownAt
	room.CountdownTimer = r.sched.AfterFunc(r.settings.CountdownStep, func() {
		room.CountdownTimer = nil
		if room.Phase == state.PhaseCountdown && room.NextCountdownAt.Equal(due) {
			r.countdownStep(room, r.sched.Now())
		}
	})
}

func (r *Registry) countdownStep(room *state.Room, now time.Time) {
	room.CountdownRemaining--
	if room.CountdownRemaining > 0 {
		r.emit(room, events.KindCountdown, events.CountdownPayload{Remaining: room.CountdownRemaining})
		r.armCountdown(room, now)
		return
	}
	r.startMatch(room, now)
}

func (r *Registry) startMatch(room *state.Room, now time.Time) {
	sim.StopTimer(&room.CountdownTimer)
	room.CountdownRemaining = 0
	room.NextCountdownAt = time.Time{}
	room.StartedAt = now
	room.Tick = 0
	r.setPhase(room, state.PhaseInProgress, now)
	r.emit(room, events.KindGameStarted, events.PhasePayload{Phase: room.Phase})
}

func (r *Registry) abortCountdown(room *state.Room, now time.Time) {
	sim.StopTimer(&room.CountdownTimer)
	room.CountdownRemaining = 0
	room.NextCountdownAt = time.Time{}
	r.setPhase(room, state.PhaseLobby, now)
	r.emit(room, events.KindReturnedToLobby, events.PhasePayload{Phase: room.Phase})
}
