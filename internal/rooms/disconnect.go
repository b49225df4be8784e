package rooms

import (
	"context"
	"time"

	"platform-fighter/server/internal/events"
	"platform-fighter/server/internal/sim"
	"platform-fighter/server/internal/state"
	"platform-fighter/server/logging"
	logrooms "platform-fighter/server/logging/rooms"
)

// Disconnect handles a dropped connection. In a running two-member match the
// player's state is parked for the grace period and true is returned; every
// other case goes through the normal leave path.
func (r *Registry) Disconnect(playerID string) bool {
	room, ok := r.store.RoomOf(playerID)
	if !ok {
		return false
	}
	now := r.now()
	p, _ := r.store.Participant(playerID)
	if p == nil || room.Phase != state.PhaseInProgress || len(room.Members) != 2 || !room.HasMember(playerID) {
		r.removeMember(room, playerID, "disconnected", now)
		return false
	}

	p.Timers.StopAll()
	stub := &state.DisconnectedMember{
		Snapshot:       p.Clone(),
		DisconnectedAt: now,
		ExpiresAt:      now.Add(r.settings.GracePeriod),
	}
	room.RemoveMember(playerID)
	room.Disconnected[playerID] = stub
	room.Touch(now)
	if room.HostID == playerID {
		r.migrateHost(room)
	}
	if r.sched != nil {
		stub.Timer = r.sched.AfterFunc(r.settings.GracePeriod, func() {
			stub.Timer = nil
			if room.Disconnected[playerID] == stub {
				r.expireGrace(room, playerID, r.sched.Now())
			}
		})
	}

	r.metrics.Add(metricGraceStarted, 1)
	r.emit(room, events.KindGracePeriodStarted, events.GracePayload{
		PlayerID:     playerID,
		GraceSeconds: int(r.settings.GracePeriod / time.Second),
		ExpiresAt:    stub.ExpiresAt.UnixMilli(),
	})
	logrooms.GraceStarted(context.Background(), r.publisher, room.Code, logging.PlayerRef(playerID), logrooms.GracePayload{
		GraceMillis: r.settings.GracePeriod.Milliseconds(),
	}, nil)
	return true
}

// rejoin restores the parked state of p and puts it back on the roster.
func (r *Registry) rejoin(room *state.Room, p *state.Participant, now time.Time) {
	stub := room.Disconnected[p.ID]
	sim.StopTimer(&stub.Timer)
	delete(room.Disconnected, p.ID)
	p.RestoreFrom(stub.Snapshot)
	room.AddMember(p.ID)
	room.Touch(now)
	r.store.Bind(p.ID, room.Code)
	r.emit(room, events.KindPlayerRejoined, events.RosterPayload{
		PlayerID:    p.ID,
		Name:        p.Name,
		HostID:      room.HostID,
		MemberCount: len(room.Members),
	})
	logrooms.MemberRejoined(context.Background(), r.publisher, room.Code, logging.PlayerRef(p.ID), logrooms.MembershipPayload{
		MemberCount: len(room.Members),
		HostID:      room.HostID,
	}, nil)
}

// expireGrace forfeits the parked member and re-evaluates the match.
func (r *Registry) expireGrace(room *state.Room, playerID string, now time.Time) {
	stub, ok := room.Disconnected[playerID]
	if !ok {
		return
	}
	sim.StopTimer(&stub.Timer)
	delete(room.Disconnected, playerID)
	r.store.Unbind(playerID, room.Code)
	if stub.Snapshot != nil {
		room.Forfeited = append(room.Forfeited, stub.Snapshot)
	}
	room.Touch(now)
	if room.Empty() {
		room.EmptySince = now
	}
	r.metrics.Add(metricForfeits, 1)
	logrooms.GraceExpired(context.Background(), r.publisher, room.Code, logging.PlayerRef(playerID), logrooms.GracePayload{
		GraceMillis: r.settings.GracePeriod.Milliseconds(),
	}, nil)
	if r.lifecycle != nil {
		r.lifecycle.EvaluateMatchEnd(room, now)
	}
}
