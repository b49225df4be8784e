package state

import (
	"time"

	"platform-fighter/server/internal/sim"
)

// DisconnectedMember is a grace-period stub for a member who dropped mid
// match.
type DisconnectedMember struct {
	Snapshot       *Participant
	DisconnectedAt time.Time
	ExpiresAt      time.Time
	Timer          *sim.Timer
}

// Room is an isolated match session.
type Room struct {
	Code   string
	HostID string
	// Members is in join order.
	Members      []string
	Disconnected map[string]*DisconnectedMember
	// Forfeited keeps the final state of members whose grace period expired
	// so the match result can still rank them.
	Forfeited []*Participant

	Phase          Phase
	CreatedAt      time.Time
	LastActivityAt time.Time
	EmptySince     time.Time
	Active         bool

	CountdownRemaining int
	NextCountdownAt    time.Time
	CountdownTimer     *sim.Timer

	StartedAt time.Time
	EndedAt   time.Time
	Tick      uint64
	WinnerID  string
	Results   []ResultEntry
}

// NewRoom returns an active lobby hosted by hostID.
func NewRoom(code, hostID string, now time.Time) *Room {
	return &Room{
		Code:           code,
		HostID:         hostID,
		Members:        []string{hostID},
		Disconnected:   make(map[string]*DisconnectedMember),
		Phase:          PhaseLobby,
		CreatedAt:      now,
		LastActivityAt: now,
		Active:         true,
	}
}

// HasMember reports whether id is a connected member.
func (r *Room) HasMember(id string) bool {
	for _, member := range r.Members {
		if member == id {
			return true
		}
	}
	return false
}

// IsDisconnected reports whether id holds a grace-period stub.
func (r *Room) IsDisconnected(id string) bool {
	_, ok := r.Disconnected[id]
	return ok
}

// AddMember appends id if absent.
func (r *Room) AddMember(id string) {
	if r.HasMember(id) {
		return
	}
	r.Members = append(r.Members, id)
	r.EmptySince = time.Time{}
}

// RemoveMember drops id from the roster and reports whether it was present.
func (r *Room) RemoveMember(id string) bool {
	for i, member := range r.Members {
		if member == id {
			r.Members = append(r.Members[:i:i], r.Members[i+1:]...)
			return true
		}
	}
	return false
}

// MemberIDs returns a copy of the roster safe to iterate while mutating.
func (r *Room) MemberIDs() []string {
	return append([]string(nil), r.Members...)
}

// Empty reports whether nobody holds a place in the room.
func (r *Room) Empty() bool {
	return len(r.Members) == 0 && len(r.Disconnected) == 0
}

// Touch records activity.
func (r *Room) Touch(now time.Time) {
	r.LastActivityAt = now
}

// StopTimers cancels the countdown and every grace-period timer.
func (r *Room) StopTimers() {
	sim.StopTimer(&r.CountdownTimer)
	for _, stub := range r.Disconnected {
		sim.StopTimer(&stub.Timer)
	}
}
