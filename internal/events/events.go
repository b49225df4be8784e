// Package events defines the room-scoped notifications broadcast to clients.
package events

import "platform-fighter/server/internal/state"

// Kind names a client-facing notification.
type Kind string

const (
	KindJump               Kind = "jump"
	KindDash               Kind = "dash"
	KindDashInterrupted    Kind = "dash-interrupted"
	KindPlatformLanded     Kind = "platform-landed"
	KindHit                Kind = "hit"
	KindInvincibilityEnded Kind = "invincibility-ended"
	KindPlayerDeath        Kind = "player-death"
	KindPlayerEliminated   Kind = "player-eliminated"
	KindPlayerRespawn      Kind = "player-respawn"
	KindGameOver           Kind = "game-over"
	KindGracePeriodStarted Kind = "grace-period-started"
	KindPlayerRejoined     Kind = "player-rejoined"
	KindPlayerJoined       Kind = "player-joined"
	KindPlayerLeft         Kind = "player-left"
	KindHostMigrated       Kind = "host-migrated"
	KindCountdown          Kind = "countdown"
	KindGameStarted        Kind = "game-started"
	KindReturnedToLobby    Kind = "returned-to-lobby"
	KindRoomClosed         Kind = "room-closed"
)

// Event is one notification. Recipients overrides the default audience of
// every current room member, which matters when members are evicted.
type Event struct {
	Room       string
	Kind       Kind
	Payload    any
	Recipients []string
}

// Sink receives notifications. Implementations must not block the caller.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) {
	if f != nil {
		f(e)
	}
}

// Discard drops every event.
var Discard Sink = SinkFunc(nil)

// Buffer collects events in order. It is not safe for concurrent use.
type Buffer struct {
	Events []Event
}

func (b *Buffer) Emit(e Event) {
	b.Events = append(b.Events, e)
}

// Kinds lists the kinds collected so far.
func (b *Buffer) Kinds() []Kind {
	out := make([]Kind, 0, len(b.Events))
	for _, e := range b.Events {
		out = append(out, e.Kind)
	}
	return out
}

// OfKind returns the collected events of kind k.
func (b *Buffer) OfKind(k Kind) []Event {
	var out []Event
	for _, e := range b.Events {
		if e.Kind == k {
			out = append(out, e)
		}
	}
	return out
}

// Reset empties the buffer.
func (b *Buffer) Reset() {
	b.Events = b.Events[:0]
}

type JumpPayload struct {
	PlayerID string  `json:"playerId" msgpack:"playerId"`
	JumpType string  `json:"jumpType" msgpack:"jumpType"`
	X        float64 `json:"x" msgpack:"x"`
	Y        float64 `json:"y" msgpack:"y"`
	VY       float64 `json:"vy" msgpack:"vy"`
}

type DashPayload struct {
	PlayerID  string  `json:"playerId" msgpack:"playerId"`
	Direction int     `json:"direction" msgpack:"direction"`
	X         float64 `json:"x" msgpack:"x"`
	Y         float64 `json:"y" msgpack:"y"`
}

type DashInterruptedPayload struct {
	PlayerID string `json:"playerId" msgpack:"playerId"`
	Reason   string `json:"reason" msgpack:"reason"`
}

type LandedPayload struct {
	PlayerID   string `json:"playerId" msgpack:"playerId"`
	PlatformID string `json:"platformId" msgpack:"platformId"`
}

type HitPayload struct {
	AttackerID   string `json:"attackerId" msgpack:"attackerId"`
	TargetID     string `json:"targetId" msgpack:"targetId"`
	Attack       string `json:"attack" msgpack:"attack"`
	Damage       int    `json:"damage" msgpack:"damage"`
	Blocked      bool   `json:"blocked" msgpack:"blocked"`
	TargetHealth int    `json:"targetHealth" msgpack:"targetHealth"`
}

type PlayerPayload struct {
	PlayerID string `json:"playerId" msgpack:"playerId"`
}

type DeathPayload struct {
	PlayerID       string `json:"playerId" msgpack:"playerId"`
	KillerID       string `json:"killerId,omitempty" msgpack:"killerId,omitempty"`
	Cause          string `json:"cause" msgpack:"cause"`
	LivesRemaining int    `json:"livesRemaining" msgpack:"livesRemaining"`
}

type RespawnPayload struct {
	PlayerID        string  `json:"playerId" msgpack:"playerId"`
	X               float64 `json:"x" msgpack:"x"`
	Y               float64 `json:"y" msgpack:"y"`
	PlatformID      string  `json:"platformId" msgpack:"platformId"`
	InvincibleUntil int64   `json:"invincibleUntil" msgpack:"invincibleUntil"`
}

type GameOverPayload struct {
	WinnerID string              `json:"winnerId,omitempty" msgpack:"winnerId,omitempty"`
	Results  []state.ResultEntry `json:"results" msgpack:"results"`
}

type GracePayload struct {
	PlayerID     string `json:"playerId" msgpack:"playerId"`
	GraceSeconds int    `json:"graceSeconds" msgpack:"graceSeconds"`
	ExpiresAt    int64  `json:"expiresAt" msgpack:"expiresAt"`
}

type RosterPayload struct {
	PlayerID    string `json:"playerId" msgpack:"playerId"`
	Name        string `json:"name,omitempty" msgpack:"name,omitempty"`
	HostID      string `json:"hostId" msgpack:"hostId"`
	MemberCount int    `json:"memberCount" msgpack:"memberCount"`
}

type CountdownPayload struct {
	Remaining int `json:"remaining" msgpack:"remaining"`
}

type PhasePayload struct {
	Phase state.Phase `json:"phase" msgpack:"phase"`
}

type RoomClosedPayload struct {
	Reason string `json:"reason" msgpack:"reason"`
}
