package rooms

import (
	"context"

	"platform-fighter/server/logging"
)

const (
	// EventRoomCreated is emitted when a host opens a new room.
	EventRoomCreated logging.EventType = "rooms.room_created"
	// EventMemberJoined is emitted when a player joins a room.
	EventMemberJoined logging.EventType = "rooms.member_joined"
	// EventMemberRejoined is emitted when a disconnected player returns within the grace period.
	EventMemberRejoined logging.EventType = "rooms.member_rejoined"
	// EventMemberLeft is emitted when a player leaves or is evicted from a room.
	EventMemberLeft logging.EventType = "rooms.member_left"
	// EventHostMigrated is emitted when the host role moves to another member.
	EventHostMigrated logging.EventType = "rooms.host_migrated"
	// EventRoomDissolved is emitted when the host leaves a lobby and every member is evicted.
	EventRoomDissolved logging.EventType = "rooms.room_dissolved"
	// EventRoomCleaned is emitted when the cleanup sweep deletes a room.
	EventRoomCleaned logging.EventType = "rooms.room_cleaned"
	// EventPhaseChanged is emitted on every room phase transition.
	EventPhaseChanged logging.EventType = "rooms.phase_changed"
	// EventGraceStarted is emitted when a mid-match disconnect arms the forfeiture timer.
	EventGraceStarted logging.EventType = "rooms.grace_started"
	// EventGraceExpired is emitted when the forfeiture timer fires without a rejoin.
	EventGraceExpired logging.EventType = "rooms.grace_expired"
)

// MembershipPayload describes a roster change.
type MembershipPayload struct {
	MemberCount int    `json:"memberCount"`
	HostID      string `json:"hostId"`
	Reason      string `json:"reason,omitempty"`
}

// HostMigratedPayload records the previous and new host.
type HostMigratedPayload struct {
	PreviousHostID string `json:"previousHostId"`
	NewHostID      string `json:"newHostId"`
}

// DissolvedPayload lists the members evicted with the room.
type DissolvedPayload struct {
	Evicted []string `json:"evicted,omitempty"`
	Reason  string   `json:"reason"`
}

// PhasePayload captures a phase transition.
type PhasePayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// GracePayload captures the forfeiture window of a disconnected member.
type GracePayload struct {
	GraceMillis int64 `json:"graceMillis"`
}

func publish(ctx context.Context, pub logging.Publisher, typ logging.EventType, room string, actor logging.EntityRef, severity logging.Severity, payload any, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     typ,
		Room:     room,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryRooms,
		Payload:  payload,
		Extra:    extra,
	})
}

// RoomCreated publishes a room creation event.
func RoomCreated(ctx context.Context, pub logging.Publisher, room string, host logging.EntityRef, extra map[string]any) {
	publish(ctx, pub, EventRoomCreated, room, host, logging.SeverityInfo, MembershipPayload{MemberCount: 1, HostID: host.ID}, extra)
}

// MemberJoined publishes a join event.
func MemberJoined(ctx context.Context, pub logging.Publisher, room string, actor logging.EntityRef, payload MembershipPayload, extra map[string]any) {
	publish(ctx, pub, EventMemberJoined, room, actor, logging.SeverityInfo, payload, extra)
}

// MemberRejoined publishes a grace-period rejoin event.
func MemberRejoined(ctx context.Context, pub logging.Publisher, room string, actor logging.EntityRef, payload MembershipPayload, extra map[string]any) {
	publish(ctx, pub, EventMemberRejoined, room, actor, logging.SeverityInfo, payload, extra)
}

// MemberLeft publishes a leave or eviction event.
func MemberLeft(ctx context.Context, pub logging.Publisher, room string, actor logging.EntityRef, payload MembershipPayload, extra map[string]any) {
	publish(ctx, pub, EventMemberLeft, room, actor, logging.SeverityInfo, payload, extra)
}

// HostMigrated publishes a host migration event.
func HostMigrated(ctx context.Context, pub logging.Publisher, room string, payload HostMigratedPayload, extra map[string]any) {
	publish(ctx, pub, EventHostMigrated, room, logging.PlayerRef(payload.NewHostID), logging.SeverityInfo, payload, extra)
}

// RoomDissolved publishes a dissolution event.
func RoomDissolved(ctx context.Context, pub logging.Publisher, room string, actor logging.EntityRef, payload DissolvedPayload, extra map[string]any) {
	publish(ctx, pub, EventRoomDissolved, room, actor, logging.SeverityInfo, payload, extra)
}

// RoomCleaned publishes a sweep deletion event.
func RoomCleaned(ctx context.Context, pub logging.Publisher, room string, payload DissolvedPayload, extra map[string]any) {
	publish(ctx, pub, EventRoomCleaned, room, logging.ServerRef(), logging.SeverityInfo, payload, extra)
}

// PhaseChanged publishes a phase transition.
func PhaseChanged(ctx context.Context, pub logging.Publisher, room string, payload PhasePayload, extra map[string]any) {
	publish(ctx, pub, EventPhaseChanged, room, logging.RoomRef(room), logging.SeverityDebug, payload, extra)
}

// GraceStarted publishes the start of a grace period.
func GraceStarted(ctx context.Context, pub logging.Publisher, room string, actor logging.EntityRef, payload GracePayload, extra map[string]any) {
	publish(ctx, pub, EventGraceStarted, room, actor, logging.SeverityInfo, payload, extra)
}

// GraceExpired publishes a forfeiture.
func GraceExpired(ctx context.Context, pub logging.Publisher, room string, actor logging.EntityRef, payload GracePayload, extra map[string]any) {
	publish(ctx, pub, EventGraceExpired, room, actor, logging.SeverityWarn, payload, extra)
}
