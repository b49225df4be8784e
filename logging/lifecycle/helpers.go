package lifecycle

import (
	"context"

	"platform-fighter/server/logging"
)

const (
	// EventPlayerDeath is emitted once per lost life.
	EventPlayerDeath logging.EventType = "lifecycle.player_death"
	// EventPlayerRespawn is emitted when a dead player re-enters the arena.
	EventPlayerRespawn logging.EventType = "lifecycle.player_respawn"
	// EventPlayerEliminated is emitted when a player runs out of lives.
	EventPlayerEliminated logging.EventType = "lifecycle.player_eliminated"
	// EventMatchEnded is emitted when a room's match resolves.
	EventMatchEnded logging.EventType = "lifecycle.match_ended"
	// EventStatsRecordFailed is emitted when the stats collaborator rejects a result.
	EventStatsRecordFailed logging.EventType = "lifecycle.stats_record_failed"
)

// DeathPayload describes a lost life.
type DeathPayload struct {
	Cause          string `json:"cause"`
	LivesRemaining int    `json:"livesRemaining"`
	KillerID       string `json:"killerId,omitempty"`
}

// RespawnPayload records where a player re-entered.
type RespawnPayload struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	PlatformID string  `json:"platformId"`
}

// MatchEndedPayload summarises a finished match.
type MatchEndedPayload struct {
	WinnerID     string `json:"winnerId,omitempty"`
	Participants int    `json:"participants"`
	Forfeit      bool   `json:"forfeit,omitempty"`
}

// StatsFailurePayload carries the collaborator error.
type StatsFailurePayload struct {
	Error string `json:"error"`
}

func publish(ctx context.Context, pub logging.Publisher, typ logging.EventType, tick uint64, room string, actor logging.EntityRef, severity logging.Severity, payload any, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     typ,
		Tick:     tick,
		Room:     room,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// PlayerDeath publishes a death event.
func PlayerDeath(ctx context.Context, pub logging.Publisher, tick uint64, room string, actor logging.EntityRef, payload DeathPayload, extra map[string]any) {
	publish(ctx, pub, EventPlayerDeath, tick, room, actor, logging.SeverityInfo, payload, extra)
}

// PlayerRespawn publishes a respawn event.
func PlayerRespawn(ctx context.Context, pub logging.Publisher, tick uint64, room string, actor logging.EntityRef, payload RespawnPayload, extra map[string]any) {
	publish(ctx, pub, EventPlayerRespawn, tick, room, actor, logging.SeverityInfo, payload, extra)
}

// PlayerEliminated publishes an elimination event.
func PlayerEliminated(ctx context.Context, pub logging.Publisher, tick uint64, room string, actor logging.EntityRef, extra map[string]any) {
	publish(ctx, pub, EventPlayerEliminated, tick, room, actor, logging.SeverityInfo, nil, extra)
}

// MatchEnded publishes a match result summary.
func MatchEnded(ctx context.Context, pub logging.Publisher, tick uint64, room string, payload MatchEndedPayload, extra map[string]any) {
	publish(ctx, pub, EventMatchEnded, tick, room, logging.RoomRef(room), logging.SeverityInfo, payload, extra)
}

// StatsRecordFailed publishes a collaborator failure.
func StatsRecordFailed(ctx context.Context, pub logging.Publisher, room string, actor logging.EntityRef, payload StatsFailurePayload, extra map[string]any) {
	publish(ctx, pub, EventStatsRecordFailed, 0, room, actor, logging.SeverityError, payload, extra)
}
