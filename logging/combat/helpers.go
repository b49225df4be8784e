package combat

import (
	"context"

	"platform-fighter/server/logging"
)

const (
	// EventHit is emitted when a melee attack lands on a target.
	EventHit logging.EventType = "combat.hit"
	// EventWhiff is emitted when an attack resolves without touching anyone.
	EventWhiff logging.EventType = "combat.attack_whiff"
)

// HitPayload captures the outcome of a single landed attack.
type HitPayload struct {
	Attack       string  `json:"attack"`
	Damage       int     `json:"damage"`
	Blocked      bool    `json:"blocked,omitempty"`
	TargetHealth int     `json:"targetHealth"`
	KnockbackX   float64 `json:"knockbackX"`
	KnockbackY   float64 `json:"knockbackY"`
}

// WhiffPayload names the attack that missed.
type WhiffPayload struct {
	Attack string `json:"attack"`
}

// Hit publishes a combat hit for a single target.
func Hit(ctx context.Context, pub logging.Publisher, tick uint64, room string, actor logging.EntityRef, target logging.EntityRef, payload HitPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventHit,
		Tick:     tick,
		Room:     room,
		Actor:    actor,
		Targets:  []logging.EntityRef{target},
		Severity: logging.SeverityInfo,
		Category: logging.CategoryCombat,
		Payload:  payload,
		Extra:    extra,
	})
}

// Whiff publishes a debug event for an attack that hit nobody.
func Whiff(ctx context.Context, pub logging.Publisher, tick uint64, room string, actor logging.EntityRef, payload WhiffPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventWhiff,
		Tick:     tick,
		Room:     room,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryCombat,
		Payload:  payload,
		Extra:    extra,
	})
}
