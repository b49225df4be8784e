package simulation

import (
	"context"

	"platform-fighter/server/logging"
)

const (
	// EventTickOverrun is emitted when the tick cadence fell far enough behind to rebase.
	EventTickOverrun logging.EventType = "simulation.tick_overrun"
	// EventInvariantRepaired is emitted when the per-tick consistency pass corrects a participant.
	EventInvariantRepaired logging.EventType = "simulation.invariant_repaired"
)

// TickOverrunPayload captures how late the tick ran.
type TickOverrunPayload struct {
	LagMillis    int64 `json:"lagMillis"`
	PeriodMillis int64 `json:"periodMillis"`
}

// InvariantRepairedPayload names the repaired condition.
type InvariantRepairedPayload struct {
	Repair string `json:"repair"`
}

// TickOverrun publishes a warning when the tick loop rebases its schedule.
func TickOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickOverrunPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTickOverrun,
		Tick:     tick,
		Actor:    logging.ServerRef(),
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	})
}

// InvariantRepaired publishes a self-healing correction.
func InvariantRepaired(ctx context.Context, pub logging.Publisher, tick uint64, room string, actor logging.EntityRef, payload InvariantRepairedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventInvariantRepaired,
		Tick:     tick,
		Room:     room,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  payload,
		Extra:    extra,
	})
}
