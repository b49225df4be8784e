package server

import (
	"context"
	"time"

	"platform-fighter/server/internal/events"
	"platform-fighter/server/internal/lifecycle"
	"platform-fighter/server/internal/net/proto"
	"platform-fighter/server/internal/state"
	logsimulation "platform-fighter/server/logging/simulation"
)

// step is the tick callback: simulate running rooms, run the timer
// fallbacks, then broadcast one state frame per room.
func (h *Hub) step(n uint64, now time.Time) {
	h.tick = n
	h.metrics.Add(metricTicks, 1)
	for _, code := range h.store.RoomCodes() {
		room, ok := h.store.Room(code)
		if !ok || !room.Phase.Simulated() {
			continue
		}
		h.stepRoom(room, now)
	}
	h.registry.Advance(now, h.tuning.TimerFallbackSlack)
	h.broadcast(now)
}

// stepRoom integrates every member, resolves attacks, then routes defeats
// to the death entry point. A match that ends mid-tick stops the step.
func (h *Hub) stepRoom(room *state.Room, now time.Time) {
	room.Tick++
	members := h.store.MembersOf(room)
	for _, p := range members {
		res := h.movement.Step(room, p, now)
		if res.OutOfBounds {
			h.lifecycle.TriggerDeath(room, p, lifecycle.CauseBoundary, now)
			if room.Phase != state.PhaseInProgress {
				return
			}
		}
		h.combat.Trigger(room, p, now)
		h.combat.Advance(p, now)
		h.lifecycle.Advance(room, p, now)
	}
	outcome := h.combat.Resolve(room, members, now)
	for _, p := range outcome.Defeated {
		if room.Phase != state.PhaseInProgress {
			return
		}
		h.lifecycle.TriggerDeath(room, p, lifecycle.CauseDamage, now)
	}
}

// broadcast sends each room's snapshot to its members. Room codes are
// snapshotted first since a failed send can close a room.
func (h *Hub) broadcast(now time.Time) {
	for _, code := range h.store.RoomCodes() {
		room, ok := h.store.Room(code)
		if !ok || len(room.Members) == 0 {
			continue
		}
		frame := proto.NewStateFrame(room, h.store.MembersOf(room), h.tuning.TickRate, now.UnixMilli())
		h.fanout(room.MemberIDs(), frame)
	}
}

// deliver is the events.Sink every subsystem emits through.
func (h *Hub) deliver(e events.Event) {
	recipients := e.Recipients
	if recipients == nil {
		if room, ok := h.store.Room(e.Room); ok {
			recipients = room.MemberIDs()
		}
	}
	if len(recipients) == 0 {
		return
	}
	h.fanout(recipients, proto.NewEventFrame(e.Room, string(e.Kind), e.Payload))
}

// fanout encodes msg once per codec in use and queues it on each
// recipient's connection.
func (h *Hub) fanout(recipients []string, msg any) {
	encoded := make(map[string][]byte, 2)
	for _, id := range recipients {
		conn, ok := h.conns[id]
		if !ok {
			continue
		}
		codec := conn.Codec()
		data, ok := encoded[codec.Name()]
		if !ok {
			var err error
			data, err = codec.Encode(msg)
			if err != nil {
				h.logger.Printf("failed to encode %T for %s: %v", msg, codec.Name(), err)
				return
			}
			encoded[codec.Name()] = data
		}
		if !conn.Send(data) {
			h.metrics.Add(metricFramesDropped, 1)
		}
	}
}

func (h *Hub) send(playerID string, conn Conn, msg any) {
	data, err := conn.Codec().Encode(msg)
	if err != nil {
		h.logger.Printf("failed to encode %T for %s: %v", msg, playerID, err)
		return
	}
	if !conn.Send(data) {
		h.metrics.Add(metricFramesDropped, 1)
	}
}

func (h *Hub) overrun(lag time.Duration) {
	h.metrics.Add(metricOverruns, 1)
	var period time.Duration
	if h.tuning.TickRate > 0 {
		period = time.Second / time.Duration(h.tuning.TickRate)
	}
	logsimulation.TickOverrun(context.Background(), h.publisher, h.tick, logsimulation.TickOverrunPayload{
		LagMillis:    lag.Milliseconds(),
		PeriodMillis: period.Milliseconds(),
	}, nil)
}
