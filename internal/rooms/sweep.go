package rooms

import (
	"context"
	"sort"
	"time"

	"platform-fighter/server/internal/sim"
	"platform-fighter/server/internal/state"
	logrooms "platform-fighter/server/logging/rooms"
)

// Cleanup reasons.
const (
	ReasonEmpty    = "empty_timeout"
	ReasonInactive = "inactive_timeout"
)

// StartSweeper runs Sweep every CleanupInterval until StopSweeper.
func (r *Registry) StartSweeper() {
	if r.sched == nil || r.sweeper != nil || r.settings.CleanupInterval <= 0 {
		return
	}
	r.sweeper = sim.NewTicker(r.sched, sim.TickerConfig{Span: r.settings.CleanupInterval, Count: 1}, func(_ uint64, now time.Time) {
		r.Sweep(now)
	})
}

// StopSweeper cancels the periodic sweep.
func (r *Registry) StopSweeper() {
	r.sweeper.Stop()
	r.sweeper = nil
}

// Sweep deletes rooms that stayed empty past EmptyTimeout or saw no activity
// for InactiveTimeout, evicting anyone still attached. It returns the closed
// codes. Retired codes older than EmptyTimeout are forgotten.
func (r *Registry) Sweep(now time.Time) []string {
	for code, at := range r.retired {
		if now.Sub(at) >= r.settings.EmptyTimeout {
			delete(r.retired, code)
		}
	}
	var closed []string
	for _, code := range r.store.RoomCodes() {
		room, ok := r.store.Room(code)
		if !ok {
			continue
		}
		reason := r.expiry(room, now)
		if reason == "" {
			continue
		}
		evicted := r.closeRoom(room, reason)
		closed = append(closed, code)
		r.metrics.Add(metricRoomsCleaned, 1)
		r.logger.Printf("[rooms] closed %s (%s), evicted %d", code, reason, len(evicted))
		logrooms.RoomCleaned(context.Background(), r.publisher, code, logrooms.DissolvedPayload{
			Evicted: evicted,
			Reason:  reason,
		}, nil)
	}
	return closed
}

func (r *Registry) expiry(room *state.Room, now time.Time) string {
	if room.Empty() {
		if room.EmptySince.IsZero() {
			room.EmptySince = now
		}
		if r.settings.EmptyTimeout > 0 && now.Sub(room.EmptySince) >= r.settings.EmptyTimeout {
			return ReasonEmpty
		}
	}
	if r.settings.InactiveTimeout > 0 && now.Sub(room.LastActivityAt) >= r.settings.InactiveTimeout {
		return ReasonInactive
	}
	return ""
}

// Advance runs the tick-time fallbacks for room timers: a countdown step or
// a grace period whose timer never fired is completed here once it is
// overdue by slack.
func (r *Registry) Advance(now time.Time, slack time.Duration) {
	for _, code := range r.store.RoomCodes() {
		room, ok := r.store.Room(code)
		if !ok {
			continue
		}
		if room.Phase == state.PhaseCountdown && !room.NextCountdownAt.IsZero() && now.Sub(room.NextCountdownAt) >= slack {
			r.countdownStep(room, now)
		}
		for _, id := range r.disconnectedIDs(room) {
			stub, ok := room.Disconnected[id]
			if ok && now.Sub(stub.ExpiresAt) >= slack {
				r.expireGrace(room, id, now)
			}
		}
	}
}

func (r *Registry) disconnectedIDs(room *state.Room) []string {
	ids := make([]string, 0, len(room.Disconnected))
	for id := range room.Disconnected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
