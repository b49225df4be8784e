package lifecycle

import (
	"context"
	"sort"
	"time"

	"platform-fighter/server/internal/events"
	"platform-fighter/server/internal/sim"
	"platform-fighter/server/internal/state"
	loglifecycle "platform-fighter/server/logging/lifecycle"
)

// EvaluateMatchEnd ends the match in room when at most one connected,
// non-eliminated member remains. Only room is touched.
func (m *Manager) EvaluateMatchEnd(room *state.Room, now time.Time) bool {
	if room == nil || room.Phase != state.PhaseInProgress {
		return false
	}
	members := m.store.MembersOf(room)
	var survivors []*state.Participant
	for _, p := range members {
		if !p.Eliminated {
			survivors = append(survivors, p)
		}
	}
	if len(survivors) > 1 {
		return false
	}
	winnerID := ""
	if len(survivors) == 1 {
		winnerID = survivors[0].ID
	}
	m.endMatch(room, members, winnerID, now)
	return true
}

func (m *Manager) endMatch(room *state.Room, members []*state.Participant, winnerID string, now time.Time) {
	forfeit := len(room.Forfeited) > 0 || len(room.Disconnected) > 0
	results := BuildResults(room, members, winnerID)

	room.Phase = state.PhaseGameOver
	room.EndedAt = now
	room.WinnerID = winnerID
	room.Results = results
	room.Touch(now)

	for _, p := range members {
		sim.StopTimer(&p.Timers.Respawn)
		p.RespawnAt = time.Time{}
	}
	// Grace stubs cannot rejoin a finished match.
	for id, stub := range room.Disconnected {
		sim.StopTimer(&stub.Timer)
		delete(room.Disconnected, id)
		m.store.Unbind(id, room.Code)
	}

	m.metrics.Add(metricMatches, 1)
	m.emit(room, events.KindGameOver, events.GameOverPayload{WinnerID: winnerID, Results: results})
	loglifecycle.MatchEnded(context.Background(), m.publisher, room.Tick, room.Code, loglifecycle.MatchEndedPayload{
		WinnerID:     winnerID,
		Participants: len(results),
		Forfeit:      forfeit,
	}, nil)
	if m.results != nil {
		m.results.Submit(room.Code, append([]state.ResultEntry(nil), results...))
	}
}

// BuildResults ranks every participant of the match: connected members,
// members still inside their grace period, and members who forfeited.
func BuildResults(room *state.Room, members []*state.Participant, winnerID string) []state.ResultEntry {
	entries := make([]state.ResultEntry, 0, len(members)+len(room.Disconnected)+len(room.Forfeited))
	seen := make(map[string]bool)
	add := func(p *state.Participant, disconnected bool) {
		if p == nil || seen[p.ID] {
			return
		}
		seen[p.ID] = true
		entries = append(entries, state.ResultEntry{
			ID:           p.ID,
			Name:         p.Name,
			Lives:        p.Lives,
			Eliminated:   p.Eliminated,
			IsWinner:     !disconnected && p.ID == winnerID,
			Kills:        p.Kills,
			Deaths:       p.Deaths,
			KDR:          p.KDR(),
			Disconnected: disconnected,
			Disqualified: disconnected,
		})
	}
	for _, p := range members {
		add(p, false)
	}
	stubIDs := make([]string, 0, len(room.Disconnected))
	for id := range room.Disconnected {
		stubIDs = append(stubIDs, id)
	}
	sort.Strings(stubIDs)
	for _, id := range stubIDs {
		add(room.Disconnected[id].Snapshot, true)
	}
	for _, p := range room.Forfeited {
		add(p, true)
	}
	Rank(entries)
	return entries
}

// Rank orders entries winner first, disqualified last, then by kills
// descending and deaths ascending, and assigns 1-based ranks. Ties keep
// their input order.
func Rank(entries []state.ResultEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.IsWinner != b.IsWinner {
			return a.IsWinner
		}
		if a.Disqualified != b.Disqualified {
			return !a.Disqualified
		}
		if a.Kills != b.Kills {
			return a.Kills > b.Kills
		}
		return a.Deaths < b.Deaths
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}
