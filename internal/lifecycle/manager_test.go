package lifecycle

import (
	"math/rand"
	"testing"
	"time"

	"platform-fighter/server/internal/events"
	"platform-fighter/server/internal/movement"
	"platform-fighter/server/internal/sim"
	"platform-fighter/server/internal/state"
	"platform-fighter/server/internal/telemetry"
	"platform-fighter/server/internal/world"
	loglifecycle "platform-fighter/server/logging/lifecycle"
	"platform-fighter/server/logging/sinks"
)

type recordedMatch struct {
	room    string
	results []state.ResultEntry
}

type fakeRecorder struct {
	matches []recordedMatch
}

func (f *fakeRecorder) Submit(room string, results []state.ResultEntry) {
	f.matches = append(f.matches, recordedMatch{room: room, results: results})
}

type harness struct {
	manager  *Manager
	sched    *sim.ManualScheduler
	store    *state.Store
	room     *state.Room
	events   *events.Buffer
	logs     *sinks.MemorySink
	recorder *fakeRecorder
	tuning   world.Tuning
}

func newHarness(t *testing.T, ids ...string) *harness {
	t.Helper()
	tuning := world.DefaultTuning()
	sched := sim.NewManualScheduler(time.Unix(1700000000, 0))
	store := state.NewStore()
	buf := &events.Buffer{}
	logs := sinks.NewMemorySink()
	recorder := &fakeRecorder{}
	engine := movement.NewEngine(movement.Config{Tuning: tuning, Layout: world.DefaultLayout(), Scheduler: sched, Events: buf})
	manager := NewManager(Config{
		Tuning:    tuning,
		Layout:    world.DefaultLayout(),
		Scheduler: sched,
		Store:     store,
		Movement:  engine,
		Events:    buf,
		Publisher: logs,
		Metrics:   telemetry.NewCounters(),
		Results:   recorder,
		RNG:       rand.New(rand.NewSource(7)),
	})
	room := state.NewRoom("ABCD", ids[0], sched.Now())
	store.Rooms[room.Code] = room
	for i, id := range ids {
		p := state.NewParticipant(id, "name-"+id, tuning)
		p.X, p.Y = 100+float64(i)*100, 492
		store.Participants[id] = p
		room.AddMember(id)
		store.Bind(id, room.Code)
	}
	room.Phase = state.PhaseInProgress
	return &harness{
		manager:  manager,
		sched:    sched,
		store:    store,
		room:     room,
		events:   buf,
		logs:     logs,
		recorder: recorder,
		tuning:   tuning,
	}
}

func (h *harness) player(id string) *state.Participant {
	return h.store.Participants[id]
}

func TestBoundaryDeathRespawnsAfterDelay(t *testing.T) {
	h := newHarness(t, "a", "b")
	p := h.player("a")
	p.Y = h.tuning.DeathBottom + 1

	if !h.manager.TriggerDeath(h.room, p, CauseBoundary, h.sched.Now()) {
		t.Fatalf("expected death to register")
	}
	if p.Lives != h.tuning.Lives-1 || p.Deaths != 1 {
		t.Fatalf("expected one life lost, lives=%d deaths=%d", p.Lives, p.Deaths)
	}
	if !p.IsDead || p.Grounded {
		t.Fatalf("expected dead and airborne")
	}

	h.sched.Advance(h.tuning.RespawnDelay - time.Millisecond)
	if !p.IsDead {
		t.Fatalf("respawned before the delay elapsed")
	}
	h.sched.Advance(time.Millisecond)
	if p.IsDead {
		t.Fatalf("expected respawn after %s", h.tuning.RespawnDelay)
	}
	if p.StandingPlatformID != "spawn-left" && p.StandingPlatformID != "spawn-right" {
		t.Fatalf("expected a spawn platform, got %q", p.StandingPlatformID)
	}
	if p.Y != 492 || !p.Grounded {
		t.Fatalf("expected to stand on the spawn pad, y=%.2f", p.Y)
	}
	if p.Health != p.MaxHealth {
		t.Fatalf("expected full health, got %d", p.Health)
	}
	if !p.IsInvincible || !p.InvincibleUntil.Equal(h.sched.Now().Add(h.tuning.InvincibleFor)) {
		t.Fatalf("expected a fresh invincibility window")
	}
	kinds := h.events.Kinds()
	if len(kinds) != 2 || kinds[0] != events.KindPlayerDeath || kinds[1] != events.KindPlayerRespawn {
		t.Fatalf("unexpected events %v", kinds)
	}
	if len(h.logs.OfType(loglifecycle.EventPlayerRespawn)) != 1 {
		t.Fatalf("expected respawn log")
	}
}

func TestTriggerDeathIsIdempotent(t *testing.T) {
	h := newHarness(t, "a", "b")
	p := h.player("a")
	now := h.sched.Now()

	first := h.manager.TriggerDeath(h.room, p, CauseBoundary, now)
	second := h.manager.TriggerDeath(h.room, p, CauseDamage, now)
	if !first || second {
		t.Fatalf("expected first caller to win, got %v %v", first, second)
	}
	if p.Lives != h.tuning.Lives-1 || p.Deaths != 1 {
		t.Fatalf("expected a single life lost, lives=%d", p.Lives)
	}
	if h.sched.PendingTimers() != 1 {
		t.Fatalf("expected exactly one respawn timer, got %d", h.sched.PendingTimers())
	}
}

func TestKillAttribution(t *testing.T) {
	cases := []struct {
		name       string
		since      time.Duration
		eliminated bool
		credited   bool
	}{
		{name: "inside window", since: 4 * time.Second, credited: true},
		{name: "window edge", since: 5 * time.Second, credited: true},
		{name: "expired", since: 5*time.Second + time.Millisecond},
		{name: "attacker eliminated", since: time.Second, eliminated: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, "a", "b", "c")
			victim, attacker := h.player("a"), h.player("b")
			attacker.Eliminated = tc.eliminated
			now := h.sched.Now()
			victim.LastAttackerID = "b"
			victim.LastAttackedAt = now.Add(-tc.since)

			h.manager.TriggerDeath(h.room, victim, CauseDamage, now)
			if got := attacker.Kills == 1; got != tc.credited {
				t.Fatalf("credited=%v, want %v", got, tc.credited)
			}
			death := h.events.OfKind(events.KindPlayerDeath)[0].Payload.(events.DeathPayload)
			if (death.KillerID == "b") != tc.credited {
				t.Fatalf("unexpected killer %q", death.KillerID)
			}
		})
	}
}

func TestKillCreditsAbsentAttacker(t *testing.T) {
	t.Run("grace period", func(t *testing.T) {
		h := newHarness(t, "a", "b", "c")
		victim := h.player("b")
		stub := &state.DisconnectedMember{Snapshot: h.player("a").Clone()}
		h.room.RemoveMember("a")
		h.room.Disconnected["a"] = stub
		now := h.sched.Now()
		victim.LastAttackerID = "a"
		victim.LastAttackedAt = now

		h.manager.TriggerDeath(h.room, victim, CauseBoundary, now)
		if stub.Snapshot.Kills != 1 {
			t.Fatalf("expected the parked snapshot credited, kills=%d", stub.Snapshot.Kills)
		}
		death := h.events.OfKind(events.KindPlayerDeath)[0].Payload.(events.DeathPayload)
		if death.KillerID != "a" {
			t.Fatalf("unexpected killer %q", death.KillerID)
		}
	})

	t.Run("forfeited", func(t *testing.T) {
		h := newHarness(t, "a", "b", "c")
		victim := h.player("b")
		h.room.RemoveMember("a")
		forfeited := h.player("a").Clone()
		h.room.Forfeited = append(h.room.Forfeited, forfeited)
		now := h.sched.Now()
		victim.LastAttackerID = "a"
		victim.LastAttackedAt = now

		h.manager.TriggerDeath(h.room, victim, CauseDamage, now)
		if forfeited.Kills != 1 {
			t.Fatalf("expected the forfeited copy credited, kills=%d", forfeited.Kills)
		}
		if h.player("a").Kills != 0 {
			t.Fatalf("the live record outside the room must not be credited")
		}
	})
}

func TestEliminationEndsTwoPlayerMatch(t *testing.T) {
	h := newHarness(t, "a", "b")
	loser := h.player("a")
	loser.Lives = 1
	loser.LastAttackerID = "b"
	loser.LastAttackedAt = h.sched.Now()

	h.manager.TriggerDeath(h.room, loser, CauseDamage, h.sched.Now())
	if !loser.Eliminated || loser.Lives != 0 {
		t.Fatalf("expected elimination with zero lives")
	}
	if h.room.Phase != state.PhaseGameOver || h.room.WinnerID != "b" {
		t.Fatalf("expected game over with b winning, phase=%s winner=%q", h.room.Phase, h.room.WinnerID)
	}
	if h.sched.PendingTimers() != 0 {
		t.Fatalf("eliminated players must not respawn")
	}
	if len(h.recorder.matches) != 1 {
		t.Fatalf("expected results handed to the recorder once")
	}
	results := h.recorder.matches[0].results
	if results[0].ID != "b" || !results[0].IsWinner || results[0].Rank != 1 || results[0].Kills != 1 {
		t.Fatalf("unexpected winner entry %+v", results[0])
	}
	if results[1].ID != "a" || results[1].Rank != 2 || !results[1].Eliminated {
		t.Fatalf("unexpected loser entry %+v", results[1])
	}
	if len(h.events.OfKind(events.KindGameOver)) != 1 {
		t.Fatalf("expected a game-over event")
	}
}

func TestMatchContinuesWithTwoSurvivors(t *testing.T) {
	h := newHarness(t, "a", "b", "c")
	loser := h.player("a")
	loser.Lives = 1

	h.manager.TriggerDeath(h.room, loser, CauseBoundary, h.sched.Now())
	if h.room.Phase != state.PhaseInProgress {
		t.Fatalf("expected match to continue, phase=%s", h.room.Phase)
	}
	if h.manager.EvaluateMatchEnd(h.room, h.sched.Now()) {
		t.Fatalf("two survivors should keep the match going")
	}
}

func TestSimultaneousEliminationHasNoWinner(t *testing.T) {
	h := newHarness(t, "a", "b")
	a, b := h.player("a"), h.player("b")
	a.Eliminated, a.Lives = true, 0
	b.Eliminated, b.Lives = true, 0

	if !h.manager.EvaluateMatchEnd(h.room, h.sched.Now()) {
		t.Fatalf("expected the match to end")
	}
	if h.room.WinnerID != "" {
		t.Fatalf("expected no winner, got %q", h.room.WinnerID)
	}
	for _, entry := range h.room.Results {
		if entry.IsWinner {
			t.Fatalf("no entry should be flagged winner")
		}
	}
}

func TestLivesNeverNegative(t *testing.T) {
	h := newHarness(t, "a", "b", "c")
	p := h.player("a")
	for i := 0; i < 10; i++ {
		h.manager.TriggerDeath(h.room, p, CauseBoundary, h.sched.Now())
		if p.Lives < 0 {
			t.Fatalf("lives went negative")
		}
		if p.Eliminated && p.Lives != 0 {
			t.Fatalf("eliminated with %d lives", p.Lives)
		}
		h.sched.Advance(h.tuning.RespawnDelay)
	}
	if !p.Eliminated || p.Deaths != h.tuning.Lives {
		t.Fatalf("expected elimination after %d deaths, deaths=%d", h.tuning.Lives, p.Deaths)
	}
}

func TestRespawnFallbackWhenTimerIsLost(t *testing.T) {
	h := newHarness(t, "a", "b")
	p := h.player("a")
	h.manager.TriggerDeath(h.room, p, CauseBoundary, h.sched.Now())
	sim.StopTimer(&p.Timers.Respawn)

	h.sched.Advance(h.tuning.RespawnDelay)
	h.manager.Advance(h.room, p, h.sched.Now())
	if !p.IsDead {
		t.Fatalf("fallback fired before its slack")
	}
	h.sched.Advance(h.tuning.TimerFallbackSlack)
	h.manager.Advance(h.room, p, h.sched.Now())
	if p.IsDead {
		t.Fatalf("expected fallback respawn")
	}
}

func TestNoRespawnAfterMatchEnds(t *testing.T) {
	h := newHarness(t, "a", "b", "c")
	p := h.player("a")
	h.manager.TriggerDeath(h.room, p, CauseBoundary, h.sched.Now())
	h.room.Phase = state.PhaseGameOver

	h.sched.Advance(h.tuning.RespawnDelay)
	if !p.IsDead {
		t.Fatalf("respawned in a finished match")
	}
}

func TestRankPutsDisqualifiedLast(t *testing.T) {
	entries := []state.ResultEntry{
		{ID: "quitter", Kills: 9, Disconnected: true, Disqualified: true},
		{ID: "low", Kills: 1, Deaths: 3},
		{ID: "winner", Kills: 0, IsWinner: true},
		{ID: "high", Kills: 4, Deaths: 3},
		{ID: "tie", Kills: 1, Deaths: 1},
	}
	Rank(entries)
	want := []string{"winner", "high", "tie", "low", "quitter"}
	for i, id := range want {
		if entries[i].ID != id || entries[i].Rank != i+1 {
			t.Fatalf("position %d: got %s rank %d, want %s", i, entries[i].ID, entries[i].Rank, id)
		}
	}
}

func TestBuildResultsIncludesGraceAndForfeitedMembers(t *testing.T) {
	h := newHarness(t, "a", "b")
	stub := state.NewParticipant("gone", "Gone", h.tuning)
	stub.Kills = 5
	h.room.Disconnected["gone"] = &state.DisconnectedMember{Snapshot: stub}
	forfeited := state.NewParticipant("left", "Left", h.tuning)
	h.room.Forfeited = append(h.room.Forfeited, forfeited)

	results := BuildResults(h.room, h.store.MembersOf(h.room), "a")
	if len(results) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(results))
	}
	if results[0].ID != "a" {
		t.Fatalf("expected winner first, got %s", results[0].ID)
	}
	for _, entry := range results[2:] {
		if !entry.Disqualified || !entry.Disconnected {
			t.Fatalf("expected %s ranked last as disqualified", entry.ID)
		}
	}
	if results[2].ID != "gone" {
		t.Fatalf("expected higher kills first among disqualified, got %s", results[2].ID)
	}
}
